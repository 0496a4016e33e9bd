package util

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// PostIDFromURL extracts the post id from a post link: the leading dash-separated
// part of the last path segment ("/f/17012345-cheap-tv" -> "17012345").
func PostIDFromURL(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	id, _, _ := strings.Cut(path, "-")
	return id
}

// IsRelativeLink reports whether href is a same-origin path rather than an absolute URL.
func IsRelativeLink(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "//") {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(href), "http")
}

// AbsoluteURL resolves href against base.
func AbsoluteURL(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL %s: %w", base, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("failed to parse link %s: %w", href, err)
	}
	return b.ResolveReference(ref).String(), nil
}

// StripQuery removes the query string (and anything after it) from a URL.
func StripQuery(rawURL string) string {
	before, _, _ := strings.Cut(rawURL, "?")
	return before
}

// GetDomain returns the registrable domain of a URL ("https://www.slickdeals.net/x" -> "slickdeals.net").
func GetDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// IsAllowedURL reports whether rawURL is http(s) and its host or registrable
// domain appears in allowed.
func IsAllowedURL(rawURL string, allowed []string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL %s: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %s: only http and https allowed", u.Scheme)
	}
	host := u.Hostname()
	domain := GetDomain(rawURL)
	for _, a := range allowed {
		if host == a || domain == a {
			return nil
		}
	}
	return fmt.Errorf("security violation: URL hostname %s is not in allowlist", host)
}
