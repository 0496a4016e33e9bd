package util

import (
	"net/url"
)

// redirectorParams maps known affiliate redirector hosts to the query parameter
// carrying the destination URL.
var redirectorParams = map[string]string{
	"click.linksynergy.com": "murl",
	"go.redirectingat.com":  "url",
	"www.anrdoezrs.net":     "url",
	"www.jdoqocy.com":       "url",
	"www.kqzyfj.com":        "url",
	"www.tkqlhce.com":       "url",
}

// UnwrapRedirector returns the destination embedded in a known redirector URL.
// It is used when a navigation stops on a redirector page instead of following through.
func UnwrapRedirector(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, false
	}
	param, ok := redirectorParams[parsed.Host]
	if !ok {
		return rawURL, false
	}
	dest := parsed.Query().Get(param)
	if dest == "" {
		return rawURL, false
	}
	destURL, err := url.Parse(dest)
	if err != nil || (destURL.Scheme != "http" && destURL.Scheme != "https") {
		return rawURL, false
	}
	return dest, true
}
