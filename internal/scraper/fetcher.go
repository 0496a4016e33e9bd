package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
)

// maxBodyBytes caps how much of a page is read into memory.
const maxBodyBytes = 8 << 20

// Page is a fetched document together with the URL it finally resolved to.
type Page struct {
	Body       []byte
	FinalURL   string
	StatusCode int
}

// Fetcher performs a GET with optional query parameters, following redirects.
// Transport failures are returned as *models.FetchError; HTTP status codes are
// left to the caller.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, params url.Values) (*Page, error)
}

// HTTPFetcher fetches pages with a plain HTTP client that keeps cookies per
// registrable domain across requests.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	// cookiejar.New only fails on a nil PublicSuffixList misuse; options are static here.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		userAgent: userAgent,
	}
}

func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, params url.Values) (*Page, error) {
	target, err := withParams(rawURL, params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for URL %s: %w", target, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, &models.FetchError{Op: "GET", URL: target, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, &models.FetchError{Op: "read body", URL: target, Err: err}
	}

	return &Page{
		Body:       body,
		FinalURL:   res.Request.URL.String(),
		StatusCode: res.StatusCode,
	}, nil
}

func withParams(rawURL string, params url.Values) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %s: %w", rawURL, err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
