package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
)

// BrowserFetcher renders pages in headless Chrome. It also follows script-driven
// redirects, which plain HTTP cannot, so link resolution lands on the merchant page.
type BrowserFetcher struct {
	browserCtx context.Context
	cancel     context.CancelFunc
	timeout    time.Duration
}

func NewBrowserFetcher(userAgent string, timeout time.Duration) (*BrowserFetcher, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so a missing Chrome binary fails at startup.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start headless browser: %w", err)
	}

	return &BrowserFetcher{
		browserCtx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
		timeout: timeout,
	}, nil
}

func (f *BrowserFetcher) Get(ctx context.Context, rawURL string, params url.Values) (*Page, error) {
	target, err := withParams(rawURL, params)
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html, location string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(target),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &models.FetchError{Op: "browser navigate", URL: target, Err: err}
	}

	// The DevTools protocol does not expose the document status; a rendered page counts as 200.
	return &Page{Body: []byte(html), FinalURL: location, StatusCode: 200}, nil
}

// Close shuts down the browser process.
func (f *BrowserFetcher) Close() {
	f.cancel()
}
