package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/pauljones0/slickdeals-discord-bot/internal/util"
)

// resolveRetries bounds how often a tracked link is re-navigated after a failure.
const resolveRetries = 1

// Resolver turns a tracked affiliate link into the merchant URL it redirects to.
type Resolver struct {
	fetcher Fetcher
	backoff time.Duration
	log     *slog.Logger
}

func NewResolver(f Fetcher, log *slog.Logger) *Resolver {
	return &Resolver{fetcher: f, backoff: time.Second, log: log}
}

// Resolve navigates to trackedURL, follows redirects to completion and returns the
// final destination without its query string. Failures are *models.FetchError.
func (r *Resolver) Resolve(ctx context.Context, trackedURL string) (string, error) {
	var final string
	err := util.RetryWithBackoff(ctx, resolveRetries, r.backoff, func(attempt int) error {
		page, err := r.fetcher.Get(ctx, trackedURL, nil)
		if err != nil {
			if attempt < resolveRetries {
				r.log.Debug("Link resolution failed, retrying once", "url", trackedURL, "error", err)
			}
			return err
		}
		final = page.FinalURL
		return nil
	})
	if err != nil {
		return "", err
	}

	if dest, ok := util.UnwrapRedirector(final); ok {
		r.log.Debug("Navigation stopped on a redirector, using its destination", "redirector", final, "destination", dest)
		final = dest
	}
	return util.StripQuery(final), nil
}
