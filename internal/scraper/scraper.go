package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
	"github.com/pauljones0/slickdeals-discord-bot/internal/util"
	"github.com/pauljones0/slickdeals-discord-bot/internal/validator"
)

// Scraper is what the processor needs from a source: the post links of one
// query and the record behind each link.
type Scraper interface {
	QueryPosts(ctx context.Context, ext Extractor, q models.QuerySpec) ([]string, error)
	FetchPost(ctx context.Context, ext Extractor, postURL string) (*models.DealRecord, error)
}

type Client struct {
	fetcher   Fetcher
	resolver  *Resolver
	validator *validator.Validator
	allowed   []string
	log       *slog.Logger
}

// New builds a Client. Listing and detail pages must live on one of the allowed
// domains. Tracked deal links are exempt: they point at merchants.
func New(f Fetcher, allowedDomains []string, log *slog.Logger) *Client {
	return &Client{
		fetcher:   f,
		resolver:  NewResolver(f, log),
		validator: validator.New(),
		allowed:   allowedDomains,
		log:       log,
	}
}

// QueryPosts fetches the listing page for q and returns its organic post links.
func (c *Client) QueryPosts(ctx context.Context, ext Extractor, q models.QuerySpec) ([]string, error) {
	listingURL, params := ext.SearchRequest(q)
	page, err := c.fetchPage(ctx, listingURL, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing for query %q: %w", q.Query, err)
	}

	links := ext.ExtractListing(page.Body)
	c.log.Info("Fetched listing", "source", ext.Source(), "query", q.Query, "posts", len(links))
	return links, nil
}

// FetchPost fetches and parses one detail page and resolves its deal link.
// It returns nil without error when the page lacks a required field; such a
// record is skipped for this cycle and retried on the next.
func (c *Client) FetchPost(ctx context.Context, ext Extractor, postURL string) (*models.DealRecord, error) {
	page, err := c.fetchPage(ctx, postURL, nil)
	if err != nil {
		return nil, err
	}

	detail := ext.ExtractDetail(page.Body, util.PostIDFromURL(postURL))
	record := detail.Record

	if detail.TrackedLink != "" {
		link, err := c.resolver.Resolve(ctx, detail.TrackedLink)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve deal link for post %s: %w", record.PostID, err)
		}
		record.Link = link
	}

	if err := c.validator.ValidateStruct(record); err != nil {
		c.log.Warn("Skipping incomplete post",
			"source", ext.Source(),
			"url", postURL,
			"missing", strings.Join(validator.FailedFields(err), ","))
		return nil, nil
	}
	return &record, nil
}

func (c *Client) fetchPage(ctx context.Context, rawURL string, params url.Values) (*Page, error) {
	if err := util.IsAllowedURL(rawURL, c.allowed); err != nil {
		return nil, err
	}

	page, err := c.fetcher.Get(ctx, rawURL, params)
	if err != nil {
		return nil, err
	}
	if page.StatusCode != http.StatusOK {
		return nil, &models.FetchError{
			Op:  "GET",
			URL: rawURL,
			Err: fmt.Errorf("status code %d", page.StatusCode),
		}
	}
	return page, nil
}
