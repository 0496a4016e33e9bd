package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
	"github.com/pauljones0/slickdeals-discord-bot/internal/scraper"
	"github.com/pauljones0/slickdeals-discord-bot/internal/util"
)

type Processor interface {
	ProcessDeals(ctx context.Context) error
}

// Summary counts what happened to the posts of one cycle.
type Summary struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int // incomplete records
	Failed    int
}

func (s *Summary) add(o Summary) {
	s.Created += o.Created
	s.Updated += o.Updated
	s.Unchanged += o.Unchanged
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

type Options struct {
	Queries    []models.QuerySpec
	PostDelay  time.Duration // between detail pages of one listing
	QueryDelay time.Duration // between listings
}

// DealProcessor runs one poll cycle: every query, every post, strictly in order.
type DealProcessor struct {
	store      DealStore
	publisher  DealPublisher
	scraper    scraper.Scraper
	extractor  scraper.Extractor
	reconciler *Reconciler
	opts       Options
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
	log        *slog.Logger
}

func New(store DealStore, pub DealPublisher, s scraper.Scraper, ext scraper.Extractor, opts Options, log *slog.Logger) *DealProcessor {
	return &DealProcessor{
		store:      store,
		publisher:  pub,
		scraper:    s,
		extractor:  ext,
		reconciler: NewReconciler(store),
		opts:       opts,
		sleep:      util.Sleep,
		now:        time.Now,
		log:        log,
	}
}

// ProcessDeals runs every configured query once. Only context cancellation
// stops it early; a failing post or listing is counted and skipped.
func (p *DealProcessor) ProcessDeals(ctx context.Context) error {
	var total Summary
	for i, q := range p.opts.Queries {
		sum, err := p.ProcessQuery(ctx, q)
		total.add(sum)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn("Query failed", "query", q.Query, "error", err)
		}
		p.log.Info("Finished query", "query", q.Query,
			"created", sum.Created, "updated", sum.Updated, "unchanged", sum.Unchanged,
			"skipped", sum.Skipped, "failed", sum.Failed)

		if i < len(p.opts.Queries)-1 {
			if err := p.sleep(ctx, p.opts.QueryDelay); err != nil {
				return err
			}
		}
	}

	p.log.Info("Finished processing",
		"new", total.Created, "updated", total.Updated, "unchanged", total.Unchanged,
		"skipped", total.Skipped, "failed", total.Failed)
	return nil
}

// ProcessQuery fetches one listing and processes its posts in page order.
func (p *DealProcessor) ProcessQuery(ctx context.Context, q models.QuerySpec) (Summary, error) {
	var sum Summary
	links, err := p.scraper.QueryPosts(ctx, p.extractor, q)
	if err != nil {
		return sum, err
	}

	for i, link := range links {
		kind, err := p.processPost(ctx, link)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			sum.Failed++
			p.log.Warn("Skipping post for this cycle", "url", link, "error", err)
		case kind == nil:
			sum.Skipped++
		default:
			switch *kind {
			case models.ActionCreate:
				sum.Created++
			case models.ActionUpdate:
				sum.Updated++
			default:
				sum.Unchanged++
			}
		}

		if i < len(links)-1 {
			if err := p.sleep(ctx, p.opts.PostDelay); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

// processPost returns a nil kind when the post was incomplete and dropped.
func (p *DealProcessor) processPost(ctx context.Context, link string) (*models.ActionKind, error) {
	record, err := p.scraper.FetchPost(ctx, p.extractor, link)
	if err != nil {
		return nil, err
	}
	if record == nil {
		p.log.Info("Skipping incomplete deal", "url", link)
		return nil, nil
	}

	source := p.extractor.Source()
	action, err := p.reconciler.Reconcile(ctx, source, *record)
	if err != nil {
		return nil, err
	}

	switch action.Kind {
	case models.ActionCreate:
		err = p.create(ctx, source, action.New)
	case models.ActionUpdate:
		err = p.update(ctx, source, action.New)
	}
	if err != nil {
		return nil, err
	}
	return &action.Kind, nil
}

func (p *DealProcessor) create(ctx context.Context, source string, deal models.DealRecord) error {
	// Nothing is stored when the first send fails, so the next poll retries the create.
	entry, err := p.publisher.Publish(ctx, p.extractor, deal)
	if err != nil {
		return err
	}

	now := p.now()
	deal.Notifications = []models.NotificationEntry{entry}
	deal.FirstSeen = now
	deal.LastUpdated = now

	if err := p.store.InsertDeal(ctx, source, deal); err != nil {
		if errors.Is(err, models.ErrDealExists) {
			p.log.Warn("Deal was stored concurrently, sent message is untracked",
				"postId", deal.PostID, "channelId", entry.ChannelID, "messageId", entry.MessageID)
			return nil
		}
		p.log.Error("Failed to persist published deal", "postId", deal.PostID,
			"channelId", entry.ChannelID, "messageId", entry.MessageID, "error", err)
		return fmt.Errorf("failed to create deal %s: %w", deal.PostID, err)
	}
	p.log.Info("New deal added", "postId", deal.PostID, "title", deal.Title)
	return nil
}

func (p *DealProcessor) update(ctx context.Context, source string, deal models.DealRecord) error {
	if err := p.store.UpdateDealContent(ctx, source, deal); err != nil {
		return fmt.Errorf("failed to update deal %s: %w", deal.PostID, err)
	}
	failed := p.publisher.Propagate(ctx, p.extractor, deal)
	p.log.Info("Updated deal", "postId", deal.PostID, "title", deal.Title, "editFailures", failed)
	return nil
}
