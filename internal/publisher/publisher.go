// Package publisher decides where a deal's notifications go and keeps every
// live notification in sync with the deal.
//
// A new deal is sent either to the private review channel, where it waits for
// an approval reaction, or straight to the public channel. Approval forwards
// the deal to the public channel. Content changes are pushed to every message
// in the deal's ledger.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pauljones0/slickdeals-discord-bot/internal/ledger"
	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
	"github.com/pauljones0/slickdeals-discord-bot/internal/notifier"
	"github.com/pauljones0/slickdeals-discord-bot/internal/scraper"
)

// State is where a deal stands in the publication workflow. It is derived
// from the ledger, never stored.
type State int

const (
	Unpublished State = iota
	PrivateReview
	PublicVisible
)

func (s State) String() string {
	switch s {
	case PrivateReview:
		return "private_review"
	case PublicVisible:
		return "public_visible"
	default:
		return "unpublished"
	}
}

// Notifier is the chat channel the publisher writes to.
type Notifier interface {
	Send(ctx context.Context, channelID string, embed notifier.Embed) (string, error)
	Edit(ctx context.Context, channelID, messageID string, embed notifier.Embed) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
}

// DealFinder locates the deal a message belongs to.
type DealFinder interface {
	ListSources(ctx context.Context) ([]string, error)
	FindDealByMessage(ctx context.Context, source string, entry models.NotificationEntry) (*models.DealRecord, error)
}

type Ledger interface {
	Append(ctx context.Context, source, postID string, entry models.NotificationEntry) ([]models.NotificationEntry, error)
	Entries(ctx context.Context, source, postID string) ([]models.NotificationEntry, error)
}

type Options struct {
	EnableForwarding bool
	PrivateChannelID string
	PublicChannelID  string
	ApproveEmoji     string
	FooterText       string
	FooterIcon       string
}

type Publisher struct {
	notifier Notifier
	finder   DealFinder
	ledger   Ledger
	registry *scraper.Registry
	opts     Options
	group    singleflight.Group
	now      func() time.Time
	log      *slog.Logger
}

func New(n Notifier, finder DealFinder, l Ledger, registry *scraper.Registry, opts Options, log *slog.Logger) *Publisher {
	return &Publisher{
		notifier: n,
		finder:   finder,
		ledger:   l,
		registry: registry,
		opts:     opts,
		now:      time.Now,
		log:      log,
	}
}

// StateOf derives the workflow state from a deal's ledger.
func (p *Publisher) StateOf(entries []models.NotificationEntry) State {
	switch {
	case ledger.Forwarded(entries, p.opts.PublicChannelID):
		return PublicVisible
	case len(entries) > 0:
		return PrivateReview
	default:
		return Unpublished
	}
}

// Publish sends the first notification of a new deal and returns its ledger
// entry. The caller persists the deal with this entry.
func (p *Publisher) Publish(ctx context.Context, ext scraper.Extractor, deal models.DealRecord) (models.NotificationEntry, error) {
	channelID := p.opts.PublicChannelID
	if p.opts.EnableForwarding {
		channelID = p.opts.PrivateChannelID
	}

	messageID, err := p.notifier.Send(ctx, channelID, p.Render(deal, ext.Branding()))
	if err != nil {
		return models.NotificationEntry{}, fmt.Errorf("failed to send deal %s: %w", deal.PostID, err)
	}
	entry := models.NotificationEntry{ChannelID: channelID, MessageID: messageID}

	if p.opts.EnableForwarding {
		// The message is live either way; a missing reaction only costs the reviewer a click.
		if err := p.notifier.AddReaction(ctx, channelID, messageID, p.opts.ApproveEmoji); err != nil {
			p.log.Warn("Failed to add approve reaction", "postId", deal.PostID, "messageId", messageID, "error", err)
		}
	}

	p.log.Info("Published deal", "source", ext.Source(), "postId", deal.PostID, "title", deal.Title,
		"state", p.StateOf([]models.NotificationEntry{entry}).String())
	return entry, nil
}

// Propagate edits every message in the deal's ledger to show its current
// content. The ledger is read again after the content write, so a public entry
// appended by an approval since reconciliation is edited too. Edits are
// independent; it returns how many failed.
func (p *Publisher) Propagate(ctx context.Context, ext scraper.Extractor, deal models.DealRecord) int {
	entries, err := p.ledger.Entries(ctx, ext.Source(), deal.PostID)
	if err != nil {
		p.log.Warn("Failed to re-read ledger, editing the entries seen at reconcile time",
			"postId", deal.PostID, "error", err)
		entries = deal.Notifications
	}

	embed := p.Render(deal, ext.Branding())
	failed := 0
	for _, entry := range entries {
		if err := p.notifier.Edit(ctx, entry.ChannelID, entry.MessageID, embed); err != nil {
			failed++
			p.log.Warn("Failed to edit notification", "postId", deal.PostID,
				"channelId", entry.ChannelID, "messageId", entry.MessageID, "error", err)
		}
	}
	return failed
}

// HandleApproval forwards the deal behind an approved review message to the
// public channel. Events that are not an approval are ignored.
func (p *Publisher) HandleApproval(ctx context.Context, ev models.ReactionEvent) error {
	if !p.isApproval(ev) {
		return nil
	}

	entry := models.NotificationEntry{ChannelID: ev.ChannelID, MessageID: ev.MessageID}
	ext, deal, err := p.findDeal(ctx, entry)
	if err != nil {
		return err
	}
	if deal == nil {
		p.log.Debug("Approval reaction on an unknown message", "channelId", ev.ChannelID, "messageId", ev.MessageID)
		return nil
	}

	key := ext.Source() + "/" + deal.PostID
	_, err, _ = p.group.Do(key, func() (interface{}, error) {
		return nil, p.forward(ctx, ext, *deal)
	})
	return err
}

// isApproval rejects everything until the bot knows its own id; otherwise the
// reaction it adds to each review message would approve the deal.
func (p *Publisher) isApproval(ev models.ReactionEvent) bool {
	return ev.SelfID != "" &&
		ev.UserID != ev.SelfID &&
		p.opts.EnableForwarding &&
		ev.ChannelID == p.opts.PrivateChannelID &&
		ev.Emoji == p.opts.ApproveEmoji
}

func (p *Publisher) forward(ctx context.Context, ext scraper.Extractor, deal models.DealRecord) error {
	entries, err := p.ledger.Entries(ctx, ext.Source(), deal.PostID)
	if err != nil {
		return fmt.Errorf("failed to read ledger of %s: %w", deal.PostID, err)
	}
	if ledger.Forwarded(entries, p.opts.PublicChannelID) {
		p.log.Info("Deal already forwarded", "postId", deal.PostID)
		return nil
	}

	messageID, err := p.notifier.Send(ctx, p.opts.PublicChannelID, p.Render(deal, ext.Branding()))
	if err != nil {
		return fmt.Errorf("failed to forward deal %s: %w", deal.PostID, err)
	}

	entry := models.NotificationEntry{ChannelID: p.opts.PublicChannelID, MessageID: messageID}
	entries, err = p.ledger.Append(ctx, ext.Source(), deal.PostID, entry)
	if err != nil {
		return err
	}
	p.log.Info("Forwarded deal", "postId", deal.PostID, "title", deal.Title, "entries", len(entries))
	return nil
}

// findDeal searches every stored source for the deal owning entry.
func (p *Publisher) findDeal(ctx context.Context, entry models.NotificationEntry) (scraper.Extractor, *models.DealRecord, error) {
	sources, err := p.finder.ListSources(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list sources: %w", err)
	}

	var errs []error
	for _, source := range sources {
		ext, ok := p.registry.Lookup(source)
		if !ok {
			p.log.Warn("Skipping collection without a registered extractor", "source", source)
			continue
		}
		deal, err := p.finder.FindDealByMessage(ctx, source, entry)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if deal != nil {
			return ext, deal, nil
		}
	}
	return nil, nil, errors.Join(errs...)
}
