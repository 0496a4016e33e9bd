// Package ledger records every live message that represents a deal.
//
// Entries are only ever appended. Appends to one deal are serialized by the
// store; appends to different deals may interleave freely.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
)

// Store is the persistence the ledger needs. AppendNotification must be atomic
// per deal and return the ledger as written.
type Store interface {
	GetDeal(ctx context.Context, source, postID string) (*models.DealRecord, error)
	AppendNotification(ctx context.Context, source, postID string, entry models.NotificationEntry) ([]models.NotificationEntry, error)
}

var errEmptyEntry = errors.New("notification entry needs a channel and a message id")

type Ledger struct {
	store Store
	log   *slog.Logger
}

func New(store Store, log *slog.Logger) *Ledger {
	return &Ledger{store: store, log: log}
}

// Append adds entry at the end of the deal's ledger and returns the new ledger.
func (l *Ledger) Append(ctx context.Context, source, postID string, entry models.NotificationEntry) ([]models.NotificationEntry, error) {
	if entry.ChannelID == "" || entry.MessageID == "" {
		return nil, errEmptyEntry
	}
	entries, err := l.store.AppendNotification(ctx, source, postID, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to append notification for %s/%s: %w", source, postID, err)
	}
	l.log.Debug("Appended notification", "source", source, "postId", postID,
		"channelId", entry.ChannelID, "messageId", entry.MessageID, "entries", len(entries))
	return entries, nil
}

// Entries returns the deal's ledger in creation order.
func (l *Ledger) Entries(ctx context.Context, source, postID string) ([]models.NotificationEntry, error) {
	deal, err := l.store.GetDeal(ctx, source, postID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, models.ErrDealNotFound
	}
	return deal.Notifications, nil
}

// Forwarded reports whether entries already hold a message in the public channel.
func Forwarded(entries []models.NotificationEntry, publicChannelID string) bool {
	for _, e := range entries {
		if e.ChannelID == publicChannelID {
			return true
		}
	}
	return false
}
