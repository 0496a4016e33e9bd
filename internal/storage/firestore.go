package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
)

// Firestore keeps one collection per source tag and one document per postId.
type Firestore struct {
	client *firestore.Client
	now    func() time.Time
}

func NewFirestore(ctx context.Context, projectID string) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Firestore{client: client, now: time.Now}, nil
}

func (c *Firestore) Close() error {
	return c.client.Close()
}

// GetDeal returns the stored record, or nil when the postId was never stored.
func (c *Firestore) GetDeal(ctx context.Context, source, postID string) (*models.DealRecord, error) {
	const op = "storage.firestore.GetDeal"

	doc, err := c.client.Collection(source).Doc(postID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %s/%s: %w", op, source, postID, err)
	}
	if !doc.Exists() {
		return nil, nil
	}

	var deal models.DealRecord
	if err := doc.DataTo(&deal); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal deal data: %w", op, err)
	}
	return &deal, nil
}

// InsertDeal creates the document. It fails with models.ErrDealExists when the
// postId is already stored.
func (c *Firestore) InsertDeal(ctx context.Context, source string, deal models.DealRecord) error {
	const op = "storage.firestore.InsertDeal"

	ref := c.client.Collection(source).Doc(deal.PostID)
	if _, err := ref.Create(ctx, newDocument(deal, c.now())); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return models.ErrDealExists
		}
		return fmt.Errorf("%s: %s/%s: %w", op, source, deal.PostID, err)
	}
	return nil
}

// UpdateDealContent overwrites the content fields only. The notifications field
// is never written here, so a concurrent ledger append cannot be lost.
func (c *Firestore) UpdateDealContent(ctx context.Context, source string, deal models.DealRecord) error {
	const op = "storage.firestore.UpdateDealContent"

	ref := c.client.Collection(source).Doc(deal.PostID)
	if _, err := ref.Update(ctx, contentUpdates(deal, c.now())); err != nil {
		if status.Code(err) == codes.NotFound {
			return models.ErrDealNotFound
		}
		return fmt.Errorf("%s: %s/%s: %w", op, source, deal.PostID, err)
	}
	return nil
}

// AppendNotification adds entry to the end of the record's notifications inside a
// transaction and returns the resulting ledger.
func (c *Firestore) AppendNotification(ctx context.Context, source, postID string, entry models.NotificationEntry) ([]models.NotificationEntry, error) {
	const op = "storage.firestore.AppendNotification"

	ref := c.client.Collection(source).Doc(postID)
	var entries []models.NotificationEntry
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return models.ErrDealNotFound
			}
			return err
		}
		var deal models.DealRecord
		if err := doc.DataTo(&deal); err != nil {
			return fmt.Errorf("failed to unmarshal deal data: %w", err)
		}
		entries = append(deal.Notifications, entry)
		return tx.Update(ref, []firestore.Update{
			{Path: "notifications", Value: entries},
		})
	})
	if err != nil {
		if errors.Is(err, models.ErrDealNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %s/%s: %w", op, source, postID, err)
	}
	return entries, nil
}

// FindDealByMessage returns the record in source whose ledger holds entry, or nil.
func (c *Firestore) FindDealByMessage(ctx context.Context, source string, entry models.NotificationEntry) (*models.DealRecord, error) {
	const op = "storage.firestore.FindDealByMessage"

	iter := c.client.Collection(source).
		Where("notifications", "array-contains", entryValue(entry)).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var deal models.DealRecord
	if err := doc.DataTo(&deal); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal deal data: %w", op, err)
	}
	return &deal, nil
}

// ListSources enumerates the top-level collections, one per source tag.
func (c *Firestore) ListSources(ctx context.Context) ([]string, error) {
	iter := c.client.Collections(ctx)
	var sources []string
	for {
		col, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage.firestore.ListSources: %w", err)
		}
		sources = append(sources, col.ID)
	}
	sort.Strings(sources)
	return sources, nil
}

// newDocument stamps bookkeeping times and normalizes a nil ledger so the stored
// field is always an array.
func newDocument(deal models.DealRecord, now time.Time) models.DealRecord {
	if deal.Notifications == nil {
		deal.Notifications = []models.NotificationEntry{}
	}
	if deal.FirstSeen.IsZero() {
		deal.FirstSeen = now
	}
	deal.LastUpdated = now
	return deal
}

func contentUpdates(deal models.DealRecord, now time.Time) []firestore.Update {
	var score interface{}
	if deal.DealScore != nil {
		score = *deal.DealScore
	}
	return []firestore.Update{
		{Path: "title", Value: deal.Title},
		{Path: "price", Value: deal.Price},
		{Path: "dealScore", Value: score},
		{Path: "link", Value: deal.Link},
		{Path: "image", Value: deal.Image},
		{Path: "lastUpdated", Value: now},
	}
}

// entryValue matches the stored map form of a NotificationEntry.
func entryValue(e models.NotificationEntry) map[string]interface{} {
	return map[string]interface{}{
		"channelId": e.ChannelID,
		"messageId": e.MessageID,
	}
}
