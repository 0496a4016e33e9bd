package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
)

type memStore struct {
	deals map[string]*models.DealRecord
}

func (m *memStore) GetDeal(_ context.Context, _, postID string) (*models.DealRecord, error) {
	d, ok := m.deals[postID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) AppendNotification(_ context.Context, _, postID string, e models.NotificationEntry) ([]models.NotificationEntry, error) {
	d, ok := m.deals[postID]
	if !ok {
		return nil, models.ErrDealNotFound
	}
	d.Notifications = append(d.Notifications, e)
	return d.Notifications, nil
}

func newLedger() (*Ledger, *memStore) {
	s := &memStore{deals: map[string]*models.DealRecord{"p1": {PostID: "p1"}}}
	return New(s, slog.New(slog.NewTextHandler(io.Discard, nil))), s
}

func TestLedger_AppendGrowsInOrder(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()

	for i, e := range []models.NotificationEntry{
		{ChannelID: "priv", MessageID: "1"},
		{ChannelID: "pub", MessageID: "2"},
	} {
		entries, err := l.Append(ctx, "slickdeals", "p1", e)
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if len(entries) != i+1 || entries[i] != e {
			t.Fatalf("after append %d got %v", i, entries)
		}
	}

	entries, err := l.Entries(ctx, "slickdeals", "p1")
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 || entries[0].ChannelID != "priv" || entries[1].ChannelID != "pub" {
		t.Errorf("Entries() = %v", entries)
	}
}

func TestLedger_Errors(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()

	if _, err := l.Append(ctx, "slickdeals", "p1", models.NotificationEntry{ChannelID: "c"}); err == nil {
		t.Error("expected error for entry without message id")
	}
	if _, err := l.Append(ctx, "slickdeals", "missing", models.NotificationEntry{ChannelID: "c", MessageID: "m"}); !errors.Is(err, models.ErrDealNotFound) {
		t.Errorf("Append() to unknown deal error = %v, want ErrDealNotFound", err)
	}
	if _, err := l.Entries(ctx, "slickdeals", "missing"); !errors.Is(err, models.ErrDealNotFound) {
		t.Errorf("Entries() of unknown deal error = %v, want ErrDealNotFound", err)
	}
}

func TestForwarded(t *testing.T) {
	entries := []models.NotificationEntry{{ChannelID: "priv", MessageID: "1"}}
	if Forwarded(entries, "pub") {
		t.Error("private-only ledger reported as forwarded")
	}
	entries = append(entries, models.NotificationEntry{ChannelID: "pub", MessageID: "2"})
	if !Forwarded(entries, "pub") {
		t.Error("ledger with public entry not reported as forwarded")
	}
}
