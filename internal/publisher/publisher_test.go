package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauljones0/slickdeals-discord-bot/internal/ledger"
	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
	"github.com/pauljones0/slickdeals-discord-bot/internal/notifier"
	"github.com/pauljones0/slickdeals-discord-bot/internal/scraper"
)

const (
	privateCh = "private"
	publicCh  = "public"
	approve   = "\U0001F4C8"
	botID     = "bot"
)

type sentMessage struct {
	channelID string
	embed     notifier.Embed
}

type fakeNotifier struct {
	mu        sync.Mutex
	sent      []sentMessage
	edits     []models.NotificationEntry
	reactions []models.NotificationEntry
	editErr   map[string]error // by message id
	sendErr   error
	next      int
}

func (f *fakeNotifier) Send(_ context.Context, channelID string, embed notifier.Embed) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.next++
	f.sent = append(f.sent, sentMessage{channelID: channelID, embed: embed})
	return fmt.Sprintf("m%d", f.next), nil
}

func (f *fakeNotifier) Edit(_ context.Context, channelID, messageID string, _ notifier.Embed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editErr[messageID]; err != nil {
		return err
	}
	f.edits = append(f.edits, models.NotificationEntry{ChannelID: channelID, MessageID: messageID})
	return nil
}

func (f *fakeNotifier) AddReaction(_ context.Context, channelID, messageID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, models.NotificationEntry{ChannelID: channelID, MessageID: messageID})
	return nil
}

// memStore is a single-source store whose appends are serialized.
type memStore struct {
	mu    sync.Mutex
	deals map[string]*models.DealRecord
}

func newMemStore(deals ...models.DealRecord) *memStore {
	s := &memStore{deals: make(map[string]*models.DealRecord)}
	for i := range deals {
		d := deals[i]
		s.deals[d.PostID] = &d
	}
	return s
}

func (s *memStore) ListSources(context.Context) ([]string, error) {
	return []string{"legacy", scraper.SourceSlickdeals}, nil
}

func (s *memStore) FindDealByMessage(_ context.Context, source string, entry models.NotificationEntry) (*models.DealRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if source != scraper.SourceSlickdeals {
		return nil, nil
	}
	for _, d := range s.deals {
		for _, n := range d.Notifications {
			if n == entry {
				cp := *d
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (s *memStore) GetDeal(_ context.Context, _, postID string) (*models.DealRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[postID]
	if !ok {
		return nil, nil
	}
	cp := *d
	cp.Notifications = append([]models.NotificationEntry(nil), d.Notifications...)
	return &cp, nil
}

func (s *memStore) AppendNotification(_ context.Context, _, postID string, e models.NotificationEntry) ([]models.NotificationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deals[postID]
	if !ok {
		return nil, models.ErrDealNotFound
	}
	d.Notifications = append(d.Notifications, e)
	return append([]models.NotificationEntry(nil), d.Notifications...), nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestPublisher(forwarding bool, n *fakeNotifier, s *memStore) (*Publisher, scraper.Extractor) {
	ext := scraper.NewSlickdeals(scraper.DefaultSelectors()[scraper.SourceSlickdeals])
	p := New(n, s, ledger.New(s, discard()), scraper.NewRegistry(ext), Options{
		EnableForwarding: forwarding,
		PrivateChannelID: privateCh,
		PublicChannelID:  publicCh,
		ApproveEmoji:     approve,
		FooterText:       "Powered by deals",
	}, discard())
	p.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return p, ext
}

func dealP1() models.DealRecord {
	return models.DealRecord{
		PostID:    "p1",
		Title:     "Deal A",
		Price:     0,
		DealScore: models.Score(100),
		Link:      "https://x",
		Image:     "https://y",
	}
}

func approval(messageID string) models.ReactionEvent {
	return models.ReactionEvent{ChannelID: privateCh, MessageID: messageID, Emoji: approve, UserID: "alice", SelfID: botID}
}

func TestPublisher_CreateThenForward(t *testing.T) {
	n := &fakeNotifier{}
	s := newMemStore()
	p, ext := newTestPublisher(true, n, s)
	ctx := context.Background()

	deal := dealP1()
	entry, err := p.Publish(ctx, ext, deal)
	require.NoError(t, err)
	assert.Equal(t, privateCh, entry.ChannelID)
	assert.Equal(t, []models.NotificationEntry{entry}, n.reactions)

	deal.Notifications = []models.NotificationEntry{entry}
	s.deals[deal.PostID] = &deal
	assert.Equal(t, PrivateReview, p.StateOf(deal.Notifications))

	require.NoError(t, p.HandleApproval(ctx, approval(entry.MessageID)))

	stored, _ := s.GetDeal(ctx, scraper.SourceSlickdeals, "p1")
	require.Len(t, stored.Notifications, 2)
	assert.Equal(t, privateCh, stored.Notifications[0].ChannelID)
	assert.Equal(t, publicCh, stored.Notifications[1].ChannelID)
	assert.Equal(t, PublicVisible, p.StateOf(stored.Notifications))
	require.Len(t, n.sent, 2)
	assert.Equal(t, publicCh, n.sent[1].channelID)
}

func TestPublisher_PublishDirectWhenForwardingDisabled(t *testing.T) {
	n := &fakeNotifier{}
	p, ext := newTestPublisher(false, n, newMemStore())

	entry, err := p.Publish(context.Background(), ext, dealP1())
	require.NoError(t, err)
	assert.Equal(t, publicCh, entry.ChannelID)
	assert.Empty(t, n.reactions)
	assert.Equal(t, PublicVisible, p.StateOf([]models.NotificationEntry{entry}))
}

func TestPublisher_PublishSendFailure(t *testing.T) {
	n := &fakeNotifier{sendErr: &models.FetchError{Op: "POST", Err: errors.New("boom")}}
	p, ext := newTestPublisher(true, n, newMemStore())

	_, err := p.Publish(context.Background(), ext, dealP1())
	require.Error(t, err)
	assert.True(t, models.IsFetchError(err))
}

func TestPublisher_ApprovalFilters(t *testing.T) {
	deal := dealP1()
	deal.Notifications = []models.NotificationEntry{{ChannelID: privateCh, MessageID: "m1"}}

	tests := []struct {
		name       string
		forwarding bool
		mutate     func(ev *models.ReactionEvent)
	}{
		{"own reaction", true, func(ev *models.ReactionEvent) { ev.UserID = botID }},
		{"bot identity unknown", true, func(ev *models.ReactionEvent) { ev.UserID, ev.SelfID = botID, "" }},
		{"forwarding disabled", false, func(ev *models.ReactionEvent) {}},
		{"wrong channel", true, func(ev *models.ReactionEvent) { ev.ChannelID = publicCh }},
		{"wrong emoji", true, func(ev *models.ReactionEvent) { ev.Emoji = "\U0001F44D" }},
		{"unknown message", true, func(ev *models.ReactionEvent) { ev.MessageID = "nope" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &fakeNotifier{}
			s := newMemStore(deal)
			p, _ := newTestPublisher(tt.forwarding, n, s)

			ev := approval("m1")
			tt.mutate(&ev)
			require.NoError(t, p.HandleApproval(context.Background(), ev))

			assert.Empty(t, n.sent)
			stored, _ := s.GetDeal(context.Background(), scraper.SourceSlickdeals, "p1")
			assert.Len(t, stored.Notifications, 1)
		})
	}
}

func TestPublisher_ApprovalIsIdempotent(t *testing.T) {
	deal := dealP1()
	deal.Notifications = []models.NotificationEntry{{ChannelID: privateCh, MessageID: "m1"}}
	n := &fakeNotifier{}
	s := newMemStore(deal)
	p, _ := newTestPublisher(true, n, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.HandleApproval(ctx, approval("m1")))
		}()
	}
	wg.Wait()
	require.NoError(t, p.HandleApproval(ctx, approval("m1")))

	stored, _ := s.GetDeal(ctx, scraper.SourceSlickdeals, "p1")
	assert.Len(t, stored.Notifications, 2)
	assert.Len(t, n.sent, 1)
}

func TestPublisher_PropagateEditsEveryEntry(t *testing.T) {
	deal := dealP1()
	deal.Price = 29.99
	deal.Notifications = []models.NotificationEntry{
		{ChannelID: privateCh, MessageID: "m1"},
		{ChannelID: publicCh, MessageID: "m2"},
		{ChannelID: publicCh, MessageID: "m3"},
	}
	n := &fakeNotifier{editErr: map[string]error{"m2": errors.New("unknown message")}}
	p, ext := newTestPublisher(true, n, newMemStore(deal))

	failed := p.Propagate(context.Background(), ext, deal)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []models.NotificationEntry{
		{ChannelID: privateCh, MessageID: "m1"},
		{ChannelID: publicCh, MessageID: "m3"},
	}, n.edits)
	assert.Len(t, deal.Notifications, 3)
}

func TestPublisher_PropagateEditsEntriesAppendedSinceReconcile(t *testing.T) {
	stored := dealP1()
	stored.Notifications = []models.NotificationEntry{
		{ChannelID: privateCh, MessageID: "m1"},
		{ChannelID: publicCh, MessageID: "m2"},
	}
	// The caller still holds the ledger from before the approval.
	stale := dealP1()
	stale.Price = 29.99
	stale.Notifications = stored.Notifications[:1]

	n := &fakeNotifier{}
	p, ext := newTestPublisher(true, n, newMemStore(stored))

	failed := p.Propagate(context.Background(), ext, stale)
	assert.Zero(t, failed)
	assert.Equal(t, stored.Notifications, n.edits)
}

func TestPublisher_PropagateFallsBackWhenLedgerIsUnreadable(t *testing.T) {
	deal := dealP1()
	deal.Notifications = []models.NotificationEntry{{ChannelID: privateCh, MessageID: "m1"}}
	n := &fakeNotifier{}
	p, ext := newTestPublisher(true, n, newMemStore())

	failed := p.Propagate(context.Background(), ext, deal)
	assert.Zero(t, failed)
	assert.Equal(t, deal.Notifications, n.edits)
}
