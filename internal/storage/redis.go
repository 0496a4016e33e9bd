package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pauljones0/slickdeals-discord-bot/internal/models"
	"github.com/pauljones0/slickdeals-discord-bot/internal/util"
)

// maxTxRetries bounds optimistic-lock retries when a watched deal changes mid-update.
const maxTxRetries = 5

// Redis stores each deal as a JSON document, plus a set of source tags and an
// index from sent messages to their deal.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

// RedisOptions configures the connection.
type RedisOptions struct {
	Addr           string
	Password       string
	DB             int
	ConnectRetries int           // ping attempts after the first before giving up
	RetryInterval  time.Duration // initial wait between pings, doubled each attempt
}

// NewRedis connects and pings with exponential backoff.
func NewRedis(ctx context.Context, opts RedisOptions, log *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	log.Info("Connecting to redis", "addr", opts.Addr)
	err := util.RetryWithBackoff(ctx, opts.ConnectRetries, opts.RetryInterval, func(attempt int) error {
		err := client.Ping(ctx).Err()
		if err != nil {
			log.Warn("Redis connection failed, retrying", "addr", opts.Addr, "attempt", attempt+1, "error", err)
		}
		return err
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unavailable at %s: %w", opts.Addr, err)
	}
	log.Info("Connected to redis", "addr", opts.Addr)

	return newRedisWithClient(client), nil
}

func newRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (s *Redis) Close() error {
	return s.client.Close()
}

func (s *Redis) GetDeal(ctx context.Context, source, postID string) (*models.DealRecord, error) {
	return s.getDeal(ctx, s.client, source, postID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// getDeal reads through c, which is either the client or a watching transaction.
func (s *Redis) getDeal(ctx context.Context, c getter, source, postID string) (*models.DealRecord, error) {
	data, err := c.Get(ctx, DealKey(source, postID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage.redis.GetDeal: %s/%s: %w", source, postID, err)
	}

	var deal models.DealRecord
	if err := json.Unmarshal(data, &deal); err != nil {
		return nil, fmt.Errorf("storage.redis.GetDeal: failed to unmarshal deal: %w", err)
	}
	return &deal, nil
}

func (s *Redis) InsertDeal(ctx context.Context, source string, deal models.DealRecord) error {
	const op = "storage.redis.InsertDeal"

	deal = newDocument(deal, s.now())
	data, err := json.Marshal(deal)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal deal: %w", op, err)
	}

	key := DealKey(source, deal.PostID)
	// The document and its indexes land in one MULTI, so a stored deal is always findable.
	return s.watch(ctx, op, key, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return models.ErrDealExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, KeySources, source)
			for _, n := range deal.Notifications {
				indexMessage(ctx, pipe, source, deal.PostID, n)
			}
			return nil
		})
		return err
	})
}

// UpdateDealContent overwrites content fields and keeps the stored ledger.
func (s *Redis) UpdateDealContent(ctx context.Context, source string, deal models.DealRecord) error {
	return s.mutate(ctx, source, deal.PostID, func(stored *models.DealRecord) []models.NotificationEntry {
		stored.Title = deal.Title
		stored.Price = deal.Price
		stored.DealScore = deal.DealScore
		stored.Link = deal.Link
		stored.Image = deal.Image
		stored.LastUpdated = s.now()
		return nil
	})
}

func (s *Redis) AppendNotification(ctx context.Context, source, postID string, entry models.NotificationEntry) ([]models.NotificationEntry, error) {
	var entries []models.NotificationEntry
	err := s.mutate(ctx, source, postID, func(stored *models.DealRecord) []models.NotificationEntry {
		stored.Notifications = append(stored.Notifications, entry)
		entries = stored.Notifications
		return []models.NotificationEntry{entry}
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// mutate applies fn to the stored deal under WATCH and writes it back in MULTI.
// fn returns ledger entries that need a message index.
func (s *Redis) mutate(ctx context.Context, source, postID string, fn func(*models.DealRecord) []models.NotificationEntry) error {
	key := DealKey(source, postID)

	txf := func(tx *redis.Tx) error {
		stored, err := s.getDeal(ctx, tx, source, postID)
		if err != nil {
			return err
		}
		if stored == nil {
			return models.ErrDealNotFound
		}

		indexed := fn(stored)
		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal deal: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			for _, n := range indexed {
				indexMessage(ctx, pipe, source, postID, n)
			}
			return nil
		})
		return err
	}

	return s.watch(ctx, "storage.redis: "+source+"/"+postID, key, txf)
}

// watch runs txf under WATCH key and retries when another writer touched key first.
// The deal sentinels pass through unwrapped.
func (s *Redis) watch(ctx context.Context, op, key string, txf func(*redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, models.ErrDealNotFound) && !errors.Is(err, models.ErrDealExists) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return err
	}
	return fmt.Errorf("%s: too many concurrent writers", op)
}

func (s *Redis) FindDealByMessage(ctx context.Context, source string, entry models.NotificationEntry) (*models.DealRecord, error) {
	ref, err := s.client.HGetAll(ctx, MessageKey(entry.ChannelID, entry.MessageID)).Result()
	if err != nil {
		return nil, fmt.Errorf("storage.redis.FindDealByMessage: %w", err)
	}
	if ref["source"] != source || ref["postId"] == "" {
		return nil, nil
	}
	return s.GetDeal(ctx, source, ref["postId"])
}

func (s *Redis) ListSources(ctx context.Context) ([]string, error) {
	sources, err := s.client.SMembers(ctx, KeySources).Result()
	if err != nil {
		return nil, fmt.Errorf("storage.redis.ListSources: %w", err)
	}
	sort.Strings(sources)
	return sources, nil
}

func indexMessage(ctx context.Context, pipe redis.Pipeliner, source, postID string, n models.NotificationEntry) {
	pipe.HSet(ctx, MessageKey(n.ChannelID, n.MessageID), "source", source, "postId", postID)
}
