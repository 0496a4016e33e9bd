package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/slickdeals-discord-bot/internal/config"
	"github.com/pauljones0/slickdeals-discord-bot/internal/gateway"
	"github.com/pauljones0/slickdeals-discord-bot/internal/ledger"
	"github.com/pauljones0/slickdeals-discord-bot/internal/notifier"
	"github.com/pauljones0/slickdeals-discord-bot/internal/processor"
	"github.com/pauljones0/slickdeals-discord-bot/internal/publisher"
	"github.com/pauljones0/slickdeals-discord-bot/internal/scheduler"
	"github.com/pauljones0/slickdeals-discord-bot/internal/scraper"
	"github.com/pauljones0/slickdeals-discord-bot/internal/server"
	"github.com/pauljones0/slickdeals-discord-bot/internal/storage"
)

const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// dealStore is everything the bot needs from a storage backend.
type dealStore interface {
	processor.DealStore
	ledger.Store
	publisher.DealFinder
	io.Closer
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("Starting Slickdeals Discord bot", "env", cfg.Env, "store", cfg.StoreBackend,
		"fetchMode", cfg.FetchMode, "forwarding", cfg.EnableForwarding, "queries", len(cfg.SlickdealsQueries))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Bot stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("Bot stopped.")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, err := newStore(ctx, cfg, log.With("component", "storage"))
	if err != nil {
		return err
	}
	defer store.Close()

	fetcher, closeFetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer closeFetcher()

	selectors := scraper.LoadConfig(log.With("component", "selectors"))
	sel, ok := selectors[scraper.SourceSlickdeals]
	if !ok {
		log.Warn("Selector config has no slickdeals entry, using defaults")
		sel = scraper.DefaultSelectors()[scraper.SourceSlickdeals]
	}
	ext := scraper.NewSlickdeals(sel)
	registry := scraper.NewRegistry(ext)

	client := scraper.New(fetcher, cfg.AllowedDomains, log.With("component", "scraper"))
	n := notifier.New(cfg.DiscordAPIBaseURL, cfg.DiscordToken, log.With("component", "notifier"))
	l := ledger.New(store, log.With("component", "ledger"))
	pub := publisher.New(n, store, l, registry, publisher.Options{
		EnableForwarding: cfg.EnableForwarding,
		PrivateChannelID: cfg.PrivateChannelID,
		PublicChannelID:  cfg.PublicChannelID,
		ApproveEmoji:     cfg.ApproveEmoji,
		FooterText:       cfg.FooterText,
		FooterIcon:       cfg.FooterIcon,
	}, log.With("component", "publisher"))
	proc := processor.New(store, pub, client, ext, processor.Options{
		Queries:    cfg.SlickdealsQueries,
		PostDelay:  cfg.PostDelay,
		QueryDelay: cfg.QueryDelay,
	}, log.With("component", "processor"))
	poller := scheduler.New(proc, cfg.StartupDelay, cfg.CycleInterval, log.With("component", "scheduler"))
	srv := server.New(cfg.Port, poller, log.With("component", "server"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	if cfg.EnableForwarding {
		gw, err := gateway.New(cfg.DiscordToken, pub, log.With("component", "gateway"))
		if err != nil {
			return err
		}
		g.Go(func() error { return gw.Run(gctx) })
	} else {
		log.Info("Forwarding disabled, not listening for approval reactions")
	}

	return g.Wait()
}

func newStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (dealStore, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		s, err := storage.NewRedis(ctx, storage.RedisOptions{
			Addr:           cfg.RedisAddr,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			ConnectRetries: 5,
			RetryInterval:  time.Second,
		}, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := storage.NewFirestore(ctx, cfg.ProjectID)
		if err != nil {
			return nil, err
		}
		log.Info("Connected to firestore", "project", cfg.ProjectID)
		return s, nil
	}
}

func newFetcher(cfg *config.Config) (scraper.Fetcher, func(), error) {
	if cfg.FetchMode == config.FetchModeBrowser {
		b, err := scraper.NewBrowserFetcher(cfg.UserAgent, cfg.HTTPTimeout)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	}
	return scraper.NewHTTPFetcher(cfg.HTTPTimeout, cfg.UserAgent), func() {}, nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		}))
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				// Cloud Run stamps every line already.
				if a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return a
			},
		}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))
		log.Error("Unknown env, expected one of local, development, production", "env", env)
	}

	return log
}
