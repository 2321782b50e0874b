package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"torn-alert-watcher/internal/alerting"
	"torn-alert-watcher/internal/catalog"
	"torn-alert-watcher/internal/config"
	"torn-alert-watcher/internal/directory"
	"torn-alert-watcher/internal/engine"
	"torn-alert-watcher/internal/fetcher"
	"torn-alert-watcher/internal/market"
	"torn-alert-watcher/internal/scheduler"
	"torn-alert-watcher/internal/service"
	"torn-alert-watcher/internal/state"
	"torn-alert-watcher/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openStore prefers the postgres backend and falls back to the JSON file
// store when database.dsn is not configured.
func (a *App) openStore(ctx context.Context) (storage.DocumentStore, error) {
	if a.Config.Database.DSN != "" {
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, err
		}
		return storage.NewPostgresStore(ctx, pool)
	}

	a.Logger.Info().Str("dir", a.Config.Storage.Dir).Msg("database.dsn not configured; using file store")
	return storage.NewFileStore(a.Config.Storage.Dir)
}

func (a *App) newClient() *fetcher.Client {
	return fetcher.NewClient(fetcher.Options{
		BaseURL:           a.Config.API.BaseURL,
		StockFeedURL:      a.Config.API.StockFeedURL,
		Timeout:           a.Config.API.RequestTimeout,
		RequestsPerMinute: a.Config.API.RequestsPerMinute,
		UserAgent:         a.Config.API.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) alertConfig() catalog.Config {
	return catalog.Config{
		CashThreshold: decimal.NewFromFloat(a.Config.Alerts.CashThreshold),
	}
}

func (a *App) openDirectory(ctx context.Context, docs storage.DocumentStore) (*directory.StoreDirectory, error) {
	dir := directory.NewStoreDirectory(docs, a.Logger)
	if err := dir.Load(ctx); err != nil {
		return nil, err
	}

	seeds := make([]directory.Subject, 0, len(a.Config.Subjects))
	for _, s := range a.Config.Subjects {
		seeds = append(seeds, directory.Subject{ID: s.ID, Name: s.Name, Credential: s.APIKey})
	}
	if err := dir.Seed(ctx, seeds); err != nil {
		return nil, err
	}
	return dir, nil
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	docs, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer docs.Close()

	dir, err := a.openDirectory(ctx, docs)
	if err != nil {
		return err
	}

	store := state.NewStore(docs, a.Config.Storage.Debounce, a.Logger)
	store.Load(ctx)

	registry := catalog.Default()
	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("no notification channel configured; alerts will only be logged")
	}

	limiter := engine.NewWindow(a.Config.Alerts.MaxPerWindow, a.Config.Alerts.Window)
	eng := engine.New(registry, store, limiter, notifier, a.alertConfig(), a.Logger)

	client := a.newClient()
	sched := scheduler.New(a.Config.Scheduler, registry, dir, client, eng, a.Logger)

	monitor := market.New(market.Options{
		Interval:          a.Config.Scheduler.FastInterval,
		ArmWindow:         a.Config.Market.ArmWindow,
		LowStockThreshold: a.Config.Market.LowStockThreshold,
		LowStockThrottle:  a.Config.Market.LowStockThrottle,
		TradeWindow:       a.Config.Market.TradeWindow,
	}, docs, client, dir, notifier, a.Config.Storage.Debounce, a.Logger)
	monitor.Load(ctx)

	svc := service.New(sched, monitor, store, a.Logger)

	a.Logger.Info().Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// StatusOptions configure the status command.
type StatusOptions struct {
	SubjectID string
}

// SimulateOptions inject a synthetic payload into the live engine.
type SimulateOptions struct {
	SubjectID string
	Group     string
	Payload   string
}
