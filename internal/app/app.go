package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"drift-health-alerts/internal/aggregator"
	"drift-health-alerts/internal/alerting"
	"drift-health-alerts/internal/config"
	"drift-health-alerts/internal/scheduler"
	"drift-health-alerts/internal/service"
	"drift-health-alerts/internal/storage"
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

func (a *App) newAggregator() aggregator.Aggregator {
	return aggregator.NewHTTPClient(aggregator.HTTPOptions{
		BaseURL:   a.Config.Aggregator.BaseURL,
		APIToken:  a.Config.Aggregator.APIToken,
		Timeout:   a.Config.Aggregator.RequestTimeout,
		UserAgent: a.Config.Aggregator.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func storesFor(store *storage.Store) service.Stores {
	if store == nil {
		return service.Stores{}
	}
	return service.Stores{
		State:  store,
		Alerts: store,
		Runs:   store,
		Locker: store,
	}
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence and change detection disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToCycle,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(a.Config, sched, a.newAggregator(), storesFor(store), a.newNotifier(), a.Logger)

	a.Logger.Info().Msg("starting drift monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("drift monitoring service stopped")
	return nil
}

// EvaluateOptions configure a one-shot evaluation pass.
type EvaluateOptions struct {
	BusinessID  string
	ForceNotify bool
}

// ExportOptions hold parameters for exporting MRI history.
type ExportOptions struct {
	BusinessID string
	From       *time.Time
	To         *time.Time
	PNGPath    string
	CSVPath    string
	MaxPoints  int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
