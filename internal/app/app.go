package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	_ "github.com/lib/pq"
	"github.com/mmcdole/gofeed"

	"flatwatch/internal/checkpoint"
	"flatwatch/internal/config"
	"flatwatch/internal/domain"
	"flatwatch/internal/health"
	"flatwatch/internal/infrastructure/browser"
	"flatwatch/internal/infrastructure/provider"
	"flatwatch/internal/infrastructure/scheduler"
	"flatwatch/internal/infrastructure/storage"
	"flatwatch/internal/infrastructure/telegram"
	"flatwatch/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// App owns the wired object graph and its lifecycle.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sql.DB
	browser   *browser.Service
	alerter   *telegram.AdminAlerter
	scheduler *usecase.Scheduler
}

// New wires the full application from configuration. The returned App holds
// open resources; callers must Run it (which closes them on exit).
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	repo := storage.NewPostgresRepository(db)

	users := make([]domain.User, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		users = append(users, domain.User{
			ID:        u.ID,
			Name:      u.Name,
			ChatID:    u.ChatID,
			Providers: u.Providers,
		})
	}

	var browserSvc *browser.Service
	if provider.NeedsBrowser(users) {
		browserSvc = browser.NewService(browser.Options{
			Headless: cfg.Browser.Headless,
			ExecPath: cfg.Browser.ChromePath,
		}, logger)
		if err := browserSvc.Initialize(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("start browser: %w", err)
		}
	}

	alerter := telegram.NewAdminAlerter(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID, logger)
	tracker := health.NewIterationTracker(alerter, logger, 0)

	factory := provider.NewFactory(browserSvc, resty.New(), gofeed.NewParser(), logger, tracker)
	watches := make([]usecase.UserWatch, 0, len(users))
	for _, u := range users {
		watches = append(watches, usecase.UserWatch{User: u, Providers: factory.ForUser(u)})
	}

	if err := resetRequestedUsers(ctx, repo, alerter, logger); err != nil {
		if browserSvc != nil {
			browserSvc.Close(ctx)
		}
		db.Close()
		return nil, err
	}
	logCheckpointState(ctx, repo, users, logger)

	watcher := usecase.NewWatcher(usecase.WatcherDeps{
		Checkpoints: checkpoint.NewEngine(repo, logger),
		Tracker:     tracker,
		Sink:        telegram.NewNotifier(cfg.Telegram.BotToken),
		Logger:      logger,
		MaxResults:  cfg.Scraping.MaxResults,
	})

	driver := scheduler.NewCronScheduler("@every "+cfg.Scraping.Interval, time.UTC)
	sched := usecase.NewScheduler(driver, watcher, watches, alerter)

	return &App{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		browser:   browserSvc,
		alerter:   alerter,
		scheduler: sched,
	}, nil
}

// Run starts the polling loop and blocks until the context is cancelled or a
// fatal error surfaces from a cycle. Resources are released before returning.
func (a *App) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		a.shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}

	a.alerter.Lifecycle(ctx, fmt.Sprintf("flatwatch started: %d users, polling every %s",
		len(a.cfg.Users), a.cfg.Scraping.Interval))
	a.logger.Info("flatwatch running",
		"users", len(a.cfg.Users),
		"interval", a.cfg.Scraping.Interval,
		"max_results", a.cfg.Scraping.MaxResults)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-a.scheduler.Fatal():
		a.logger.Error("fatal cycle error", "error", err)
		runErr = err
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.scheduler.Stop(stopCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	a.alerter.Lifecycle(stopCtx, "flatwatch stopped")
	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	if a.browser != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.browser.Close(closeCtx); err != nil {
			a.logger.Warn("browser close", "error", err)
		}
		cancel()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close", "error", err)
	}
}

// resetRequestedUsers drops stored checkpoints for the users named in
// FLATWATCH_RESET_USERS (comma-separated). The next cycle then runs each of
// their providers through the first-contact confirmation pass again.
func resetRequestedUsers(ctx context.Context, repo *storage.PostgresRepository, alerter *telegram.AdminAlerter, logger *slog.Logger) error {
	raw := os.Getenv("FLATWATCH_RESET_USERS")
	if raw == "" {
		return nil
	}
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := repo.ClearUser(ctx, id); err != nil {
			return fmt.Errorf("reset user %s: %w", id, err)
		}
		logger.Info("cleared stored checkpoints", "user", id)
		alerter.Lifecycle(ctx, "watch reset for user "+id)
	}
	return nil
}

func logCheckpointState(ctx context.Context, repo *storage.PostgresRepository, users []domain.User, logger *slog.Logger) {
	for _, u := range users {
		count, err := repo.GetProviderCountForUser(ctx, u.ID)
		if err != nil {
			logger.Warn("checkpoint state lookup", "user", u.ID, "error", err)
			continue
		}
		logger.Info("checkpoint state",
			"user", u.ID,
			"providers_configured", len(u.Providers),
			"providers_with_checkpoints", count)
	}
}
