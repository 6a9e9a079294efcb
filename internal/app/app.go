// Package app builds the object graph shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/lunchbot/internal/catalog"
	"github.com/ashureev/lunchbot/internal/compose"
	"github.com/ashureev/lunchbot/internal/config"
	"github.com/ashureev/lunchbot/internal/convlog"
	"github.com/ashureev/lunchbot/internal/gateway"
	"github.com/ashureev/lunchbot/internal/intent"
	"github.com/ashureev/lunchbot/internal/llm"
	"github.com/ashureev/lunchbot/internal/maintenance"
	"github.com/ashureev/lunchbot/internal/ratelimit"
	"github.com/ashureev/lunchbot/internal/recommend"
	"github.com/ashureev/lunchbot/internal/resilience"
	"github.com/ashureev/lunchbot/internal/session"
	"github.com/ashureev/lunchbot/internal/store"
	"github.com/ashureev/lunchbot/internal/weather"
)

// weatherBreakerOpen is how long a failing weather provider is skipped.
const weatherBreakerOpen = 5 * time.Minute

// App owns every long-lived component. Each shared resource is built once
// here and injected.
type App struct {
	Config      *config.Config
	Store       *store.SQLiteStore
	Limiter     *ratelimit.Limiter
	Sessions    *session.Store
	Controller  *resilience.Controller
	Catalog     *catalog.Static
	Weather     *weather.Service
	ConvLog     convlog.Logger
	Gateway     *gateway.Gateway
	Maintenance *maintenance.Worker

	remote bool
}

// Build wires the application from cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	menus, err := catalog.Load(cfg.MenuFile)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("load menu catalog: %w", err)
	}
	logger.Info("Menu catalog loaded", "menus", menus.Len(), "file", cfg.MenuFile)

	convLogger, err := convlog.New(convlog.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("initialize conversation logger: %w", err)
	}

	// Left as a nil interface when the generator is unavailable so the
	// resolver and composer take their template-only paths.
	var gen llm.Generator
	var classifier intent.Classifier
	credentials := 1
	if cfg.Gemini.Enabled() {
		client, err := llm.NewGeminiClient(ctx, cfg.Gemini.APIKeys, cfg.Gemini.Model)
		if err != nil {
			logger.Warn("Remote generator unavailable, using local rules and templates", "error", err)
		} else {
			gen = client
			credentials = client.Credentials()
		}
	}
	ctrl := resilience.NewController(credentials, cfg.Breaker.BackoffFloor, cfg.Breaker.BackoffMax, logger)
	if gen != nil {
		classifier = intent.NewRemoteClassifier(gen, ctrl, cfg.Timeout.Classify, logger)
		logger.Info("Remote generator enabled", "model", cfg.Gemini.Model, "credentials", credentials)
	} else {
		logger.Info("Remote generator disabled")
	}

	limiter := ratelimit.New(ratelimit.Limits{
		PerMinute: cfg.RateLimit.PerMinute,
		PerHour:   cfg.RateLimit.PerHour,
		PerDay:    cfg.RateLimit.PerDay,
	})
	sessions := session.NewStore(cfg.Session.TTL, cfg.Session.MaxHistory)
	engine := recommend.NewEngine(menus, repo,
		recommend.WithRecentDays(cfg.History.RecentDays),
		recommend.WithLogger(logger))

	a := &App{
		Config:     cfg,
		Store:      repo,
		Limiter:    limiter,
		Sessions:   sessions,
		Controller: ctrl,
		Catalog:    menus,
		ConvLog:    convLogger,
		remote:     gen != nil,
	}

	gwCfg := gateway.Config{
		Limiter:        limiter,
		Sessions:       sessions,
		Resolver:       intent.NewResolver(classifier, logger),
		Recommender:    engine,
		Composer:       compose.New(gen, ctrl, cfg.Timeout.Compose, logger),
		Recorder:       repo,
		ConvLog:        convLogger,
		Logger:         logger,
		Deadline:       cfg.Timeout.Request,
		WeatherTimeout: cfg.Timeout.Weather,
		HistoryLimit:   cfg.Session.MaxHistory,
		CreatorName:    cfg.CreatorName,
	}
	if cfg.Weather {
		client := &http.Client{Timeout: cfg.Timeout.Weather}
		a.Weather = weather.NewService(cfg.Timeout.WeatherTTL, cfg.Timeout.Weather, logger,
			weather.NewBreaker(weather.NewWttr(cfg.Location, client), weatherBreakerOpen),
			weather.NewBreaker(weather.NewOpenMeteo(cfg.Latitude, cfg.Longitude, client), weatherBreakerOpen),
		)
		gwCfg.Weather = a.Weather
	}

	a.Gateway, err = gateway.New(gwCfg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build gateway: %w", err)
	}

	a.Maintenance = maintenance.NewWorker(limiter, sessions, repo,
		cfg.History.Retention, cfg.History.MaintenanceTTL, logger)
	return a, nil
}

// RemoteEnabled reports whether a remote generator is wired in.
func (a *App) RemoteEnabled() bool {
	return a.remote
}

// Close releases the conversation logger and the database.
func (a *App) Close() error {
	var errs []error
	if a.ConvLog != nil {
		errs = append(errs, a.ConvLog.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
