// Package app is the composition root: it turns a *config.Config into the
// full set of services. The HTTP server and the geniectl CLI both build on it,
// so they always agree on how storage, notifications and providers are wired.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geniesugar/glucose-monitor/internal/alert"
	"github.com/geniesugar/glucose-monitor/internal/assistant"
	"github.com/geniesugar/glucose-monitor/internal/auth"
	"github.com/geniesugar/glucose-monitor/internal/cache"
	"github.com/geniesugar/glucose-monitor/internal/config"
	"github.com/geniesugar/glucose-monitor/internal/dexcom"
	"github.com/geniesugar/glucose-monitor/internal/metrics"
	"github.com/geniesugar/glucose-monitor/internal/notify"
	sqliteRepo "github.com/geniesugar/glucose-monitor/internal/repository/sqlite"
	"github.com/geniesugar/glucose-monitor/internal/service"
)

// App owns every long-lived resource. Close releases them in reverse order
// of creation.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *sqliteRepo.DB
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Tokens   *auth.TokenService
	Queue    *notify.Queue

	Auth     *service.AuthService
	Readings *service.ReadingService
	Sync     *service.SyncService
	Summary  *service.SummaryService
	Comments *service.CommentService
	FoodLogs *service.FoodLogService
	Chat     *service.ChatService
	Devices  *service.DeviceService
	Admin    *service.AdminService

	closers []func() error
}

// New opens storage and builds every service. The notification workers are
// not running until Start is called.
//
// Optional integrations degrade instead of failing: without REDIS_ADDR the
// summary cache is a no-op, without provider keys email/SMS report false and
// the assistant answers "not configured".
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	a.Registry = prometheus.NewRegistry()
	a.Metrics = metrics.New(a.Registry)

	summaryCache, err := a.newCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	dispatcher := notify.Channels{
		Email: notify.NewSendGridMailer(cfg.Notify.SendGridAPIKey, cfg.Notify.FromEmail, cfg.Notify.FromName, logger),
		SMS:   notify.NewTwilioTexter(cfg.Notify.TwilioAccountSID, cfg.Notify.TwilioAuthToken, cfg.Notify.TwilioFromNumber, logger),
	}
	queueCfg := notify.DefaultQueueConfig()
	queueCfg.Workers = cfg.Notify.Workers
	queueCfg.Size = cfg.Notify.QueueSize
	queueCfg.MaxAttempts = cfg.Notify.MaxAttempts
	queueCfg.Timeout = cfg.Notify.Timeout
	a.Queue = notify.NewQueue(dispatcher, queueCfg, a.Metrics, logger)
	a.closers = append(a.closers, func() error { a.Queue.Stop(); return nil })

	engine := alert.NewEngine(
		alert.Thresholds{Low: cfg.Alert.LowThreshold, High: cfg.Alert.HighThreshold},
		alert.Policy{AlertOnSynced: cfg.Alert.AlertOnSynced},
		a.Queue, a.Metrics, logger,
	)

	provider := dexcom.NewProvider(dexcom.Config{
		BaseURL:      cfg.Dexcom.BaseURL,
		ClientID:     cfg.Dexcom.ClientID,
		ClientSecret: cfg.Dexcom.ClientSecret,
		RedirectURL:  cfg.Dexcom.RedirectURL,
		Timeout:      cfg.Dexcom.Timeout,
	})
	// Left as an untyped nil when OAuth is off so DeviceService sees nil.
	var exchanger service.OAuthExchanger
	if cfg.DexcomOAuthEnabled() {
		exchanger = provider
	}

	llm, err := a.newAssistant(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	users := db.Users()
	timeline := db.Timeline()
	locks := service.NewTimelineLocks()

	a.Tokens, err = auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Summary = service.NewSummaryService(users, timeline, summaryCache, service.SummaryOptions{
		Window:      cfg.Summary.Window,
		CacheTTL:    cfg.Summary.CacheTTL,
		Concurrency: cfg.Summary.Concurrency,
	}, logger)
	a.Auth = service.NewAuthService(users, a.Tokens, auth.NewPasswordService(), a.Queue,
		service.AuthOptions{AllowClinicianSignup: cfg.Auth.AllowClinicianSignup}, a.Metrics, logger)
	a.Readings = service.NewReadingService(users, timeline, engine, locks, a.Summary, a.Metrics, logger)
	a.Sync = service.NewSyncService(users, timeline, db.Credentials(), provider, engine, locks, a.Summary,
		service.SyncOptions{
			Lookback:    cfg.Dexcom.Lookback,
			Timeout:     cfg.Dexcom.Timeout,
			StaticToken: cfg.Dexcom.AccessToken,
		}, a.Metrics, logger)
	a.Comments = service.NewCommentService(users, db.Comments(), a.Queue, logger)
	a.FoodLogs = service.NewFoodLogService(db.FoodLogs(), logger)
	a.Chat = service.NewChatService(users, timeline, llm, a.Metrics, logger)
	a.Devices = service.NewDeviceService(users, db.Credentials(), exchanger, logger)
	a.Admin = service.NewAdminService(users, a.Summary, logger)

	return a, nil
}

// newCache returns Redis when REDIS_ADDR is set. An unreachable Redis is a
// startup error rather than a silent fallback.
func (a *App) newCache(ctx context.Context) (cache.Cache, error) {
	if a.Config.Redis.Addr == "" {
		a.Logger.Info("summary cache disabled (REDIS_ADDR not set)")
		return cache.Noop{}, nil
	}
	r, err := cache.NewRedis(ctx, a.Config.Redis.Addr, a.Config.Redis.Password, a.Config.Redis.DB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, r.Close)
	a.Logger.Info("summary cache enabled", slog.String("redis_addr", a.Config.Redis.Addr))
	return r, nil
}

// newAssistant picks the provider named by ASSISTANT_PROVIDER. A missing key
// yields nil, which ChatService treats as "not configured".
func (a *App) newAssistant(ctx context.Context) (assistant.Assistant, error) {
	cfg := a.Config.Assistant
	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			a.Logger.Warn("GEMINI_API_KEY not set; assistant disabled")
			return nil, nil
		}
		g, err := assistant.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		return assistant.WithTimeout(g, cfg.Timeout), nil
	default:
		if cfg.OpenAIAPIKey == "" {
			a.Logger.Warn("OPENAI_API_KEY not set; assistant disabled")
			return nil, nil
		}
		o := assistant.NewOpenAI(assistant.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		return assistant.WithTimeout(o, cfg.Timeout), nil
	}
}

// Start launches the background notification workers.
func (a *App) Start() {
	a.Queue.Start()
}

// Close stops the workers (draining queued messages) and closes every
// connection. Safe to call on a partially built App.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
