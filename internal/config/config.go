// Package config loads the immutable runtime configuration.
//
// Load is called once in main (after godotenv has populated the process
// environment from an optional .env file). The returned *Config is passed
// down to every component; nothing else in the module reads os.Getenv.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// DevJWTSecret is used when JWT_SECRET is unset outside production.
	DevJWTSecret = "dev-only-insecure-jwt-secret"

	// MaxDexcomWindow is the largest window the Dexcom API accepts.
	MaxDexcomWindow = 30 * 24 * time.Hour
)

type Config struct {
	Env    string
	Port   int
	DBPath string

	Log       LogConfig
	Auth      AuthConfig
	Alert     AlertConfig
	Summary   SummaryConfig
	Dexcom    DexcomConfig
	Notify    NotifyConfig
	Assistant AssistantConfig
	Redis     RedisConfig
}

type LogConfig struct {
	Level  slog.Level
	Format string // "json" or "text"
}

type AuthConfig struct {
	JWTSecret            string
	TokenTTL             time.Duration
	AllowClinicianSignup bool
	SecureCookies        bool
}

// AlertConfig holds the glucose thresholds in mg/dL.
type AlertConfig struct {
	LowThreshold  float64
	HighThreshold float64
	AlertOnSynced bool
}

type SummaryConfig struct {
	Window      time.Duration
	CacheTTL    time.Duration
	Concurrency int
}

type DexcomConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AccessToken  string // static fallback credential
	Lookback     time.Duration
	Timeout      time.Duration
}

type NotifyConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	Workers     int
	QueueSize   int
	MaxAttempts int
	Timeout     time.Duration
}

type AssistantConfig struct {
	Provider      string // "openai" or "gemini"
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiModel   string
	Timeout       time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads the process environment into a validated Config.
func Load() (*Config, error) {
	var errs []error
	p := &parser{errs: &errs}

	cfg := &Config{
		Env:    strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),
		Port:   p.int("PORT", 5000),
		DBPath: getEnv("DB_PATH", "data/glucose.db"),
		Log: LogConfig{
			Level:  parseLogLevel(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Auth: AuthConfig{
			JWTSecret:            os.Getenv("JWT_SECRET"),
			TokenTTL:             p.duration("JWT_TTL", 7*24*time.Hour),
			AllowClinicianSignup: p.bool("ALLOW_CLINICIAN_SIGNUP", false),
			SecureCookies:        p.bool("SECURE_COOKIES", false),
		},
		Alert: AlertConfig{
			LowThreshold:  p.float("ALERT_LOW_THRESHOLD", 70),
			HighThreshold: p.float("ALERT_HIGH_THRESHOLD", 200),
			AlertOnSynced: p.bool("ALERT_ON_SYNCED", false),
		},
		Summary: SummaryConfig{
			Window:      p.duration("SUMMARY_WINDOW", 7*24*time.Hour),
			CacheTTL:    p.duration("SUMMARY_CACHE_TTL", time.Minute),
			Concurrency: p.int("SUMMARY_CONCURRENCY", 8),
		},
		Dexcom: DexcomConfig{
			BaseURL:      strings.TrimRight(getEnv("DEXCOM_BASE_URL", "https://api.dexcom.com"), "/"),
			ClientID:     os.Getenv("DEXCOM_CLIENT_ID"),
			ClientSecret: os.Getenv("DEXCOM_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("DEXCOM_REDIRECT_URL"),
			AccessToken:  os.Getenv("DEXCOM_ACCESS_TOKEN"),
			Lookback:     p.duration("DEXCOM_LOOKBACK", 24*time.Hour),
			Timeout:      p.duration("DEXCOM_TIMEOUT", 20*time.Second),
		},
		Notify: NotifyConfig{
			SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
			FromEmail:        getEnv("FROM_EMAIL", "noreply@geniesugar.com"),
			FromName:         getEnv("FROM_NAME", "GenieSugar"),
			TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			TwilioFromNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
			Workers:          p.int("NOTIFY_WORKERS", 4),
			QueueSize:        p.int("NOTIFY_QUEUE_SIZE", 256),
			MaxAttempts:      p.int("NOTIFY_MAX_ATTEMPTS", 2),
			Timeout:          p.duration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Assistant: AssistantConfig{
			Provider:      strings.ToLower(getEnv("ASSISTANT_PROVIDER", "openai")),
			OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
			GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
			GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Timeout:       p.duration("ASSISTANT_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       p.int("REDIS_DB", 0),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}

	if cfg.Auth.JWTSecret == "" && !cfg.IsProduction() {
		cfg.Auth.JWTSecret = DevJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Load calls it; tests that build a
// Config by hand can call it directly.
func (c *Config) Validate() error {
	var errs []error

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.IsProduction() && c.Auth.JWTSecret == DevJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.Alert.LowThreshold >= c.Alert.HighThreshold {
		errs = append(errs, fmt.Errorf("ALERT_LOW_THRESHOLD (%g) must be below ALERT_HIGH_THRESHOLD (%g)",
			c.Alert.LowThreshold, c.Alert.HighThreshold))
	}
	if c.Summary.Window <= 0 {
		errs = append(errs, errors.New("SUMMARY_WINDOW must be positive"))
	}
	if c.Summary.Concurrency < 1 {
		errs = append(errs, errors.New("SUMMARY_CONCURRENCY must be at least 1"))
	}
	if c.Dexcom.Lookback <= 0 || c.Dexcom.Lookback > MaxDexcomWindow {
		errs = append(errs, fmt.Errorf("DEXCOM_LOOKBACK must be within (0, %s]", MaxDexcomWindow))
	}
	if c.Dexcom.Timeout <= 0 {
		errs = append(errs, errors.New("DEXCOM_TIMEOUT must be positive"))
	}
	if c.Notify.Workers < 1 || c.Notify.QueueSize < 1 {
		errs = append(errs, errors.New("NOTIFY_WORKERS and NOTIFY_QUEUE_SIZE must be at least 1"))
	}
	if c.Notify.MaxAttempts < 1 {
		errs = append(errs, errors.New("NOTIFY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Assistant.Provider != "openai" && c.Assistant.Provider != "gemini" {
		errs = append(errs, fmt.Errorf("ASSISTANT_PROVIDER must be openai or gemini, got %q", c.Assistant.Provider))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// DexcomOAuthEnabled reports whether the per-user connect flow can run.
func (c *Config) DexcomOAuthEnabled() bool {
	return c.Dexcom.ClientID != "" && c.Dexcom.ClientSecret != "" && c.Dexcom.RedirectURL != ""
}

// Masked returns printable key/value pairs with secrets redacted.
func (c *Config) Masked() [][2]string {
	return [][2]string{
		{"APP_ENV", c.Env},
		{"PORT", strconv.Itoa(c.Port)},
		{"DB_PATH", c.DBPath},
		{"LOG_LEVEL", c.Log.Level.String()},
		{"LOG_FORMAT", c.Log.Format},
		{"JWT_SECRET", mask(c.Auth.JWTSecret)},
		{"JWT_TTL", c.Auth.TokenTTL.String()},
		{"ALERT_LOW_THRESHOLD", strconv.FormatFloat(c.Alert.LowThreshold, 'f', -1, 64)},
		{"ALERT_HIGH_THRESHOLD", strconv.FormatFloat(c.Alert.HighThreshold, 'f', -1, 64)},
		{"ALERT_ON_SYNCED", strconv.FormatBool(c.Alert.AlertOnSynced)},
		{"SUMMARY_WINDOW", c.Summary.Window.String()},
		{"DEXCOM_BASE_URL", c.Dexcom.BaseURL},
		{"DEXCOM_CLIENT_ID", mask(c.Dexcom.ClientID)},
		{"DEXCOM_ACCESS_TOKEN", mask(c.Dexcom.AccessToken)},
		{"DEXCOM_LOOKBACK", c.Dexcom.Lookback.String()},
		{"SENDGRID_API_KEY", mask(c.Notify.SendGridAPIKey)},
		{"TWILIO_ACCOUNT_SID", mask(c.Notify.TwilioAccountSID)},
		{"ASSISTANT_PROVIDER", c.Assistant.Provider},
		{"OPENAI_API_KEY", mask(c.Assistant.OpenAIAPIKey)},
		{"GEMINI_API_KEY", mask(c.Assistant.GeminiAPIKey)},
		{"REDIS_ADDR", c.Redis.Addr},
	}
}

func mask(s string) string {
	switch {
	case s == "":
		return "(unset)"
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	errs *[]error
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: invalid number %q", key, raw))
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return def
	}
	return v
}
