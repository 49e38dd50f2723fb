package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds application configuration.
type Config struct {
	Env             string   `env:"ENV" envDefault:"dev"`
	Port            string   `env:"PORT" envDefault:"8080"`
	CORSAllowOrigin []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	FrontendURL     string   `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	DatabaseURL string `env:"DATABASE_URL"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	RedisURL    string `env:"REDIS_URL"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"30m"`

	LLMProvider    string        `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMModel       string        `env:"LLM_MODEL"`
	OpenAIAPIKey   string        `env:"OPENAI_API_KEY"`
	GeminiAPIKey   string        `env:"GEMINI_API_KEY"`
	ScoringTimeout time.Duration `env:"SCORING_TIMEOUT" envDefault:"90s"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`
	UIRedirectURL      string `env:"UI_REDIRECT_URL"`

	RateLimitAnalyzeRPS   float64 `env:"RATE_LIMIT_ANALYZE_RPS" envDefault:"0.2"`
	RateLimitAnalyzeBurst int     `env:"RATE_LIMIT_ANALYZE_BURST" envDefault:"3"`
	RateLimitDefaultRPS   float64 `env:"RATE_LIMIT_DEFAULT_RPS" envDefault:"5"`
	RateLimitDefaultBurst int     `env:"RATE_LIMIT_DEFAULT_BURST" envDefault:"20"`

	LogJSON  bool `env:"LOG_JSON" envDefault:"true"`
	LogDebug bool `env:"LOG_DEBUG" envDefault:"false"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.LLMProvider = normalizeProvider(cfg.LLMProvider)
	cfg.CORSAllowOrigin = splitAndTrim(cfg.CORSAllowOrigin)
	cfg.FrontendURL = strings.TrimRight(strings.TrimSpace(cfg.FrontendURL), "/")
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDevLike reports whether in-memory fallbacks are acceptable.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func (c Config) validate() error {
	if c.Env != "production" {
		return nil
	}
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required in production"))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	return errors.Join(errs...)
}

func splitAndTrim(parts []string) []string {
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "google":
		return "gemini"
	case "none", "placeholder", "":
		return "none"
	default:
		return "openai"
	}
}
