package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"resumegenie/internal/analyses"
	googleauth "resumegenie/internal/auth"
	"resumegenie/internal/credits"
	"resumegenie/internal/extract"
	"resumegenie/internal/llm"
	"resumegenie/internal/llm/gemini"
	"resumegenie/internal/llm/openai"
	"resumegenie/internal/payments"
	"resumegenie/internal/scoring"
	"resumegenie/internal/services/health"
	"resumegenie/internal/shared/auth"
	"resumegenie/internal/shared/config"
	"resumegenie/internal/shared/server"
	"resumegenie/internal/shared/server/middleware"
	"resumegenie/internal/shared/storage/db"
	"resumegenie/internal/shared/telemetry"
	"resumegenie/internal/users"
)

const defaultOpenAIModel = "gpt-4o-mini"

// AccountRepo stores accounts and their balances in one record.
type AccountRepo interface {
	users.Repo
	credits.Store
}

// AnalysisRepo stores analyses and follows account email changes.
type AnalysisRepo interface {
	analyses.Repo
	users.EmailChangeListener
}

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Redis  *redis.Client

	Accounts AccountRepo
	Analyses AnalysisRepo

	Tokens          *auth.Issuer
	Ledger          *credits.Ledger
	UsersService    *users.Service
	AnalysesService *analyses.Service
	Scorer          *scoring.LLMGateway
	Health          *health.Service
}

// Option overrides a dependency Build would otherwise construct from config.
type Option func(*buildOptions)

type buildOptions struct {
	completer scoring.Completer
	processor payments.Processor
	limiter   middleware.Limiter
}

// WithCompleter replaces the configured LLM provider.
func WithCompleter(c scoring.Completer) Option {
	return func(o *buildOptions) { o.completer = c }
}

// WithProcessor replaces the Stripe processor.
func WithProcessor(p payments.Processor) Option {
	return func(o *buildOptions) { o.processor = p }
}

// WithLimiter replaces the rate limiter backend.
func WithLimiter(l middleware.Limiter) Option {
	return func(o *buildOptions) { o.limiter = l }
}

// Build wires storage, services and handlers into a ready router.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg, Health: health.NewService()}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.Health.Register("database", sqlDB.PingContext)
		app.Accounts = &users.PGRepo{DB: sqlDB}
		app.Analyses = &analyses.PGRepo{DB: sqlDB}
	} else {
		app.Accounts = users.NewMemoryRepo()
		app.Analyses = analyses.NewMemoryRepo()
	}

	limiter := o.limiter
	if limiter == nil {
		redisClient, err := buildRedis(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		if redisClient != nil {
			app.Redis = redisClient
			app.Health.Register("redis", func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			})
			limiter = middleware.NewRedisLimiter(redisClient)
		} else {
			limiter = middleware.NewRateLimiter(nil)
		}
	}

	completer := o.completer
	provider, model := "custom", ""
	if completer == nil {
		completer, provider, model, err = buildCompleter(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	processor := o.processor
	if processor == nil {
		processor = payments.NewStripeProcessor(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.FrontendURL)
	}

	app.Tokens = auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	app.Ledger = credits.NewLedger(app.Accounts)
	app.UsersService = users.NewService(app.Accounts)
	app.UsersService.Listener = app.Analyses
	app.Scorer = scoring.NewGateway(completer, provider, model)
	app.AnalysesService = analyses.NewService(app.Analyses, app.Ledger, app.Scorer)
	if cfg.ScoringTimeout > 0 {
		app.AnalysesService.ScoringTimeout = cfg.ScoringTimeout
	}

	google := googleauth.NewGoogleService(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		cfg.UIRedirectURL,
		app.UsersService,
		app.Tokens,
	)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Verifier:        app.Tokens,
		Limiter:         limiter,
		Health:          app.Health,
		UserHandler:     users.NewHandler(app.UsersService, app.Tokens),
		GoogleAuth:      google,
		AnalysisHandler: analyses.NewHandler(app.AnalysesService, app.UsersService),
		ExtractHandler:  extract.NewHandler(),
		CreditsHandler:  credits.NewHandler(app.Ledger, processor),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":            cfg.Env,
		"storage":        storageKind(sqlDB),
		"redis":          app.Redis != nil,
		"llm_provider":   provider,
		"llm_model":      model,
		"google_enabled": google.Configured(),
	})
	return app, nil
}

// Close releases the database pool and the redis client.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, db.CloseSingleton())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.database_missing", map[string]any{"fallback": "memory"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{"fallback": "memory", "error": err})
			return nil, nil
		}
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = db.CloseSingleton()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"fallback": "in_process", "error": err})
			return nil, nil
		}
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func buildCompleter(ctx context.Context, cfg config.Config) (scoring.Completer, string, string, error) {
	switch cfg.LLMProvider {
	case "openai":
		model := cfg.LLMModel
		if strings.TrimSpace(model) == "" {
			model = defaultOpenAIModel
		}
		client, err := openai.NewClient(cfg.OpenAIAPIKey, model, cfg.ScoringTimeout)
		if err != nil {
			return placeholderOr(cfg, "openai", err)
		}
		return client, "openai", client.Model(), nil
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return placeholderOr(cfg, "gemini", errors.New("GEMINI_API_KEY is required"))
		}
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return placeholderOr(cfg, "gemini", err)
		}
		return client, "gemini", client.Model(), nil
	default:
		return llm.PlaceholderClient{}, "none", "", nil
	}
}

// placeholderOr lets dev run without provider credentials; every analysis
// then fails at scoring and is refunded.
func placeholderOr(cfg config.Config, provider string, err error) (scoring.Completer, string, string, error) {
	if !cfg.IsDevLike() {
		return nil, "", "", fmt.Errorf("configure %s: %w", provider, err)
	}
	telemetry.Warn("bootstrap.llm_unavailable", map[string]any{"provider": provider, "fallback": "none", "error": err})
	return llm.PlaceholderClient{}, "none", "", nil
}

func storageKind(sqlDB *sql.DB) string {
	if sqlDB == nil {
		return "memory"
	}
	return "postgres"
}
