package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resumegenie/internal/services/health"
	"resumegenie/internal/shared/config"
	"resumegenie/internal/shared/metrics"
	"resumegenie/internal/shared/server/middleware"
	"resumegenie/internal/shared/server/respond"
)

const (
	apiPrefix    = "/api/v1"
	analyzePath  = apiPrefix + "/resume/analyze"
	webhookPath  = apiPrefix + "/credits/webhook"
	groupAnalyze = "ANALYZE"
	groupDefault = "DEFAULT"
	// groupUnlimited has no rule, so the limiter lets it through.
	groupUnlimited = "UNLIMITED"
)

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps holds everything NewRouter mounts.
type RouterDeps struct {
	Config   config.Config
	Verifier middleware.TokenVerifier
	// Limiter defaults to the in-process token bucket.
	Limiter middleware.Limiter
	Health  *health.Service

	UserHandler     RouteRegistrar
	GoogleAuth      RouteRegistrar
	AnalysisHandler RouteRegistrar
	ExtractHandler  RouteRegistrar
	CreditsHandler  RouteRegistrar
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if !deps.Config.IsDevLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Verifier),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rateLimitRules(deps.Config),
			DefaultGroup: groupDefault,
			GroupFor:     rateLimitGroup,
			Limiter:      deps.Limiter,
		}),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}

	r.GET("/metrics", metrics.Handler())

	api := r.Group(apiPrefix)
	api.GET("/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})

	authGroup := api.Group("/auth")
	mount(authGroup, deps.UserHandler)
	mount(authGroup, deps.GoogleAuth)

	resumeGroup := api.Group("/resume")
	mount(resumeGroup, deps.ExtractHandler)
	mount(resumeGroup, deps.AnalysisHandler)

	mount(api.Group("/credits"), deps.CreditsHandler)

	return r
}

func mount(rg *gin.RouterGroup, h RouteRegistrar) {
	if h == nil {
		return
	}
	h.RegisterRoutes(rg)
}

func rateLimitRules(cfg config.Config) map[string]middleware.RateLimitRule {
	rules := map[string]middleware.RateLimitRule{}
	if cfg.RateLimitAnalyzeRPS > 0 && cfg.RateLimitAnalyzeBurst > 0 {
		rules[groupAnalyze] = middleware.RateLimitRule{Rate: cfg.RateLimitAnalyzeRPS, Burst: cfg.RateLimitAnalyzeBurst}
	}
	if cfg.RateLimitDefaultRPS > 0 && cfg.RateLimitDefaultBurst > 0 {
		rules[groupDefault] = middleware.RateLimitRule{Rate: cfg.RateLimitDefaultRPS, Burst: cfg.RateLimitDefaultBurst}
	}
	return rules
}

// rateLimitGroup keeps scoring on its own bucket and never throttles the
// processor's webhook deliveries.
func rateLimitGroup(c *gin.Context) string {
	switch c.Request.URL.Path {
	case analyzePath:
		if c.Request.Method == http.MethodPost {
			return groupAnalyze
		}
	case webhookPath, apiPrefix + "/health", "/metrics":
		return groupUnlimited
	}
	return groupDefault
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
