package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"legislens/internal/analyses"
	"legislens/internal/report"
	"legislens/internal/services/health"
	"legislens/internal/shared/config"
	"legislens/internal/shared/metrics"
	"legislens/internal/shared/server/middleware"
	"legislens/internal/shared/server/respond"
)

const analysisRateGroup = "ANALYSIS"

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analyses.Handler
	ReportHandler   *report.Handler
	Health          *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: rateGroup,
			Rules: map[string]middleware.RateLimitRule{
				analysisRateGroup: {Rate: deps.Config.RateLimitRPS, Burst: deps.Config.RateLimitBurst},
			},
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ok": true})
			return
		}
		respond.OK(c, deps.Health.Status())
	})
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.ReportHandler != nil {
		deps.ReportHandler.RegisterRoutes(api)
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "route not found", nil)
	})

	return r
}

// rateGroup limits only the model-backed analysis routes.
func rateGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodPost && strings.HasPrefix(c.FullPath(), "/api/v1/analyses") {
		return analysisRateGroup
	}
	return ""
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
