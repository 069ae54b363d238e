package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/ScentIQ-Intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree.
type RouterConfig struct {
	IntelligenceHandler *handlers.IntelligenceHandler
	SnapshotHandler     *handlers.SnapshotHandler
	HealthHandler       *handlers.HealthHandler

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// RequestRecorder observes every routed request when set.
	RequestRecorder middleware.RequestRecorder

	RateLimit     config.RateLimitConfig
	MaxBodySize   int64
	SlowThreshold time.Duration

	Logger logging.Logger
}

// NewRouter builds the route tree: probes and metrics at the root, the
// per-user API under /api/v1/users/{userID}.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	logCfg := middleware.DefaultLoggingConfig()
	if cfg.SlowThreshold > 0 {
		logCfg.SlowThreshold = cfg.SlowThreshold
	}
	r.Use(middleware.RequestLogging(logger, logCfg))
	if cfg.RequestRecorder != nil {
		r.Use(middleware.Metrics(cfg.RequestRecorder))
	}

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RateLimit(cfg.RateLimit))
		if cfg.MaxBodySize > 0 {
			api.Use(chimw.RequestSize(cfg.MaxBodySize))
		}
		api.Route("/users/{userID}", func(ur chi.Router) {
			if cfg.IntelligenceHandler != nil {
				cfg.IntelligenceHandler.RegisterRoutes(ur)
			}
			if cfg.SnapshotHandler != nil {
				cfg.SnapshotHandler.RegisterRoutes(ur)
			}
		})
	})

	return r
}
