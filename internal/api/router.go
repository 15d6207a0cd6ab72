package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shiva-1301/hospiico/internal/metrics"
	"github.com/shiva-1301/hospiico/internal/requestlog"
)

const recentRequestsPath = "/api/requests/recent"

type RouterConfig struct {
	Chat     ChatService
	Booking  BookingService
	Requests *requestlog.Ring
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	AllowedOrigins []string
	// ChatRateLimit is requests per second per client IP; zero disables it.
	ChatRateLimit float64
	ChatRateBurst int
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ring := cfg.Requests
	if ring == nil {
		ring = requestlog.NewRing(requestlog.DefaultSize)
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger, cfg.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	r.Use(requestlog.NewRecorder(ring, "/", "/health/live", "/health/ready", "/metrics", recentRequestsPath).Middleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.ChatRateLimit > 0 {
				r.Use(NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateBurst, logger).Middleware)
			}
			r.Post("/chat", chatHandler(cfg.Chat, logger))
			r.Post("/chat/action", chatActionHandler(cfg.Booking, logger))
		})
		r.Get("/requests/recent", recentRequestsHandler(ring))
	})

	return r
}
