package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shiva-1301/hospiico/internal/api"
	"github.com/shiva-1301/hospiico/internal/appointment"
	"github.com/shiva-1301/hospiico/internal/booking"
	"github.com/shiva-1301/hospiico/internal/chat"
	"github.com/shiva-1301/hospiico/internal/config"
	"github.com/shiva-1301/hospiico/internal/db"
	"github.com/shiva-1301/hospiico/internal/llm"
	"github.com/shiva-1301/hospiico/internal/logging"
	"github.com/shiva-1301/hospiico/internal/metrics"
	redisclient "github.com/shiva-1301/hospiico/internal/redis"
	"github.com/shiva-1301/hospiico/internal/requestlog"
	"github.com/shiva-1301/hospiico/internal/seed"
	"github.com/shiva-1301/hospiico/internal/session"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic("logger init error: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	repo, pgPool := openCatalog(rootCtx, cfg, logger)
	if pgPool != nil {
		defer pgPool.Close()
	}

	var (
		rdb      *redis.Client
		sessions session.Store
		locker   redisclient.Locker
	)
	lockOpts := redisclient.LockOptions{TTL: cfg.LockTTL, Wait: cfg.LockWait}
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Fatal("redis connection error", zap.Error(err))
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", zap.Error(err))
			}
		}()
		logger.Info("connected to Redis")

		sessions = session.NewRedisStore(rdb, session.RedisStoreOptions{TTL: cfg.SessionTTL})
		locker = redisclient.NewRedisLocker(rdb, lockOpts)
	} else {
		logger.Warn("REDIS_ADDR not set, keeping sessions in memory")
		store := session.NewMemoryStore(cfg.SessionTTL, time.Now)
		sessions = store
		locker = redisclient.NewLocalLocker(lockOpts)

		// no expiry-worker in this mode, sweep in-process
		go session.RunSweeper(rootCtx, store, cfg.WorkerInterval, logger.Named("sweeper"), m.AddPurged)
	}

	completions, closeLLM, err := llm.New(rootCtx, llm.Options{
		GroqAPIKey:   cfg.LLM.GroqAPIKey,
		GroqBaseURL:  cfg.LLM.GroqBaseURL,
		GroqModel:    cfg.LLM.GroqModel,
		GeminiAPIKey: cfg.LLM.GeminiAPIKey,
		GeminiModel:  cfg.LLM.GeminiModel,
		Timeout:      cfg.LLM.Timeout,
	}, logger.Named("llm"))
	if err != nil {
		logger.Fatal("completion client error", zap.Error(err))
	}
	defer func() { _ = closeLLM() }()
	if !cfg.LLM.Configured() {
		logger.Warn("no GROQ_API_KEY or GEMINI_API_KEY set, /api/chat completions will answer 503")
	}

	chatSvc := chat.NewService(completions, sessions, repo, chat.Options{
		Metrics: m,
		Logger:  logger.Named("chat"),
	})
	bookings := appointment.NewService(repo, locker, logger.Named("appointment"))
	bookingSvc := booking.NewService(sessions, repo, bookings, locker, booking.Options{
		Location: cfg.Location(),
		Metrics:  m,
		Logger:   logger.Named("booking"),
	})

	router := api.NewRouter(api.RouterConfig{
		Chat:           chatSvc,
		Booking:        bookingSvc,
		Requests:       requestlog.NewRing(cfg.RequestLogSize),
		PgPool:         pgPool,
		Redis:          rdb,
		Logger:         logger.Named("http"),
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		AllowedOrigins: cfg.AllowedOrigins,
		ChatRateLimit:  cfg.ChatRateLimit,
		ChatRateBurst:  cfg.ChatRateBurst,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// completions may take up to the LLM timeout
		WriteTimeout: cfg.LLM.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openCatalog connects Postgres when a DSN is configured, otherwise it
// returns an in-memory catalog filled with demo data.
func openCatalog(ctx context.Context, cfg config.Config, logger *zap.Logger) (appointment.Repository, *pgxpool.Pool) {
	if cfg.PostgresDSN == "" {
		repo := appointment.NewMemoryRepository()
		sum, err := seed.Seed(ctx, repo, seed.Options{ClinicsPerCity: 3, Seed: 1, UnmappedEvery: 7})
		if err != nil {
			logger.Fatal("seed in-memory catalog", zap.Error(err))
		}
		logger.Warn("POSTGRES_DSN not set, using in-memory demo catalog",
			zap.Int("clinics", sum.Clinics),
			zap.Int("doctors", sum.Doctors))
		return repo, nil
	}

	if cfg.MigrateOnStart {
		v, err := db.Migrate(cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("migration error", zap.Error(err))
		}
		logger.Info("database migrated", zap.Uint("version", v))
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	logger.Info("connected to Postgres")
	return appointment.NewPgRepository(pool), pool
}
