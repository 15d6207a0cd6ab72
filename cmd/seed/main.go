package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	"github.com/shiva-1301/hospiico/internal/appointment"
	"github.com/shiva-1301/hospiico/internal/config"
	"github.com/shiva-1301/hospiico/internal/db"
	"github.com/shiva-1301/hospiico/internal/logging"
	"github.com/shiva-1301/hospiico/internal/seed"
)

func main() {
	perCity := flag.Int("clinics-per-city", 5, "hospitals generated for each demo city")
	seedValue := flag.Uint64("seed", 0, "random seed; 0 picks one")
	force := flag.Bool("force", false, "seed even if hospitals already exist")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic("logger init error: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if cfg.PostgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}

	v, err := db.Migrate(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}
	logger.Info("database migrated", zap.Uint("version", v))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	repo := appointment.NewPgRepository(pool)

	existing, err := repo.ListClinics(ctx)
	if err != nil {
		logger.Fatal("list hospitals", zap.Error(err))
	}
	if len(existing) > 0 && !*force {
		logger.Info("hospitals already present, skipping (use -force to add more)", zap.Int("count", len(existing)))
		return
	}

	start := time.Now()
	sum, err := seed.Seed(ctx, repo, seed.Options{ClinicsPerCity: *perCity, Seed: *seedValue})
	if err != nil {
		logger.Fatal("seed", zap.Error(err), zap.Int("clinics_written", sum.Clinics))
	}

	logger.Info("seed complete",
		zap.Int("clinics", sum.Clinics),
		zap.Int("doctors", sum.Doctors),
		zap.Duration("took", time.Since(start)))
}
