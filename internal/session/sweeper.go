package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunSweeper purges expired sessions once at startup and then every interval
// until ctx is cancelled. onPurged, if set, receives each pass's count.
func RunSweeper(ctx context.Context, p Purger, interval time.Duration, logger *zap.Logger, onPurged func(int)) {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sweep := func() {
		n := SweepOnce(ctx, p, logger)
		if onPurged != nil {
			onPurged(n)
		}
	}

	sweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("session sweeper stopping")
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// SweepOnce runs a single purge pass and returns how many sessions were removed.
func SweepOnce(ctx context.Context, p Purger, logger *zap.Logger) int {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := p.PurgeExpired(runCtx, start)
	if err != nil {
		logger.Error("session purge failed", zap.Error(err))
		return 0
	}
	logger.Info("session purge complete",
		zap.Int("purged", n),
		zap.Duration("took", time.Since(start)),
	)
	return n
}
