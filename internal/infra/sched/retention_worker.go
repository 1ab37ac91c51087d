package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kassag-stack/visionly.ai/internal/domain/ports/repository"
	"github.com/Kassag-stack/visionly.ai/internal/infra/metrics"
	"github.com/Kassag-stack/visionly.ai/internal/infra/redis"
)

// RetentionWorker periodically deletes terminal jobs older than the
// retention window. With a locker configured, only one replica sweeps per
// interval.
type RetentionWorker struct {
	interval  time.Duration
	retention time.Duration
	jobs      repository.JobRepository
	locker    redis.Locker // nil in single-replica setups
	log       *zerolog.Logger
}

const sweepLockKey = "lock:retention_sweep"

func NewRetentionWorker(interval, retention time.Duration, jobs repository.JobRepository, locker redis.Locker, logger *zerolog.Logger) *RetentionWorker {
	sweepLog := logger.With().Str("component", "RetentionWorker").Logger()
	return &RetentionWorker{
		interval:  interval,
		retention: retention,
		jobs:      jobs,
		locker:    locker,
		log:       &sweepLog,
	}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("retention", w.retention).Msg("starting retention worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RetentionWorker) sweep(ctx context.Context) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, sweepLockKey, w.interval/2)
		if err != nil {
			// Another replica holds the lock or redis is down; skip the tick.
			w.log.Debug().Err(err).Msg("sweep lock not acquired")
			return
		}
		defer func() {
			if err := w.locker.Unlock(ctx, sweepLockKey, token); err != nil {
				w.log.Debug().Err(err).Msg("sweep lock not released")
			}
		}()
	}

	cutoff := time.Now().UTC().Add(-w.retention)
	n, err := w.jobs.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		w.log.Error().Err(err).Msg("retention sweep failed")
		return
	}
	if n > 0 {
		metrics.AddJobsSwept(n)
		w.log.Info().Int("count", n).Time("cutoff", cutoff).Msg("terminal jobs swept")
	}
}
