// File: internal/usecase/batch_runner.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/domain"
	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/repository"
)

const batchLockKey = "audio-notes:batch"

// JobExecutor runs one job to completion or failure.
type JobExecutor interface {
	ExecuteJob(ctx context.Context, job *model.Job) error
}

type BatchStats struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
	// Aborted counts jobs moved to failed because an earlier job failed.
	Aborted  int
	Duration time.Duration
}

// BatchRunner processes the pending jobs one at a time. The first failing
// job stops the batch and fails every job still pending.
type BatchRunner struct {
	store   *JobStore
	pipe    JobExecutor
	locker  repository.Locker
	lockTTL time.Duration
	log     *zerolog.Logger
}

func NewBatchRunner(store *JobStore, pipe JobExecutor, locker repository.Locker, lockTTL time.Duration, logger *zerolog.Logger) *BatchRunner {
	l := logger.With().Str("component", "BatchRunner").Logger()
	return &BatchRunner{store: store, pipe: pipe, locker: locker, lockTTL: lockTTL, log: &l}
}

func (r *BatchRunner) RunPending(ctx context.Context) (stats BatchStats, err error) {
	start := time.Now()
	defer func() { stats.Duration = time.Since(start) }()

	if r.locker != nil {
		token, err := r.locker.TryLock(ctx, batchLockKey, r.lockTTL)
		if err != nil {
			return stats, fmt.Errorf("%w: %w", domain.ErrLockHeld, err)
		}
		defer func() {
			if err := r.locker.Unlock(context.WithoutCancel(ctx), batchLockKey, token); err != nil {
				r.log.Warn().Err(err).Msg("could not release batch lock")
			}
		}()
	}

	if err := r.store.Reload(ctx); err != nil {
		return stats, err
	}
	pending := r.store.Pending()
	stats.Total = len(pending)
	if len(pending) == 0 {
		r.log.Info().Msg("no pending jobs")
		return stats, nil
	}
	r.log.Info().Int("pending", len(pending)).Msg("batch started")

	for _, job := range pending {
		if err := ctx.Err(); err != nil {
			r.log.Warn().Msg("batch interrupted")
			return stats, err
		}
		// the snapshot may be stale if jobs were cancelled meanwhile
		cur, err := r.store.Get(job.ID)
		if err != nil || cur.IsTerminal() {
			stats.Skipped++
			continue
		}

		err = r.pipe.ExecuteJob(ctx, cur)
		switch {
		case err == nil:
			stats.Completed++
		case errors.Is(err, domain.ErrJobCancelled), errors.Is(err, domain.ErrJobTerminal):
			stats.Skipped++
		case ctx.Err() != nil:
			r.log.Warn().Str("job_id", cur.ID).Msg("batch interrupted mid-job")
			return stats, ctx.Err()
		default:
			stats.Failed++
			n, fErr := r.store.FailPending(ctx, fmt.Errorf("batch aborted after job %s failed: %w", cur.ID, err))
			if fErr != nil {
				r.log.Error().Err(fErr).Msg("could not fail pending jobs")
			}
			stats.Aborted = n
			r.log.Error().Err(err).Str("job_id", cur.ID).Int("aborted", n).Msg("batch stopped on failure")
			return stats, err
		}
	}
	r.log.Info().Int("completed", stats.Completed).Int("skipped", stats.Skipped).Msg("batch finished")
	return stats, nil
}
