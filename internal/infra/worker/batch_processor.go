package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/domain"
	"audio-notes-pipeline/internal/usecase"
)

// BatchRunner is the usecase the watch loop drives.
type BatchRunner interface {
	RunPending(ctx context.Context) (usecase.BatchStats, error)
}

// BatchProcessor re-runs the pending batch on every tick. A tick that
// arrives while a batch is still running is skipped.
type BatchProcessor struct {
	runner   BatchRunner
	interval time.Duration
	log      *zerolog.Logger
}

func NewBatchProcessor(runner BatchRunner, interval time.Duration, logger *zerolog.Logger) *BatchProcessor {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "BatchProcessor").Logger()
	return &BatchProcessor{runner: runner, interval: interval, log: &l}
}

// Start runs until ctx is done. This should be run in a goroutine.
func (p *BatchProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Dur("interval", p.interval).Msg("batch processor started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.submit(pool)
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("batch processor stopping")
			return
		case <-ticker.C:
			p.submit(pool)
		}
	}
}

func (p *BatchProcessor) submit(pool *Pool) {
	if err := pool.Submit(p.processOne); errors.Is(err, ErrPoolBusy) {
		p.log.Debug().Msg("previous batch still running, tick skipped")
	}
}

func (p *BatchProcessor) processOne(ctx context.Context) error {
	stats, err := p.runner.RunPending(ctx)
	switch {
	case errors.Is(err, domain.ErrLockHeld):
		p.log.Info().Msg("another runner holds the batch lock")
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	case err != nil:
		p.log.Error().Err(err).Int("completed", stats.Completed).Int("aborted", stats.Aborted).Msg("batch stopped")
		return nil
	}
	if stats.Total > 0 {
		p.log.Info().Int("completed", stats.Completed).Int("skipped", stats.Skipped).Dur("duration", stats.Duration).Msg("batch finished")
	}
	return nil
}
