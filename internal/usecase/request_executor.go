// File: internal/usecase/request_executor.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/domain"
	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/adapter"
)

type ExecutorConfig struct {
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	OverloadDelay time.Duration
}

// outcome is what one attempt tells the driver loop to do next.
type outcome int

const (
	outcomeSucceed outcome = iota
	outcomeRetry           // same key after RetryDelay, consumes a retry
	outcomeWait            // same key after OverloadDelay, retry budget untouched
	outcomeRotate          // next key, current key untouched
	outcomeExhaust         // mark key exhausted for the model, then next key
	outcomeFail            // give up
)

// RequestExecutor runs one generation request against the credential pool,
// retrying and rotating keys according to how each attempt failed.
type RequestExecutor struct {
	pool  *CredentialPool
	gen   adapter.Generator
	cfg   ExecutorConfig
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	log   *zerolog.Logger
}

func NewRequestExecutor(pool *CredentialPool, gen adapter.Generator, cfg ExecutorConfig, logger *zerolog.Logger) *RequestExecutor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	l := logger.With().Str("component", "RequestExecutor").Logger()
	return &RequestExecutor{
		pool:  pool,
		gen:   gen,
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepCtx,
		log:   &l,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute returns the generated text or the error that ended the request.
// It fails with domain.ErrQuotaExhausted once no usable key is left.
func (e *RequestExecutor) Execute(ctx context.Context, req adapter.GenerateRequest) (string, error) {
	if _, err := e.pool.ResetIfNewDay(ctx, e.now()); err != nil {
		return "", err
	}

	var (
		skip    []string
		lastErr error
	)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		cred, ok, err := e.pool.NextAvailable(ctx, req.Model, skip...)
		if err != nil {
			return "", err
		}
		if !ok {
			if lastErr != nil {
				return "", fmt.Errorf("%w for %s: %w", domain.ErrQuotaExhausted, req.Model, lastErr)
			}
			return "", fmt.Errorf("%w for %s", domain.ErrQuotaExhausted, req.Model)
		}

		text, next, err := e.runKey(ctx, cred, req)
		switch next {
		case outcomeSucceed:
			return text, nil
		case outcomeRotate:
			skip = append(skip, cred.Key)
			lastErr = err
		case outcomeExhaust:
			if mErr := e.pool.MarkExhausted(ctx, cred.Key, req.Model); mErr != nil {
				return "", mErr
			}
			lastErr = err
		default:
			return "", err
		}
	}
}

// runKey drives the attempts made with a single key and reports whether
// the caller should rotate, exhaust the key, or stop.
func (e *RequestExecutor) runKey(ctx context.Context, cred model.Credential, req adapter.GenerateRequest) (string, outcome, error) {
	retries := 0
	for {
		if err := e.pool.RecordAttempt(ctx, cred.Key, req.Model); err != nil {
			return "", outcomeFail, err
		}
		start := e.now()
		text, err := e.attempt(ctx, cred.Key, req)
		next := e.decide(ctx, err, retries)

		ev := e.log.Debug()
		if err != nil {
			ev = e.log.Warn().Err(err)
		}
		ev.Str("model", req.Model).
			Str("key", cred.Masked()).
			Int("retry", retries).
			Dur("elapsed", e.now().Sub(start)).
			Msg("generation attempt")

		switch next {
		case outcomeSucceed:
			return text, next, nil
		case outcomeRetry:
			retries++
			if sErr := e.sleep(ctx, e.cfg.RetryDelay); sErr != nil {
				return "", outcomeFail, sErr
			}
		case outcomeWait:
			e.log.Warn().Str("model", req.Model).Dur("wait", e.cfg.OverloadDelay).Msg("service overloaded, waiting")
			if sErr := e.sleep(ctx, e.cfg.OverloadDelay); sErr != nil {
				return "", outcomeFail, sErr
			}
		default:
			return "", next, err
		}
	}
}

func (e *RequestExecutor) attempt(ctx context.Context, key string, req adapter.GenerateRequest) (string, error) {
	actx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	text, err := e.gen.Generate(actx, key, req)
	if err != nil && ctx.Err() == nil && actx.Err() == context.DeadlineExceeded {
		err = adapter.NewGenerationError(adapter.FailureTimeout, 0, err)
	}
	return text, err
}

func (e *RequestExecutor) decide(ctx context.Context, err error, retries int) outcome {
	if err == nil {
		return outcomeSucceed
	}
	if ctx.Err() != nil {
		return outcomeFail
	}
	switch adapter.Classify(err) {
	case adapter.FailureTimeout:
		if retries < e.cfg.MaxRetries {
			return outcomeRetry
		}
		return outcomeExhaust
	case adapter.FailureRateLimited:
		return outcomeRotate
	case adapter.FailureOverloaded:
		return outcomeWait
	default:
		return outcomeFail
	}
}
