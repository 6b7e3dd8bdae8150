// File: internal/usecase/credential_pool.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/domain"
	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/repository"
	"audio-notes-pipeline/internal/infra/metrics"
)

const resetDateLayout = "2006-01-02"

// CredentialPool hands out API keys per model and keeps their usage. Every
// mutation reads the stored pool, changes it and rewrites it under one lock.
type CredentialPool struct {
	mu   sync.Mutex
	repo repository.CredentialRepository
	loc  *time.Location
	log  *zerolog.Logger
}

func NewCredentialPool(repo repository.CredentialRepository, loc *time.Location, logger *zerolog.Logger) *CredentialPool {
	if loc == nil {
		loc = time.UTC
	}
	l := logger.With().Str("component", "CredentialPool").Logger()
	return &CredentialPool{repo: repo, loc: loc, log: &l}
}

func (p *CredentialPool) mutate(ctx context.Context, fn func(pool *model.CredentialPool) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pool, err := p.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	pool.Normalize()
	if err := fn(pool); err != nil {
		return err
	}
	if err := p.repo.Save(ctx, pool); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// ResetIfNewDay clears every counter and flag once the date in the quota
// zone has moved past the stored reset date.
func (p *CredentialPool) ResetIfNewDay(ctx context.Context, now time.Time) (bool, error) {
	today := now.In(p.loc).Format(resetDateLayout)
	reset := false
	err := p.mutate(ctx, func(pool *model.CredentialPool) error {
		for i := range pool.Keys {
			if pool.Keys[i].LastResetDate == "" {
				pool.Keys[i].LastResetDate = pool.LastResetDate
			}
			if pool.Keys[i].LastResetDate == today {
				continue
			}
			pool.Keys[i].Usage = map[string]int{}
			pool.Keys[i].Exhausted = map[string]bool{}
			pool.Keys[i].LastResetDate = today
			reset = true
		}
		if pool.LastResetDate != today {
			pool.LastResetDate = today
			reset = true
		}
		return nil
	})
	if err == nil && reset {
		metrics.ResetCredentialsExhausted()
		p.log.Info().Str("date", today).Msg("daily quota reset")
	}
	return reset, err
}

// NextAvailable returns the first credential in pool order that is not
// exhausted for model and not listed in skip.
func (p *CredentialPool) NextAvailable(ctx context.Context, modelName string, skip ...string) (model.Credential, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pool, err := p.repo.Load(ctx)
	if err != nil {
		return model.Credential{}, false, fmt.Errorf("load credentials: %w", err)
	}
	pool.Normalize()
	skipped := make(map[string]struct{}, len(skip))
	for _, k := range skip {
		skipped[k] = struct{}{}
	}
	for _, c := range pool.Keys {
		if c.IsExhausted(modelName) {
			continue
		}
		if _, ok := skipped[c.Key]; ok {
			continue
		}
		return c, true, nil
	}
	return model.Credential{}, false, nil
}

// RecordAttempt counts one request against key for model. It is persisted
// before the request is issued.
func (p *CredentialPool) RecordAttempt(ctx context.Context, key, modelName string) error {
	return p.mutate(ctx, func(pool *model.CredentialPool) error {
		i := pool.Index(key)
		if i < 0 {
			return fmt.Errorf("%w: credential", domain.ErrNotFound)
		}
		pool.Keys[i].Usage[modelName]++
		return nil
	})
}

func (p *CredentialPool) MarkExhausted(ctx context.Context, key, modelName string) error {
	exhausted := 0
	err := p.mutate(ctx, func(pool *model.CredentialPool) error {
		i := pool.Index(key)
		if i < 0 {
			return fmt.Errorf("%w: credential", domain.ErrNotFound)
		}
		pool.Keys[i].Exhausted[modelName] = true
		for _, c := range pool.Keys {
			if c.IsExhausted(modelName) {
				exhausted++
			}
		}
		return nil
	})
	if err == nil {
		metrics.SetCredentialsExhausted(modelName, exhausted)
		p.log.Warn().Str("key", model.NewCredential(key).Masked()).Str("model", modelName).Msg("credential exhausted")
	}
	return err
}

func (p *CredentialPool) AddKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrInvalidArgument
	}
	return p.mutate(ctx, func(pool *model.CredentialPool) error {
		if pool.Index(key) >= 0 {
			return domain.ErrAlreadyExists
		}
		c := model.NewCredential(key)
		c.LastResetDate = pool.LastResetDate
		pool.Keys = append(pool.Keys, c)
		return nil
	})
}

func (p *CredentialPool) RemoveKey(ctx context.Context, key string) error {
	return p.mutate(ctx, func(pool *model.CredentialPool) error {
		i := pool.Index(key)
		if i < 0 {
			return domain.ErrNotFound
		}
		pool.Keys = append(pool.Keys[:i], pool.Keys[i+1:]...)
		return nil
	})
}

// List returns a snapshot of the pool in order.
func (p *CredentialPool) List(ctx context.Context) ([]model.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pool, err := p.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	pool.Normalize()
	return pool.Keys, nil
}
