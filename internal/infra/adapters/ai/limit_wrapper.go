package ai

import (
	"context"
	"time"

	"audio-notes-pipeline/internal/domain/ports/adapter"
	"audio-notes-pipeline/internal/infra/metrics"
)

// Compile-time check
var _ adapter.Generator = (*limitedAI)(nil)

// ProviderResolver names the provider serving a model, for metric labels.
type ProviderResolver interface {
	ResolveProvider(model string) string
}

type limitedAI struct {
	inner    adapter.Generator
	resolver ProviderResolver
	sem      chan struct{}
}

// NewLimitedAI bounds concurrent calls to inner and records request metrics.
// maxConcurrent <= 0 disables the bound.
func NewLimitedAI(inner adapter.Generator, resolver ProviderResolver, maxConcurrent int) adapter.Generator {
	l := &limitedAI{inner: inner, resolver: resolver}
	if maxConcurrent > 0 {
		l.sem = make(chan struct{}, maxConcurrent)
	}
	return l
}

func (l *limitedAI) Generate(ctx context.Context, apiKey string, req adapter.GenerateRequest) (string, error) {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		defer func() { <-l.sem }()
	}

	provider := "unknown"
	if l.resolver != nil {
		provider = l.resolver.ResolveProvider(req.Model)
	}
	start := time.Now()
	out, err := l.inner.Generate(ctx, apiKey, req)
	outcome := "ok"
	if err != nil {
		outcome = adapter.Classify(err).String()
	}
	metrics.ObserveAIRequest(provider, req.Model, outcome, time.Since(start))
	return out, err
}
