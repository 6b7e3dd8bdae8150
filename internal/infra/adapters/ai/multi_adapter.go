// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"fmt"
	"strings"

	"audio-notes-pipeline/internal/domain/ports/adapter"
)

var _ adapter.Generator = (*MultiAIAdapter)(nil)

// MultiAIAdapter routes each request to a provider by model name.
type MultiAIAdapter struct {
	defaultProvider string // e.g., "openai" or "gemini"
	byProvider      map[string]adapter.Generator
	modelToProvider map[string]string // model -> provider ("openai" | "gemini")
}

func NewMultiAIAdapter(
	defaultProvider string,
	byProvider map[string]adapter.Generator,
	modelToProvider map[string]string,
) *MultiAIAdapter {
	return &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
}

// ResolveProvider names the provider a model is routed to.
func (m *MultiAIAdapter) ResolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "whisper"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

func (m *MultiAIAdapter) Generate(ctx context.Context, apiKey string, req adapter.GenerateRequest) (string, error) {
	prov := m.ResolveProvider(req.Model)
	g := m.byProvider[prov]
	if g == nil {
		return "", adapter.NewGenerationError(adapter.FailureFatal, 0, fmt.Errorf("no provider %q for model %q", prov, req.Model))
	}
	return g.Generate(ctx, apiKey, req)
}
