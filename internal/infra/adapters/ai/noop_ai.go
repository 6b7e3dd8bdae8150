package ai

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/domain/ports/adapter"
)

var _ adapter.Generator = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.Generator for local/dev runs.
// It logs requests instead of calling a provider.
type NoopAIAdapter struct {
	log   *zerolog.Logger
	delay time.Duration
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	l := logger.With().Str("component", "noop-ai").Logger()
	return &NoopAIAdapter{log: &l, delay: 100 * time.Millisecond}
}

func (a *NoopAIAdapter) Generate(ctx context.Context, apiKey string, req adapter.GenerateRequest) (string, error) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	a.log.Info().Str("model", req.Model).Str("file", req.FilePath).Int("prompt_len", len(req.Prompt)).Msg("generate")
	if req.FilePath != "" {
		return fmt.Sprintf("noop transcript of %s", filepath.Base(req.FilePath)), nil
	}
	return "# Notes\n\nnoop notes", nil
}
