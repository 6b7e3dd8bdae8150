// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"audio-notes-pipeline/internal/domain/ports/adapter"
)

var _ adapter.Generator = (*GeminiAdapter)(nil)

// GeminiAdapter talks to the Gemini API through the official SDK. Clients
// are created lazily, one per API key.
type GeminiAdapter struct {
	baseURL      string
	pollInterval time.Duration

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewGeminiAdapter(baseURL string) *GeminiAdapter {
	return &GeminiAdapter{
		baseURL:      baseURL,
		pollInterval: 2 * time.Second,
		clients:      map[string]*genai.Client{},
	}
}

func (g *GeminiAdapter) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: g.baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	g.clients[apiKey] = c
	return c, nil
}

func (g *GeminiAdapter) Generate(ctx context.Context, apiKey string, req adapter.GenerateRequest) (string, error) {
	c, err := g.client(ctx, apiKey)
	if err != nil {
		return "", adapter.NewGenerationError(adapter.FailureFatal, 0, err)
	}

	parts := make([]*genai.Part, 0, 2)
	if req.FilePath != "" {
		f, err := g.upload(ctx, c, req.FilePath)
		if err != nil {
			return "", classifyGemini(err)
		}
		defer func() {
			// uploaded files expire on their own; deletion is best effort
			_, _ = c.Files.Delete(context.WithoutCancel(ctx), f.Name, nil)
		}()
		parts = append(parts, genai.NewPartFromURI(f.URI, f.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	var cfg *genai.GenerateContentConfig
	if req.SystemInstruction != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
		}
	}

	resp, err := c.Models.GenerateContent(ctx, req.Model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return "", classifyGemini(err)
	}
	text := responseText(resp)
	if text == "" {
		return "", adapter.NewGenerationError(adapter.FailureFatal, 0, errors.New("gemini: empty response"))
	}
	return text, nil
}

// upload sends the file and waits until Gemini finishes processing it.
func (g *GeminiAdapter) upload(ctx context.Context, c *genai.Client, path string) (*genai.File, error) {
	f, err := c.Files.UploadFromPath(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", path, err)
	}
	for f.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.pollInterval):
		}
		if f, err = c.Files.Get(ctx, f.Name, nil); err != nil {
			return nil, fmt.Errorf("poll %s: %w", path, err)
		}
	}
	if f.State != genai.FileStateActive {
		return nil, fmt.Errorf("upload %s: file state %s", path, f.State)
	}
	return f, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func classifyGemini(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return adapter.NewGenerationError(adapter.FailureTimeout, 0, err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return adapter.NewGenerationError(adapter.KindForStatus(apiErr.Code), apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return adapter.NewGenerationError(adapter.KindForStatus(apiErrPtr.Code), apiErrPtr.Code, err)
	}
	return adapter.NewGenerationError(adapter.FailureFatal, 0, err)
}
