package ai

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"audio-notes-pipeline/internal/domain/ports/adapter"
)

var _ adapter.Generator = (*OpenAIAdapter)(nil)

// OpenAIAdapter serves audio through the transcription endpoint and text
// prompts through chat completions. SDK retries are disabled; the request
// executor owns retry policy.
type OpenAIAdapter struct {
	baseURL string
}

func NewOpenAIAdapter(baseURL string) *OpenAIAdapter {
	return &OpenAIAdapter{baseURL: baseURL}
}

func (o *OpenAIAdapter) client(apiKey string) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		opts = append(opts, option.WithBaseURL(o.baseURL))
	}
	return openai.NewClient(opts...)
}

func (o *OpenAIAdapter) Generate(ctx context.Context, apiKey string, req adapter.GenerateRequest) (string, error) {
	if apiKey == "" {
		return "", adapter.NewGenerationError(adapter.FailureFatal, 0, errors.New("openai: empty api key"))
	}
	c := o.client(apiKey)
	if req.FilePath != "" {
		return o.transcribe(ctx, c, req)
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemInstruction != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemInstruction))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	resp, err := c.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: msgs,
	})
	if err != nil {
		return "", classifyOpenAI(err)
	}
	for _, ch := range resp.Choices {
		if ch.Message.Content != "" {
			return ch.Message.Content, nil
		}
	}
	return "", adapter.NewGenerationError(adapter.FailureFatal, 0, errors.New("openai: no choice content"))
}

func (o *OpenAIAdapter) transcribe(ctx context.Context, c openai.Client, req adapter.GenerateRequest) (string, error) {
	f, err := os.Open(req.FilePath)
	if err != nil {
		return "", adapter.NewGenerationError(adapter.FailureFatal, 0, fmt.Errorf("open %s: %w", req.FilePath, err))
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(req.Model),
	}
	if req.Prompt != "" {
		params.Prompt = openai.String(req.Prompt)
	}
	res, err := c.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if res.Text == "" {
		return "", adapter.NewGenerationError(adapter.FailureFatal, 0, errors.New("openai: empty transcription"))
	}
	return res.Text, nil
}

func classifyOpenAI(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return adapter.NewGenerationError(adapter.FailureTimeout, 0, err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return adapter.NewGenerationError(adapter.KindForStatus(apiErr.StatusCode), apiErr.StatusCode, err)
	}
	return adapter.NewGenerationError(adapter.FailureFatal, 0, err)
}
