package adapter

import (
	"context"
	"errors"
	"fmt"

	"audio-notes-pipeline/internal/domain"
)

// GenerateRequest is one call to a generative model. FilePath, when set,
// is uploaded and attached to the prompt (audio transcription).
type GenerateRequest struct {
	Model             string
	Prompt            string
	SystemInstruction string
	FilePath          string
}

// Generator is the port for text generation against a single API key.
type Generator interface {
	Generate(ctx context.Context, apiKey string, req GenerateRequest) (string, error)
}

// FailureKind classifies a failed generation call for the request executor.
type FailureKind int

const (
	FailureFatal FailureKind = iota
	FailureTimeout
	FailureRateLimited
	FailureOverloaded
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureRateLimited:
		return "rate_limited"
	case FailureOverloaded:
		return "overloaded"
	default:
		return "fatal"
	}
}

// GenerationError carries the classification providers assign to a failure.
type GenerationError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is maps the classification onto the domain sentinels.
func (e *GenerationError) Is(target error) bool {
	switch e.Kind {
	case FailureTimeout:
		return target == domain.ErrTimeout
	case FailureRateLimited:
		return target == domain.ErrRateLimited
	case FailureOverloaded:
		return target == domain.ErrOverloaded
	default:
		return target == domain.ErrFatalResponse
	}
}

func NewGenerationError(kind FailureKind, status int, err error) *GenerationError {
	return &GenerationError{Kind: kind, StatusCode: status, Err: err}
}

// Classify reads the failure kind of err. Deadline overruns count as
// timeouts; anything unrecognised is fatal.
func Classify(err error) FailureKind {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrTimeout):
		return FailureTimeout
	case errors.Is(err, domain.ErrRateLimited):
		return FailureRateLimited
	case errors.Is(err, domain.ErrOverloaded):
		return FailureOverloaded
	}
	return FailureFatal
}

// KindForStatus maps an HTTP status code to a failure kind.
func KindForStatus(code int) FailureKind {
	switch code {
	case 429:
		return FailureRateLimited
	case 503:
		return FailureOverloaded
	case 408, 504:
		return FailureTimeout
	}
	return FailureFatal
}
