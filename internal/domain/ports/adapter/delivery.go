package adapter

import (
	"context"

	"audio-notes-pipeline/internal/domain/model"
)

// Deliverer publishes the finished notes of a job somewhere outside the pipeline.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, job *model.Job) error
}

// Cleaner removes intermediate files once a job no longer needs them.
type Cleaner interface {
	CleanupJob(job *model.Job) error
}

// TokenCounter estimates the prompt size of a text.
type TokenCounter interface {
	Count(text string) int
}
