package repository

import (
	"context"

	"audio-notes-pipeline/internal/domain/model"
)

// JobRepository persists the whole job collection. SaveAll rewrites the
// complete representation; Load returns it in store order.
type JobRepository interface {
	Load(ctx context.Context) ([]*model.Job, error)
	SaveAll(ctx context.Context, jobs []*model.Job) error
}

// CredentialRepository persists the key pool as one document.
type CredentialRepository interface {
	Load(ctx context.Context) (*model.CredentialPool, error)
	Save(ctx context.Context, pool *model.CredentialPool) error
}
