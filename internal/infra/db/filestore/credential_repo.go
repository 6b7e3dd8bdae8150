package filestore

import (
	"context"
	"sync"

	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/repository"
)

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// CredentialRepo stores the key pool as
// {"keys":[{"key","usage":{},"exhausted":{},"last_reset_date"}],"last_reset_date":"YYYY-MM-DD"}.
type CredentialRepo struct {
	mu   sync.Mutex
	path string
}

func NewCredentialRepo(path string) *CredentialRepo {
	return &CredentialRepo{path: path}
}

func (r *CredentialRepo) Load(ctx context.Context) (*model.CredentialPool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pool model.CredentialPool
	if _, err := readJSON(r.path, &pool); err != nil {
		return nil, err
	}
	pool.Normalize()
	return &pool, nil
}

func (r *CredentialRepo) Save(ctx context.Context, pool *model.CredentialPool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pool.Keys == nil {
		pool.Keys = []model.Credential{}
	}
	return writeJSON(r.path, pool)
}
