package filestore

import (
	"context"
	"sync"

	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*JobRepo)(nil)

type JobRepo struct {
	mu   sync.Mutex
	path string
}

func NewJobRepo(path string) *JobRepo {
	return &JobRepo{path: path}
}

// Load returns the stored jobs; a missing file is an empty collection.
func (r *JobRepo) Load(ctx context.Context) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []*model.Job
	if _, err := readJSON(r.path, &jobs); err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if j.Transcriptions == nil {
			j.Transcriptions = map[int]string{}
		}
	}
	return jobs, nil
}

func (r *JobRepo) SaveAll(ctx context.Context, jobs []*model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if jobs == nil {
		jobs = []*model.Job{}
	}
	return writeJSON(r.path, jobs)
}
