// File: internal/usecase/job_store.go
package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/domain"
	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/repository"
)

var listSeparators = regexp.MustCompile(`[,|\n]`)

// ParseList splits user input on commas, pipes and newlines and drops blanks.
func ParseList(s string) []string {
	var out []string
	for _, part := range listSeparators.Split(s, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JobStore holds the job collection in memory and rewrites the whole
// collection through the repository after every change.
type JobStore struct {
	mu      sync.Mutex
	repo    repository.JobRepository
	jobs    []*model.Job
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
	log     *zerolog.Logger
}

func NewJobStore(repo repository.JobRepository, logger *zerolog.Logger) *JobStore {
	l := logger.With().Str("component", "JobStore").Logger()
	return &JobStore{
		repo:    repo,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
		log:     &l,
	}
}

// Reload replaces the in-memory collection with the stored one. The lock is
// held across the load so no mutation lands between read and swap.
func (s *JobStore) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	s.jobs = jobs
	return nil
}

func (s *JobStore) persistLocked(ctx context.Context) error {
	if err := s.repo.SaveAll(ctx, s.jobs); err != nil {
		return fmt.Errorf("save jobs: %w", err)
	}
	return nil
}

func (s *JobStore) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

// Enqueue adds one queued job per (name, url) pair.
func (s *JobStore) Enqueue(ctx context.Context, names, urls []string) ([]*model.Job, error) {
	if len(names) == 0 || len(names) != len(urls) {
		return nil, fmt.Errorf("%w: %d names for %d urls", domain.ErrInvalidArgument, len(names), len(urls))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	added := make([]*model.Job, 0, len(names))
	for i := range names {
		if strings.TrimSpace(names[i]) == "" || strings.TrimSpace(urls[i]) == "" {
			return nil, fmt.Errorf("%w: empty name or url at %d", domain.ErrInvalidArgument, i)
		}
		id := ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
		added = append(added, model.NewJob(id, names[i], urls[i], now))
	}
	s.jobs = append(s.jobs, added...)
	if err := s.persistLocked(ctx); err != nil {
		s.jobs = s.jobs[:len(s.jobs)-len(added)]
		return nil, err
	}
	out := make([]*model.Job, len(added))
	for i, j := range added {
		out[i] = j.Clone()
	}
	s.log.Info().Int("count", len(added)).Msg("jobs enqueued")
	return out, nil
}

// Pending returns copies of every job that is neither completed nor
// cancelled, in store order.
func (s *JobStore) Pending() []*model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Job
	for _, j := range s.jobs {
		if j.IsPending() {
			out = append(out, j.Clone())
		}
	}
	return out
}

func (s *JobStore) List() []*model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Job, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = j.Clone()
	}
	return out
}

func (s *JobStore) Get(id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j := s.findLocked(id); j != nil {
		return j.Clone(), nil
	}
	return nil, domain.ErrNotFound
}

func (s *JobStore) findLocked(id string) *model.Job {
	for _, j := range s.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// CancelPending moves every non-terminal job to cancelled.
func (s *JobStore) CancelPending(ctx context.Context) (int, error) {
	return s.bulk(ctx, func(j *model.Job, now time.Time) bool { return j.Cancel(now) })
}

// FailPending moves every non-terminal job to failed, keeping its checkpoint.
func (s *JobStore) FailPending(ctx context.Context, cause error) (int, error) {
	return s.bulk(ctx, func(j *model.Job, now time.Time) bool {
		if j.Status == model.JobStatusFailed || j.IsTerminal() {
			return false
		}
		j.Fail(cause, now)
		return true
	})
}

func (s *JobStore) bulk(ctx context.Context, fn func(j *model.Job, now time.Time) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for _, j := range s.jobs {
		if fn(j, now) {
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.persistLocked(ctx)
}

// Commit stores job over its current record and persists the collection.
// A record that became terminal in the meantime (a concurrent cancel) is
// left alone and ErrJobCancelled is returned.
func (s *JobStore) Commit(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.jobs {
		if cur.ID != job.ID {
			continue
		}
		if cur.IsTerminal() && cur.Status != job.Status {
			if cur.Status == model.JobStatusCancelled {
				return fmt.Errorf("%w: %s", domain.ErrJobCancelled, job.ID)
			}
			return fmt.Errorf("%w: %s", domain.ErrJobTerminal, job.ID)
		}
		s.jobs[i] = job.Clone()
		return s.persistLocked(ctx)
	}
	return domain.ErrNotFound
}
