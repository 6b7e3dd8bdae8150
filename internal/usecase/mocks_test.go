// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/adapter"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memJobRepo keeps the serialized collection so tests see exactly what a
// whole-file rewrite would have stored.
type memJobRepo struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	saveErr error
}

func (m *memJobRepo) Load(ctx context.Context) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.data) == 0 {
		return nil, nil
	}
	var jobs []*model.Job
	if err := json.Unmarshal(m.data, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (m *memJobRepo) SaveAll(ctx context.Context, jobs []*model.Job) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	b, err := json.Marshal(jobs)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = b
	m.saves++
	return nil
}

func (m *memJobRepo) stored(id string) *model.Job {
	jobs, _ := m.Load(context.Background())
	for _, j := range jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// memCredRepo round-trips the pool through JSON on every call.
type memCredRepo struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func newMemCredRepo(keys ...string) *memCredRepo {
	p := model.CredentialPool{}
	for _, k := range keys {
		p.Keys = append(p.Keys, model.NewCredential(k))
	}
	b, _ := json.Marshal(p)
	return &memCredRepo{data: b}
}

func (m *memCredRepo) Load(ctx context.Context) (*model.CredentialPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var p model.CredentialPool
	if err := json.Unmarshal(m.data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *memCredRepo) Save(ctx context.Context, p *model.CredentialPool) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = b
	m.saves++
	return nil
}

func (m *memCredRepo) pool() *model.CredentialPool {
	p, _ := m.Load(context.Background())
	return p
}

// scriptedGenerator answers calls from a per-key script; the last entry repeats.
type scriptedGenerator struct {
	mu     sync.Mutex
	script map[string][]func(ctx context.Context) (string, error)
	calls  []string
	// onCall runs before the script entry, e.g. to inspect persisted usage.
	onCall func(key string)
}

func (g *scriptedGenerator) Generate(ctx context.Context, apiKey string, req adapter.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, apiKey)
	steps := g.script[apiKey]
	var step func(ctx context.Context) (string, error)
	if len(steps) > 0 {
		step = steps[0]
		if len(steps) > 1 {
			g.script[apiKey] = steps[1:]
		}
	}
	onCall := g.onCall
	g.mu.Unlock()

	if onCall != nil {
		onCall(apiKey)
	}
	if step == nil {
		return "", fmt.Errorf("no script for %s", apiKey)
	}
	return step(ctx)
}

func reply(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func failWith(kind adapter.FailureKind, code int) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		return "", adapter.NewGenerationError(kind, code, fmt.Errorf("status %d", code))
	}
}

// stubExecutor answers by model and records transcribed files.
type stubExecutor struct {
	mu          sync.Mutex
	transcribed []string
	notePrompts []string
	failOn      map[string]error // keyed by file base name or "notes"
	cancel      func()           // called after the first transcription
}

func (s *stubExecutor) Execute(ctx context.Context, req adapter.GenerateRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.FilePath != "" {
		base := filepath.Base(req.FilePath)
		if err := s.failOn[base]; err != nil {
			return "", err
		}
		s.transcribed = append(s.transcribed, base)
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		return "text of " + base, nil
	}
	if err := s.failOn["notes"]; err != nil {
		return "", err
	}
	s.notePrompts = append(s.notePrompts, req.Prompt)
	return "# Notes", nil
}

// fakeMedia writes segment files of fixed sizes into the output directory.
type fakeMedia struct {
	segmentSizes []int64
	segmentErr   error
	reencodeSize int64
	reencodeErr  error
	segments     int
	reencoded    []string
}

func (f *fakeMedia) Segment(ctx context.Context, input, outDir, pattern string, segment time.Duration) ([]string, error) {
	f.segments++
	if f.segmentErr != nil {
		return nil, f.segmentErr
	}
	var out []string
	for i, size := range f.segmentSizes {
		p := filepath.Join(outDir, fmt.Sprintf(pattern, i))
		if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeMedia) Reencode(ctx context.Context, input, output, bitrate string) error {
	f.reencoded = append(f.reencoded, filepath.Base(input))
	if f.reencodeErr != nil {
		return f.reencodeErr
	}
	return os.WriteFile(output, make([]byte, f.reencodeSize), 0o644)
}

func (f *fakeMedia) Duration(ctx context.Context, input string) (time.Duration, error) {
	return time.Minute, nil
}

// stubFetcher writes a source file of a fixed size.
type stubFetcher struct {
	dir   string
	size  int64
	err   error
	calls int
}

func (f *stubFetcher) ExpectedPath(job *model.Job) string {
	return filepath.Join(f.dir, job.SafeName()+".mp3")
}

func (f *stubFetcher) Fetch(ctx context.Context, job *model.Job) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	p := f.ExpectedPath(job)
	return p, os.WriteFile(p, make([]byte, f.size), 0o644)
}

type recDeliverer struct {
	name  string
	err   error
	jobs  []string
	notes []string
}

func (d *recDeliverer) Name() string { return d.name }

func (d *recDeliverer) Deliver(ctx context.Context, job *model.Job) error {
	d.jobs = append(d.jobs, job.ID)
	d.notes = append(d.notes, job.Notes)
	return d.err
}

type recCleaner struct{ jobs []string }

func (c *recCleaner) CleanupJob(job *model.Job) error {
	c.jobs = append(c.jobs, job.ID)
	return nil
}

type lenCounter struct{}

func (lenCounter) Count(text string) int { return len(strings.Fields(text)) }

type memLocker struct {
	held bool
}

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.held {
		return "", fmt.Errorf("held")
	}
	l.held = true
	return "tok", nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.held = false
	return nil
}
