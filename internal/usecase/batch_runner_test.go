package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"audio-notes-pipeline/internal/domain"
	"audio-notes-pipeline/internal/domain/model"
)

func TestBatchRunner_ProcessesSequentially(t *testing.T) {
	h := newPipelineHarness(t, 50)
	jobs := h.enqueue(t, "a", "b", "c")
	runner := NewBatchRunner(h.store, h.pipe, &memLocker{}, time.Hour, nopLogger())

	stats, err := runner.RunPending(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Total != 3 || stats.Completed != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	for i, name := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		if h.exec.transcribed[i] != name {
			t.Fatalf("expected store order, got %v", h.exec.transcribed)
		}
	}
	for _, j := range jobs {
		if got := h.repo.stored(j.ID).Status; got != model.JobStatusCompleted {
			t.Fatalf("expected %s completed, got %s", j.ID, got)
		}
	}
}

func TestBatchRunner_StopsOnFirstFailure(t *testing.T) {
	h := newPipelineHarness(t, 50)
	jobs := h.enqueue(t, "a", "b", "c")
	h.exec.failOn["b.mp3"] = domain.ErrQuotaExhausted
	runner := NewBatchRunner(h.store, h.pipe, nil, 0, nopLogger())

	stats, err := runner.RunPending(context.Background())
	if !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if stats.Completed != 1 || stats.Failed != 1 || stats.Aborted != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := h.repo.stored(jobs[0].ID).Status; got != model.JobStatusCompleted {
		t.Fatalf("first job must stay completed, got %s", got)
	}
	third := h.repo.stored(jobs[2].ID)
	if third.Status != model.JobStatusFailed || third.Checkpoint != model.JobStatusQueued {
		t.Fatalf("untouched job must be failed at queued, got %s/%s", third.Status, third.Checkpoint)
	}
	if len(h.exec.transcribed) != 1 {
		t.Fatalf("third job must not run, transcribed=%v", h.exec.transcribed)
	}
}

func TestBatchRunner_RetriesFailedJobsNextRun(t *testing.T) {
	h := newPipelineHarness(t, 50)
	jobs := h.enqueue(t, "a")
	h.exec.failOn["a.mp3"] = domain.ErrQuotaExhausted
	runner := NewBatchRunner(h.store, h.pipe, nil, 0, nopLogger())
	_, _ = runner.RunPending(context.Background())

	delete(h.exec.failOn, "a.mp3")
	stats, err := runner.RunPending(context.Background())
	if err != nil || stats.Completed != 1 {
		t.Fatalf("expected failed job completed on rerun, stats=%+v err=%v", stats, err)
	}
	if h.fetcher.calls != 1 {
		t.Fatalf("rerun must reuse the download, fetches=%d", h.fetcher.calls)
	}
	if got := h.repo.stored(jobs[0].ID).Status; got != model.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
}

func TestBatchRunner_LockHeld(t *testing.T) {
	h := newPipelineHarness(t, 50)
	h.enqueue(t, "a")
	runner := NewBatchRunner(h.store, h.pipe, &memLocker{held: true}, time.Hour, nopLogger())

	if _, err := runner.RunPending(context.Background()); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
	if len(h.exec.transcribed) != 0 {
		t.Fatal("no job may run without the lock")
	}
}

func TestBatchRunner_InterruptKeepsJobsResumable(t *testing.T) {
	h := newPipelineHarness(t, 50)
	jobs := h.enqueue(t, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	h.exec.cancel = cancel
	runner := NewBatchRunner(h.store, h.pipe, nil, 0, nopLogger())

	_, err := runner.RunPending(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for _, j := range jobs {
		if got := h.repo.stored(j.ID).Status; got == model.JobStatusFailed || got == model.JobStatusCancelled {
			t.Fatalf("interrupted jobs must stay resumable, %s is %s", j.ID, got)
		}
	}
}
