//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"audio-notes-pipeline/internal/domain/model"
)

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewJobRepo(testPool, NewTxManager(testPool))
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("should keep store order and stage data", func(t *testing.T) {
		cleanup(t)

		a := model.NewJob("01B", "second added first", "https://example.org/a", now)
		b := model.NewJob("01A", "lecture b", "https://example.org/b", now)
		_ = b.Advance(model.JobStatusChunked, now)
		b.SourcePath = "downloads/lecture_b.mp3"
		b.Chunks = []model.Chunk{{Path: "temp/job_01A_chunk_000.mp3", Index: 1, JobID: "01A", Size: 42}}
		b.RecordTranscript(1, "hello", now)
		b.Fail(errors.New("quota"), now)

		if err := repo.SaveAll(ctx, []*model.Job{a, b}); err != nil {
			t.Fatalf("SaveAll failed: %v", err)
		}
		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(got) != 2 || got[0].ID != "01B" || got[1].ID != "01A" {
			t.Fatalf("expected insertion order preserved, got %+v", got)
		}
		loaded := got[1]
		if loaded.Status != model.JobStatusFailed || loaded.Checkpoint != model.JobStatusChunked {
			t.Errorf("expected failed at chunked, got %s/%s", loaded.Status, loaded.Checkpoint)
		}
		if len(loaded.Chunks) != 1 || loaded.Chunks[0].Size != 42 {
			t.Errorf("chunks not round-tripped: %+v", loaded.Chunks)
		}
		if loaded.Transcriptions[1] != "hello" || loaded.LastError != "quota" {
			t.Errorf("stage data lost: %+v", loaded)
		}
	})

	t.Run("should replace the collection on save", func(t *testing.T) {
		cleanup(t)

		j := model.NewJob("01C", "only", "https://example.org/c", now)
		_ = repo.SaveAll(ctx, []*model.Job{j, model.NewJob("01D", "gone", "u", now)})
		if err := repo.SaveAll(ctx, []*model.Job{j}); err != nil {
			t.Fatalf("SaveAll failed: %v", err)
		}
		got, _ := repo.Load(ctx)
		if len(got) != 1 || got[0].ID != "01C" {
			t.Fatalf("expected one job after replace, got %d", len(got))
		}
	})
}

func TestCredentialRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewCredentialRepo(testPool)
	cleanup(t)

	empty, err := repo.Load(ctx)
	if err != nil || len(empty.Keys) != 0 {
		t.Fatalf("expected empty pool, got %+v err=%v", empty, err)
	}

	p := &model.CredentialPool{Keys: []model.Credential{model.NewCredential("key-one-123456")}, LastResetDate: "2026-10-16"}
	p.Keys[0].Usage["gemini-2.5-flash"] = 3
	p.Keys[0].Exhausted["gemini-2.5-flash"] = true
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	p.LastResetDate = "2026-10-17"
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.LastResetDate != "2026-10-17" || !got.Keys[0].IsExhausted("gemini-2.5-flash") || got.Keys[0].UsageFor("gemini-2.5-flash") != 3 {
		t.Fatalf("unexpected pool %+v", got)
	}
}
