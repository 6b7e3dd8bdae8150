package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audio-notes-pipeline/internal/domain/model"
)

func TestJobRepo_MissingFileIsEmpty(t *testing.T) {
	repo := NewJobRepo(filepath.Join(t.TempDir(), "jobs.json"))
	jobs, err := repo.Load(context.Background())
	if err != nil || len(jobs) != 0 {
		t.Fatalf("expected empty collection, got %v err=%v", jobs, err)
	}
}

func TestJobRepo_SaveAllRewritesDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "jobs.json")
	repo := NewJobRepo(path)
	now := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)

	a := model.NewJob("01A", "Lecture A", "https://a", now)
	b := model.NewJob("01B", "Lecture B", "https://b", now)
	_ = a.Advance(model.JobStatusChunked, now)
	_ = a.RecordTranscript(1, "part one", now)
	if err := repo.SaveAll(ctx, []*model.Job{a, b}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SaveAll(ctx, []*model.Job{a}); err != nil {
		t.Fatalf("save: %v", err)
	}

	jobs, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "01A" {
		t.Fatalf("expected the second save to replace the document, got %+v", jobs)
	}
	if jobs[0].Status != model.StatusTranscribingChunk(1) || jobs[0].Transcriptions[1] != "part one" {
		t.Fatalf("unexpected job state %+v", jobs[0])
	}

	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), `"1": "part one"`) {
		t.Fatalf("expected transcript keyed by chunk number, got %s", raw)
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".jobs.json.*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestJobRepo_RejectsCorruptStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	if err := os.WriteFile(path, []byte(`[{"id":"1","name":"x","status":"downloading"}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewJobRepo(path).Load(context.Background()); err == nil {
		t.Fatal("expected an error for an unknown status")
	}
}

func TestCredentialRepo_ReadsKeyFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	doc := `{"keys":[{"key":"k1","usage":{"gemini-2.5-flash":3},"exhausted":{"gemini-2.5-flash":true}},{"key":"k2"}],"last_reset_date":"2026-02-09"}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	repo := NewCredentialRepo(path)

	pool, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pool.Keys) != 2 || pool.LastResetDate != "2026-02-09" {
		t.Fatalf("unexpected pool %+v", pool)
	}
	if pool.Keys[0].Usage["gemini-2.5-flash"] != 3 || !pool.Keys[0].Exhausted["gemini-2.5-flash"] {
		t.Fatalf("unexpected counters %+v", pool.Keys[0])
	}
	if pool.Keys[1].Usage == nil || pool.Keys[1].Exhausted == nil {
		t.Fatal("missing maps must be normalized")
	}

	pool.Keys[1].Usage["gemini-2.5-flash"]++
	if err := repo.Save(context.Background(), pool); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, _ := repo.Load(context.Background())
	if again.Keys[1].Usage["gemini-2.5-flash"] != 1 {
		t.Fatalf("expected persisted usage, got %+v", again.Keys[1])
	}
}
