package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/adapter"
)

var _ adapter.Deliverer = (*MarkdownWriter)(nil)

// MarkdownWriter saves notes as <dir>/<safe name>.md.
type MarkdownWriter struct {
	dir string
}

func NewMarkdownWriter(dir string) *MarkdownWriter {
	return &MarkdownWriter{dir: dir}
}

func (w *MarkdownWriter) Name() string { return "markdown" }

// Path is where the notes of job are written.
func (w *MarkdownWriter) Path(job *model.Job) string {
	return filepath.Join(w.dir, job.SafeName()+".md")
}

func (w *MarkdownWriter) Deliver(ctx context.Context, job *model.Job) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := w.Path(job)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(job.Notes), 0o644); err != nil {
		return fmt.Errorf("write notes: %w", err)
	}
	return os.Rename(tmp, path)
}
