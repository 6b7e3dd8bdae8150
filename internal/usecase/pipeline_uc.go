// File: internal/usecase/pipeline_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/domain"
	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/adapter"
	"audio-notes-pipeline/internal/infra/metrics"
)

const (
	DefaultTranscriptionPrompt = "Transcribe this lecture audio verbatim. Keep the speaker's wording, " +
		"mark unclear passages with [inaudible] and return plain text only."

	// TranscriptPlaceholder in a note prompt template is replaced by the full transcript.
	TranscriptPlaceholder = "{{transcript}}"

	DefaultNotePrompt = "You are preparing study notes from a lecture transcript. Produce well structured " +
		"Markdown notes with headings, key definitions, worked examples and a short summary.\n\n" +
		"Transcript:\n" + TranscriptPlaceholder
)

// Executor runs one generation request with credential handling.
type Executor interface {
	Execute(ctx context.Context, req adapter.GenerateRequest) (string, error)
}

type PipelineConfig struct {
	TranscriptionModel  string
	NoteModel           string
	TranscriptionPrompt string
	NotePrompt          string
}

// Pipeline drives a single job through fetch, chunking, transcription,
// note synthesis and delivery. Each stage is committed before the next one
// starts, so a rerun continues where the last one stopped.
type Pipeline struct {
	store      *JobStore
	fetcher    adapter.Fetcher
	planner    *ChunkPlanner
	exec       Executor
	deliverers []adapter.Deliverer
	cleaner    adapter.Cleaner
	tokens     adapter.TokenCounter
	cfg        PipelineConfig
	now        func() time.Time
	log        *zerolog.Logger
}

func NewPipeline(
	store *JobStore,
	fetcher adapter.Fetcher,
	planner *ChunkPlanner,
	exec Executor,
	deliverers []adapter.Deliverer,
	cleaner adapter.Cleaner,
	tokens adapter.TokenCounter,
	cfg PipelineConfig,
	logger *zerolog.Logger,
) *Pipeline {
	if cfg.TranscriptionPrompt == "" {
		cfg.TranscriptionPrompt = DefaultTranscriptionPrompt
	}
	if cfg.NotePrompt == "" {
		cfg.NotePrompt = DefaultNotePrompt
	}
	l := logger.With().Str("component", "Pipeline").Logger()
	return &Pipeline{
		store:      store,
		fetcher:    fetcher,
		planner:    planner,
		exec:       exec,
		deliverers: deliverers,
		cleaner:    cleaner,
		tokens:     tokens,
		cfg:        cfg,
		now:        time.Now,
		log:        &l,
	}
}

// ExecuteJob runs the remaining stages of job. Terminal jobs are ignored.
// On failure the job is committed as failed and the stage error returned.
func (p *Pipeline) ExecuteJob(ctx context.Context, in *model.Job) error {
	job := in.Clone()
	if job.IsTerminal() {
		return nil
	}
	log := p.log.With().Str("job_id", job.ID).Str("name", job.Name).Logger()
	log.Info().Str("stage", string(job.Stage())).Msg("processing job")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		stage := job.Stage()
		start := p.now()

		var err error
		switch {
		case stage == model.JobStatusQueued:
			err = p.fetch(ctx, job)
		case stage == model.JobStatusDownloaded:
			err = p.chunk(ctx, job)
		case stage == model.JobStatusChunked, isTranscribing(stage):
			if err = p.transcribe(ctx, job, &log); err == nil {
				err = p.synthesize(ctx, job, &log)
			}
		case stage == model.JobStatusNotesGenerated:
			err = p.complete(ctx, job, &log)
		case stage == model.JobStatusCompleted:
			metrics.IncJob(string(model.JobStatusCompleted))
			log.Info().Msg("job completed")
			return nil
		default:
			err = fmt.Errorf("%w: %s", domain.ErrInvalidStatus, stage)
		}
		metrics.ObserveStage(string(stage), p.now().Sub(start))

		if err != nil {
			return p.fail(ctx, job, err, &log)
		}
	}
}

func isTranscribing(s model.JobStatus) bool {
	_, ok := s.ChunkIndex()
	return ok
}

func (p *Pipeline) fail(ctx context.Context, job *model.Job, cause error, log *zerolog.Logger) error {
	if errors.Is(cause, domain.ErrJobCancelled) || errors.Is(cause, domain.ErrJobTerminal) {
		log.Info().Err(cause).Msg("job left the pipeline")
		return cause
	}
	if ctx.Err() != nil {
		// interrupted: keep the last committed stage for the next run
		return ctx.Err()
	}
	job.Fail(cause, p.now())
	if err := p.store.Commit(context.WithoutCancel(ctx), job); err != nil {
		log.Error().Err(err).Msg("could not record job failure")
	}
	metrics.IncJob(string(model.JobStatusFailed))
	log.Error().Err(cause).Str("checkpoint", string(job.Checkpoint)).Msg("job failed")
	return cause
}

func (p *Pipeline) advance(ctx context.Context, job *model.Job, next model.JobStatus) error {
	if err := job.Advance(next, p.now()); err != nil {
		return err
	}
	return p.store.Commit(ctx, job)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// ensureSource makes sure the fetched source is still on disk, refetching
// it without touching the job status if it was removed.
func (p *Pipeline) ensureSource(ctx context.Context, job *model.Job) error {
	if fileExists(job.SourcePath) {
		return nil
	}
	expected := p.fetcher.ExpectedPath(job)
	if fileExists(expected) {
		job.SourcePath = expected
		return nil
	}
	path, err := p.fetcher.Fetch(ctx, job)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
	}
	if !fileExists(path) {
		return fmt.Errorf("%w: %s missing after fetch", domain.ErrFetchFailed, path)
	}
	job.SourcePath = path
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, job *model.Job) error {
	if err := p.ensureSource(ctx, job); err != nil {
		return err
	}
	return p.advance(ctx, job, model.JobStatusDownloaded)
}

func (p *Pipeline) chunk(ctx context.Context, job *model.Job) error {
	if err := p.ensureSource(ctx, job); err != nil {
		return err
	}
	chunks, err := p.planner.Plan(ctx, job.ID, job.SourcePath)
	if err != nil || len(chunks) == 0 {
		if err == nil {
			err = errors.New("no chunks produced")
		}
		return fmt.Errorf("%w: %w", domain.ErrChunkingFailed, err)
	}
	job.Chunks = chunks
	return p.advance(ctx, job, model.JobStatusChunked)
}

// replanIfMissing rebuilds the chunk plan when a chunk that still needs a
// transcript is gone from disk. A job without a recorded plan first adopts
// the chunk files already in the temp dir. Recorded transcripts are kept.
func (p *Pipeline) replanIfMissing(ctx context.Context, job *model.Job, log *zerolog.Logger) error {
	if len(job.Chunks) == 0 {
		if chunks := p.planner.Recover(job.ID); len(chunks) > 0 {
			log.Info().Int("chunks", len(chunks)).Msg("reusing chunk files on disk")
			job.Chunks = chunks
			job.UpdatedAt = p.now()
			if err := p.store.Commit(ctx, job); err != nil {
				return err
			}
		}
	}
	missing := len(job.Chunks) == 0
	for _, c := range job.Chunks {
		if !job.HasTranscript(c.Index) && !fileExists(c.Path) {
			missing = true
			break
		}
	}
	if !missing {
		return nil
	}
	log.Warn().Msg("chunk files missing, planning again")
	if err := p.ensureSource(ctx, job); err != nil {
		return err
	}
	chunks, err := p.planner.Plan(ctx, job.ID, job.SourcePath)
	if err != nil || len(chunks) == 0 {
		if err == nil {
			err = errors.New("no chunks produced")
		}
		return fmt.Errorf("%w: %w", domain.ErrChunkingFailed, err)
	}
	job.Chunks = chunks
	job.UpdatedAt = p.now()
	return p.store.Commit(ctx, job)
}

func (p *Pipeline) transcribe(ctx context.Context, job *model.Job, log *zerolog.Logger) error {
	if err := p.replanIfMissing(ctx, job, log); err != nil {
		return err
	}
	total := len(job.Chunks)
	for _, c := range job.Chunks {
		if job.HasTranscript(c.Index) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info().Int("chunk", c.Index).Int("of", total).Msg("transcribing chunk")
		text, err := p.exec.Execute(ctx, adapter.GenerateRequest{
			Model:    p.cfg.TranscriptionModel,
			Prompt:   p.cfg.TranscriptionPrompt,
			FilePath: c.Path,
		})
		if err != nil {
			return fmt.Errorf("%w: chunk %d: %w", domain.ErrTranscriptionFailed, c.Index, err)
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: chunk %d: empty transcript", domain.ErrTranscriptionFailed, c.Index)
		}
		if err := job.RecordTranscript(c.Index, text, p.now()); err != nil {
			return err
		}
		if err := p.store.Commit(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) notePrompt(transcript string) string {
	if strings.Contains(p.cfg.NotePrompt, TranscriptPlaceholder) {
		return strings.ReplaceAll(p.cfg.NotePrompt, TranscriptPlaceholder, transcript)
	}
	return p.cfg.NotePrompt + "\n\n" + transcript
}

func (p *Pipeline) synthesize(ctx context.Context, job *model.Job, log *zerolog.Logger) error {
	transcript := job.FullTranscript()
	if p.tokens != nil {
		n := p.tokens.Count(transcript)
		metrics.ObserveTranscriptTokens(n)
		log.Info().Int("tokens", n).Int("chunks", len(job.Transcriptions)).Msg("generating notes")
	}
	notes, err := p.exec.Execute(ctx, adapter.GenerateRequest{
		Model:  p.cfg.NoteModel,
		Prompt: p.notePrompt(transcript),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNoteGenerationFailed, err)
	}
	if strings.TrimSpace(notes) == "" {
		return fmt.Errorf("%w: empty response", domain.ErrNoteGenerationFailed)
	}
	job.Notes = notes
	return p.advance(ctx, job, model.JobStatusNotesGenerated)
}

func (p *Pipeline) complete(ctx context.Context, job *model.Job, log *zerolog.Logger) error {
	for _, d := range p.deliverers {
		if err := d.Deliver(ctx, job); err != nil {
			log.Error().Err(fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)).Str("target", d.Name()).Msg("delivery failed")
			metrics.IncDelivery(d.Name(), false)
			continue
		}
		metrics.IncDelivery(d.Name(), true)
	}
	if err := p.advance(ctx, job, model.JobStatusCompleted); err != nil {
		return err
	}
	if p.cleaner != nil {
		if err := p.cleaner.CleanupJob(job); err != nil {
			log.Warn().Err(err).Msg("cleanup failed")
		}
	}
	return nil
}
