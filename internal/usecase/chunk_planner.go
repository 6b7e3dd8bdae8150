// File: internal/usecase/chunk_planner.go
package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/adapter"
	"audio-notes-pipeline/internal/infra/metrics"
)

type PlannerConfig struct {
	// SizeCeiling is the largest upload the transcription model accepts, exclusive.
	SizeCeiling     int64
	SegmentLength   time.Duration
	ReencodeBitrate string
	TempDir         string
}

// ChunkPlanner splits a source file into pieces that fit under the size ceiling.
type ChunkPlanner struct {
	tool adapter.MediaTool
	cfg  PlannerConfig
	log  *zerolog.Logger
}

func NewChunkPlanner(tool adapter.MediaTool, cfg PlannerConfig, logger *zerolog.Logger) *ChunkPlanner {
	l := logger.With().Str("component", "ChunkPlanner").Logger()
	return &ChunkPlanner{tool: tool, cfg: cfg, log: &l}
}

// Plan returns the ordered chunks for input. A file below the ceiling is
// returned as its only chunk. An empty result means segmentation failed.
func (p *ChunkPlanner) Plan(ctx context.Context, jobID, input string) ([]model.Chunk, error) {
	fi, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if fi.Size() < p.cfg.SizeCeiling {
		metrics.IncChunksPlanned("whole", 1)
		return []model.Chunk{{Path: input, Index: 1, JobID: jobID, Size: fi.Size()}}, nil
	}

	ext := filepath.Ext(input)
	if ext == "" {
		ext = ".mp3"
	}
	if err := os.MkdirAll(p.cfg.TempDir, 0o755); err != nil {
		return nil, err
	}
	if d, err := p.tool.Duration(ctx, input); err == nil && p.cfg.SegmentLength > 0 {
		p.log.Debug().Str("job_id", jobID).Dur("duration", d).
			Int("expected_pieces", int((d+p.cfg.SegmentLength-1)/p.cfg.SegmentLength)).Msg("splitting source")
	}
	pieces, err := p.tool.Segment(ctx, input, p.cfg.TempDir, model.ChunkPattern(jobID, ext), p.cfg.SegmentLength)
	if err != nil {
		p.log.Error().Err(err).Str("job_id", jobID).Str("input", input).Msg("segmentation failed")
		return []model.Chunk{}, err
	}
	sort.Strings(pieces)

	chunks := make([]model.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		path, size := p.shrink(ctx, jobID, piece, ext)
		chunks = append(chunks, model.Chunk{Path: path, Index: i + 1, JobID: jobID, Size: size})
	}
	metrics.IncChunksPlanned("segment", len(chunks))
	p.log.Info().Str("job_id", jobID).Int("chunks", len(chunks)).Int64("source_bytes", fi.Size()).Msg("audio split")
	return chunks, nil
}

// shrink re-encodes a piece still at or above the ceiling. The re-encoded
// file replaces the piece whatever its size; on failure the piece is kept.
func (p *ChunkPlanner) shrink(ctx context.Context, jobID, piece, ext string) (string, int64) {
	fi, err := os.Stat(piece)
	if err != nil {
		return piece, 0
	}
	if fi.Size() < p.cfg.SizeCeiling {
		return piece, fi.Size()
	}

	tmp := strings.TrimSuffix(piece, ext) + "_reenc" + ext
	if err := p.tool.Reencode(ctx, piece, tmp, p.cfg.ReencodeBitrate); err != nil {
		p.log.Warn().Err(err).Str("job_id", jobID).Str("chunk", piece).Msg("re-encode failed, keeping oversized chunk")
		_ = os.Remove(tmp)
		return piece, fi.Size()
	}
	if err := os.Rename(tmp, piece); err != nil {
		p.log.Warn().Err(err).Str("chunk", piece).Msg("could not replace chunk with re-encoded file")
		return piece, fi.Size()
	}
	metrics.IncChunksPlanned("reencoded", 1)
	if nfi, err := os.Stat(piece); err == nil {
		if nfi.Size() >= p.cfg.SizeCeiling {
			p.log.Warn().Str("chunk", piece).Int64("bytes", nfi.Size()).Msg("re-encoded chunk still above ceiling")
		}
		return piece, nfi.Size()
	}
	return piece, fi.Size()
}

// Existing lists chunk files of a job that are already on disk, in order.
func (p *ChunkPlanner) Existing(jobID string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(p.cfg.TempDir, model.ChunkPrefix(jobID)+"chunk_*"))
	if err != nil {
		return nil, err
	}
	files := matches[:0]
	for _, m := range matches {
		if strings.Contains(filepath.Base(m), "_reenc") {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}

// Recover rebuilds a job's chunk list from the files a previous run left in
// the temp dir. Nil means nothing usable was found.
func (p *ChunkPlanner) Recover(jobID string) []model.Chunk {
	files, err := p.Existing(jobID)
	if err != nil || len(files) == 0 {
		return nil
	}
	chunks := make([]model.Chunk, 0, len(files))
	for i, f := range files {
		fi, err := os.Stat(f)
		if err != nil {
			return nil
		}
		chunks = append(chunks, model.Chunk{Path: f, Index: i + 1, JobID: jobID, Size: fi.Size()})
	}
	return chunks
}
