package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"audio-notes-pipeline/internal/domain/ports/adapter"
)

var _ adapter.MediaTool = (*FFmpeg)(nil)

// FFmpeg drives the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
	run     commandRunner
}

func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpeg: ffmpegPath, ffprobe: ffprobePath, run: execRunner{}}
}

func (f *FFmpeg) Segment(ctx context.Context, input, outDir, pattern string, segment time.Duration) ([]string, error) {
	if segment <= 0 {
		return nil, fmt.Errorf("segment length must be positive, got %s", segment)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	out := filepath.Join(outDir, pattern)
	args := []string{
		"-y", "-i", input,
		"-f", "segment",
		"-segment_time", strconv.Itoa(int(segment.Seconds())),
		"-c", "copy",
		"-reset_timestamps", "1",
		out,
	}
	if _, err := f.run.Run(ctx, f.ffmpeg, args...); err != nil {
		return nil, err
	}
	return segmentOutputs(out)
}

// segmentOutputs lists the files ffmpeg produced for a %03d pattern, in
// numeric order.
func segmentOutputs(out string) ([]string, error) {
	i := strings.Index(out, "%03d")
	if i < 0 {
		return nil, fmt.Errorf("pattern %q has no %%03d verb", out)
	}
	matches, err := filepath.Glob(out[:i] + "[0-9][0-9][0-9]" + out[i+4:])
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (f *FFmpeg) Reencode(ctx context.Context, input, output, bitrate string) error {
	_, err := f.run.Run(ctx, f.ffmpeg, "-y", "-i", input, "-b:a", bitrate, output)
	return err
}

type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (f *FFmpeg) Duration(ctx context.Context, input string) (time.Duration, error) {
	out, err := f.run.Run(ctx, f.ffprobe, "-v", "quiet", "-print_format", "json", "-show_format", input)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %q: %w", input, err)
	}
	var p probeFormat
	if err := json.Unmarshal(out, &p); err != nil {
		return 0, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	secs, err := strconv.ParseFloat(p.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %q: bad duration %q", input, p.Format.Duration)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
