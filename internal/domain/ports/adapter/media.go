package adapter

import (
	"context"
	"time"

	"audio-notes-pipeline/internal/domain/model"
)

// Fetcher retrieves a job's source audio and returns the local path.
type Fetcher interface {
	Fetch(ctx context.Context, job *model.Job) (string, error)
	// ExpectedPath is where a completed fetch of job ends up.
	ExpectedPath(job *model.Job) string
}

// MediaTool wraps the external audio toolchain.
type MediaTool interface {
	// Segment splits input without re-encoding into pieces of at most
	// segment length, written to outDir using pattern (printf style %03d).
	Segment(ctx context.Context, input, outDir, pattern string, segment time.Duration) ([]string, error)
	// Reencode writes input to output at the given audio bitrate.
	Reencode(ctx context.Context, input, output, bitrate string) error
	// Duration probes the playing time of a file.
	Duration(ctx context.Context, input string) (time.Duration, error)
}
