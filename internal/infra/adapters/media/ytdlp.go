package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/adapter"
)

var _ adapter.Fetcher = (*YtDlp)(nil)

// YtDlp downloads a job's audio as mp3 into the downloads directory.
type YtDlp struct {
	bin       string
	dir       string
	cookies   string
	userAgent string
	run       commandRunner
}

func NewYtDlp(bin, downloadsDir, cookiesFile, userAgent string) *YtDlp {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &YtDlp{bin: bin, dir: downloadsDir, cookies: cookiesFile, userAgent: userAgent, run: execRunner{}}
}

func (y *YtDlp) ExpectedPath(job *model.Job) string {
	return filepath.Join(y.dir, job.SafeName()+".mp3")
}

func (y *YtDlp) Fetch(ctx context.Context, job *model.Job) (string, error) {
	if job.URL == "" {
		return "", fmt.Errorf("job %s has no url", job.ID)
	}
	if err := os.MkdirAll(y.dir, 0o755); err != nil {
		return "", err
	}
	args := []string{
		"-x", "--audio-format", "mp3",
		"--no-playlist",
		"-o", filepath.Join(y.dir, job.SafeName()+".%(ext)s"),
	}
	if y.cookies != "" {
		if _, err := os.Stat(y.cookies); err == nil {
			args = append(args, "--cookies", y.cookies)
		}
	}
	if y.userAgent != "" {
		args = append(args, "--user-agent", y.userAgent)
	}
	args = append(args, job.URL)

	if _, err := y.run.Run(ctx, y.bin, args...); err != nil {
		return "", err
	}
	return y.ExpectedPath(job), nil
}
