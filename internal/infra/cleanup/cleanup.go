package cleanup

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/domain/ports/adapter"
)

var _ adapter.Cleaner = (*Service)(nil)

// PathResolver reports where a job's fetched source lives.
type PathResolver interface {
	ExpectedPath(job *model.Job) string
}

var (
	partialExts  = []string{".part", ".ytdl"}
	downloadExts = []string{".mp3", ".part", ".ytdl", ".m4a", ".webm"}
)

// Service removes intermediate files of the pipeline.
type Service struct {
	tempDir      string
	downloadsDir string
	paths        PathResolver
	log          *zerolog.Logger
}

func NewService(tempDir, downloadsDir string, paths PathResolver, logger *zerolog.Logger) *Service {
	l := logger.With().Str("component", "Cleanup").Logger()
	return &Service{tempDir: tempDir, downloadsDir: downloadsDir, paths: paths, log: &l}
}

// CleanupJob deletes the source and chunk files of a finished job.
func (s *Service) CleanupJob(job *model.Job) error {
	files := make([]string, 0, len(job.Chunks)+1)
	if job.SourcePath != "" {
		files = append(files, job.SourcePath)
	}
	for _, c := range job.Chunks {
		if c.Path != job.SourcePath {
			files = append(files, c.Path)
		}
	}
	var firstErr error
	for _, f := range files {
		if err := s.remove(f); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PurgeJobs removes every file belonging to jobs: temp files carrying the
// job id prefix, the fetched source and partial downloads.
func (s *Service) PurgeJobs(jobs []*model.Job) int {
	n := 0
	temp, _ := os.ReadDir(s.tempDir)
	downloads, _ := os.ReadDir(s.downloadsDir)
	for _, job := range jobs {
		for _, e := range temp {
			name := e.Name()
			if strings.HasPrefix(name, model.ChunkPrefix(job.ID)) || strings.HasPrefix(name, job.ID+"_") {
				if s.removeAll(filepath.Join(s.tempDir, name)) == nil {
					n++
				}
			}
		}
		if s.paths != nil {
			if p := s.paths.ExpectedPath(job); fileExists(p) && s.remove(p) == nil {
				n++
			}
		}
		safe := job.SafeName()
		for _, e := range downloads {
			name := e.Name()
			if strings.HasPrefix(name, safe) && hasExt(name, partialExts) {
				if s.remove(filepath.Join(s.downloadsDir, name)) == nil {
					n++
				}
			}
		}
	}
	s.log.Info().Int("jobs", len(jobs)).Int("files", n).Msg("purged job files")
	return n
}

// PurgeAll empties the temp dir and removes audio and partial downloads.
// .gitkeep placeholders survive.
func (s *Service) PurgeAll() int {
	n := 0
	entries, _ := os.ReadDir(s.tempDir)
	for _, e := range entries {
		if e.Name() == ".gitkeep" {
			continue
		}
		if s.removeAll(filepath.Join(s.tempDir, e.Name())) == nil {
			n++
		}
	}

	entries, _ = os.ReadDir(s.downloadsDir)
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(s.downloadsDir, name)
		switch {
		case name == ".gitkeep":
		case e.IsDir() && name == "temp":
			sub, _ := os.ReadDir(path)
			for _, se := range sub {
				if se.Name() != ".gitkeep" && s.removeAll(filepath.Join(path, se.Name())) == nil {
					n++
				}
			}
		case !e.IsDir() && hasExt(strings.ToLower(name), downloadExts):
			if s.remove(path) == nil {
				n++
			}
		}
	}
	s.log.Info().Int("files", n).Msg("purged all intermediate files")
	return n
}

func (s *Service) remove(path string) error {
	err := os.Remove(path)
	switch {
	case err == nil:
		s.log.Debug().Str("path", path).Msg("deleted")
	case os.IsNotExist(err):
		return nil
	default:
		s.log.Warn().Err(err).Str("path", path).Msg("delete failed")
	}
	return err
}

func (s *Service) removeAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("delete failed")
		return err
	}
	return nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func hasExt(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
