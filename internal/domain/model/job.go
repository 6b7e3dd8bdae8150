package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"audio-notes-pipeline/internal/domain"
)

type JobStatus string

const (
	JobStatusQueued         JobStatus = "queued"
	JobStatusDownloaded     JobStatus = "downloaded"
	JobStatusChunked        JobStatus = "chunked"
	JobStatusNotesGenerated JobStatus = "notes_generated"
	JobStatusCompleted      JobStatus = "completed"
	JobStatusFailed         JobStatus = "failed"
	JobStatusCancelled      JobStatus = "cancelled"

	transcribingPrefix = "transcribing_chunk_"
)

// StatusTranscribingChunk is the status recorded once chunk n (1-based) has
// a stored transcript.
func StatusTranscribingChunk(n int) JobStatus {
	return JobStatus(transcribingPrefix + strconv.Itoa(n))
}

// ParseJobStatus accepts only the statuses the pipeline can produce.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(strings.TrimSpace(s))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidStatus, s)
	}
	return st, nil
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusDownloaded, JobStatusChunked, JobStatusNotesGenerated,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	_, ok := s.ChunkIndex()
	return ok
}

// ChunkIndex returns n for transcribing_chunk_n.
func (s JobStatus) ChunkIndex() (int, bool) {
	str := string(s)
	if !strings.HasPrefix(str, transcribingPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(str, transcribingPrefix))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// Rank orders the forward path. failed and cancelled have no rank.
func (s JobStatus) Rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusDownloaded:
		return 1
	case JobStatusChunked:
		return 2
	case JobStatusNotesGenerated:
		return 1 << 20
	case JobStatusCompleted:
		return 1<<20 + 1
	}
	if n, ok := s.ChunkIndex(); ok {
		return 2 + n
	}
	return -1
}

func (s *JobStatus) UnmarshalText(b []byte) error {
	st, err := ParseJobStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s JobStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, string(s))
	}
	return []byte(s), nil
}

type Job struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	URL    string    `json:"url"`
	Status JobStatus `json:"status"`
	// Checkpoint is the last forward status reached; failed jobs resume from it.
	Checkpoint     JobStatus      `json:"checkpoint,omitempty"`
	SourcePath     string         `json:"source_path,omitempty"`
	Chunks         []Chunk        `json:"chunks,omitempty"`
	Transcriptions map[int]string `json:"transcriptions,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	AddedAt        time.Time      `json:"added_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

func NewJob(id, name, url string, now time.Time) *Job {
	return &Job{
		ID:             id,
		Name:           strings.TrimSpace(name),
		URL:            strings.TrimSpace(url),
		Status:         JobStatusQueued,
		Checkpoint:     JobStatusQueued,
		Transcriptions: map[int]string{},
		AddedAt:        now,
		UpdatedAt:      now,
	}
}

func (j *Job) IsTerminal() bool { return j.Status.IsTerminal() }

// IsPending is true for everything the batch runner may still pick up,
// failed jobs included.
func (j *Job) IsPending() bool { return !j.IsTerminal() }

// Stage is the forward status the pipeline continues from.
func (j *Job) Stage() JobStatus {
	if j.Status == JobStatusFailed {
		if j.Checkpoint == "" {
			return JobStatusQueued
		}
		return j.Checkpoint
	}
	return j.Status
}

// Advance moves the job forward. Going backwards or leaving a terminal state
// is rejected.
func (j *Job) Advance(next JobStatus, now time.Time) error {
	if j.IsTerminal() {
		return fmt.Errorf("%w: %s", domain.ErrJobTerminal, j.Status)
	}
	if next.Rank() < 0 {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, j.Status, next)
	}
	if next.Rank() < j.Stage().Rank() {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, j.Stage(), next)
	}
	j.Status = next
	j.Checkpoint = next
	j.LastError = ""
	j.UpdatedAt = now
	if next == JobStatusCompleted {
		t := now
		j.CompletedAt = &t
	}
	return nil
}

// Fail keeps the checkpoint so a later run can resume.
func (j *Job) Fail(cause error, now time.Time) {
	if j.IsTerminal() {
		return
	}
	if j.Status != JobStatusFailed {
		j.Checkpoint = j.Status
	}
	j.Status = JobStatusFailed
	if cause != nil {
		j.LastError = cause.Error()
	}
	j.UpdatedAt = now
}

func (j *Job) Cancel(now time.Time) bool {
	if j.IsTerminal() {
		return false
	}
	j.Status = JobStatusCancelled
	j.UpdatedAt = now
	return true
}

func (j *Job) RecordTranscript(index int, text string, now time.Time) error {
	if j.Transcriptions == nil {
		j.Transcriptions = map[int]string{}
	}
	j.Transcriptions[index] = text
	return j.Advance(StatusTranscribingChunk(index), now)
}

func (j *Job) HasTranscript(index int) bool {
	_, ok := j.Transcriptions[index]
	return ok
}

// FullTranscript concatenates transcripts in ascending chunk order, each
// followed by a blank line.
func (j *Job) FullTranscript() string {
	idx := make([]int, 0, len(j.Transcriptions))
	for i := range j.Transcriptions {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	var b strings.Builder
	for _, i := range idx {
		b.WriteString(j.Transcriptions[i])
		b.WriteString("\n\n")
	}
	return b.String()
}

// SafeName is the file-system friendly form of the job name.
func (j *Job) SafeName() string {
	return strings.NewReplacer(" ", "_", "/", "-").Replace(j.Name)
}

// Clone returns a deep copy so callers can mutate without racing the store.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Chunks != nil {
		cp.Chunks = append([]Chunk(nil), j.Chunks...)
	}
	cp.Transcriptions = make(map[int]string, len(j.Transcriptions))
	for k, v := range j.Transcriptions {
		cp.Transcriptions[k] = v
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
