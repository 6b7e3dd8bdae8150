package model

import "fmt"

// Chunk is one transcribable piece of a job's audio. Index is 1-based.
type Chunk struct {
	Path  string `json:"path"`
	Index int    `json:"index"`
	JobID string `json:"job_id"`
	Size  int64  `json:"size"`
}

// ChunkPattern is the ffmpeg segment output pattern for a job.
func ChunkPattern(jobID, ext string) string {
	return fmt.Sprintf("job_%s_chunk_%%03d%s", jobID, ext)
}

// ChunkPrefix is shared by every intermediate file of a job.
func ChunkPrefix(jobID string) string {
	return "job_" + jobID + "_"
}
