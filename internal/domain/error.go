package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("could not read database row")

	// Job lifecycle
	ErrInvalidStatus     = errors.New("invalid job status")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrJobCancelled      = errors.New("job was cancelled")
	ErrJobTerminal       = errors.New("job is in a terminal state")

	// Pipeline stages
	ErrFetchFailed          = errors.New("source fetch failed")
	ErrChunkingFailed       = errors.New("audio chunking failed")
	ErrTranscriptionFailed  = errors.New("transcription failed")
	ErrNoteGenerationFailed = errors.New("note generation failed")
	ErrDeliveryFailed       = errors.New("note delivery failed")

	// Generative service access
	ErrQuotaExhausted = errors.New("no usable api credential left")
	ErrRateLimited    = errors.New("request rate limited")
	ErrTimeout        = errors.New("request timed out")
	ErrOverloaded     = errors.New("service overloaded")
	ErrFatalResponse  = errors.New("fatal service response")

	ErrLockHeld = errors.New("batch lock is held by another runner")
)
