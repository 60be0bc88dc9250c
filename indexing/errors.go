package indexing

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrJobRunning is returned when Run is called while the job is already running.
	ErrJobRunning = errors.New("indexing job already running")

	// ErrEmbedderRequired is returned when a job is created without an embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrModelRequired is returned when a job is created without a model name.
	ErrModelRequired = errors.New("model name required")

	// ErrEmbeddingCountMismatch is returned when the embedder returns the wrong number of vectors.
	ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")
)
