package index

import "errors"

var (
	// ErrDimensionMismatch indicates a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrVersionMismatch indicates a persisted index written by another format version or model.
	ErrVersionMismatch = errors.New("index version mismatch")

	// ErrCorruptIndex indicates a persisted index that cannot be decoded.
	ErrCorruptIndex = errors.New("corrupt index file")

	// ErrEmptyID indicates a record without an id.
	ErrEmptyID = errors.New("record id cannot be empty")
)
