package elfload

import "errors"

// ErrNotFound and ErrOutOfMemory are the loader's recoverable failures
// (spec §7: "file not found in the loader", and OOM during segment/stack
// mapping).
var (
	ErrNotFound    = errors.New("elfload: file not found")
	ErrOutOfMemory = errors.New("elfload: out of memory while loading")
)
