package storage

import (
	"errors"
	"fmt"
)

var ErrFileNotFound = errors.New("file not found")

// CorruptFileError means the path exists but does not hold a readable
// measurement file.
type CorruptFileError struct {
	Path string
	Err  error
}

func (e *CorruptFileError) Error() string {
	return fmt.Sprintf("corrupt file %s: %v", e.Path, e.Err)
}

func (e *CorruptFileError) Unwrap() error {
	return e.Err
}

// PersistenceError is a failure to store a batch. Op names the step, for
// example "write" or "archive".
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
