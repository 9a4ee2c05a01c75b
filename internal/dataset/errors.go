package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyFile      = errors.New("empty file")
	ErrMissingColumns = errors.New("missing required columns")
	ErrUndecodable    = errors.New("content is neither utf-8 nor latin-1")
)

// LoadError reports a failure to produce a Dataset from a source file.
type LoadError struct {
	Op   string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Permanent reports whether retrying the load cannot help. Missing or
// unreadable files may appear later; malformed content will not fix itself.
func (e *LoadError) Permanent() bool {
	return errors.Is(e.Err, ErrMissingColumns) ||
		errors.Is(e.Err, ErrEmptyFile) ||
		errors.Is(e.Err, ErrUndecodable)
}
