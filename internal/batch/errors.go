package batch

import (
	"errors"
	"fmt"

	"github.com/fmueller/voxbatch/internal/platform"
)

var (
	ErrNotInitialized     = errors.New("model is not loaded: call Initialize before transcribing")
	ErrAlreadyInitialized = errors.New("controller is already initialized")
	ErrLoadTimeout        = errors.New("model loader finished without reporting a result")
	ErrLoadCancelled      = errors.New("model load cancelled")
	ErrCancelled          = errors.New("batch cancelled")
)

// LoadError is fatal: no file is processed after it.
type LoadError struct {
	Model  string
	Device platform.Device
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s on %s: %v", e.Model, e.Device, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FileError marks one file as not completed. The batch continues past it.
type FileError struct {
	Path  string
	Stage string // "transcribe" or "write"
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
