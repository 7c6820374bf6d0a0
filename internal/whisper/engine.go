package whisper

import (
	"context"
	"time"

	"github.com/fmueller/voxbatch/internal/platform"
)

type Segment struct {
	ID    int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Result is what one inference call produces. Only Text is persisted.
type Result struct {
	Text     string
	Segments []Segment
}

// Duration returns the end of the last segment, which is the best available
// estimate of the audio length. ok is false when there are no segments.
func (r Result) Duration() (d time.Duration, ok bool) {
	if len(r.Segments) == 0 {
		return 0, false
	}
	return r.Segments[len(r.Segments)-1].End, true
}

// Transcriber is a loaded model that turns one audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error)
}

// CacheReleaser is implemented by models that hold transient inference memory
// which can be dropped between files.
type CacheReleaser interface {
	ReleaseCache()
}

// Loader loads a named model onto a device. Loading may block for a long
// time (downloads, checksum verification).
type Loader interface {
	Load(ctx context.Context, name string, device platform.Device) (Transcriber, error)
}

type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	UseGPU    bool
	Options   Options
}

// Engine runs inference against an explicit model file.
type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (Result, error)
}
