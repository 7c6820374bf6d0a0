package batch

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Summary is the in-memory record of one run. It is not persisted.
type Summary struct {
	RunID          string
	Total          int
	Processed      int
	Skipped        int
	Failed         int
	TranscribeTime time.Duration
	AudioDuration  time.Duration
	OutputDir      string
	Outcome        State
}

// Remaining counts files that still have no transcript after the run.
func (s Summary) Remaining() int {
	return max(s.Total-s.Processed-s.Skipped, 0)
}

// OverallSpeed reports the aggregate real-time factor. ok is false when
// nothing was timed.
func (s Summary) OverallSpeed() (factor float64, ok bool) {
	if s.TranscribeTime <= 0 || s.AudioDuration <= 0 {
		return 0, false
	}
	return SpeedFactor(s.AudioDuration, s.TranscribeTime), true
}

func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	switch s.Outcome {
	case StateCompleted:
		fmt.Fprintln(w, "Transcription complete")
	case StateCancelled:
		fmt.Fprintln(w, "Transcription cancelled")
	default:
		fmt.Fprintln(w, "Transcription partially complete")
	}
	fmt.Fprintln(w, strings.Repeat("=", 50))

	fmt.Fprintf(w, "Files processed: %d/%d", s.Processed, s.Total)
	if s.Skipped > 0 || s.Failed > 0 {
		fmt.Fprintf(w, " (%d skipped, %d failed)", s.Skipped, s.Failed)
	}
	fmt.Fprintln(w)

	if s.Processed > 0 {
		fmt.Fprintf(w, "Total transcribe time: %s\n", s.TranscribeTime.Round(100*time.Millisecond))
		fmt.Fprintf(w, "Total audio duration: %s\n", s.AudioDuration.Round(100*time.Millisecond))
	}
	if factor, ok := s.OverallSpeed(); ok {
		fmt.Fprintf(w, "Overall speed: %.1fx real time\n", factor)
	}
	fmt.Fprintf(w, "Transcripts saved to: %s\n", s.OutputDir)

	if remaining := s.Remaining(); remaining > 0 {
		fmt.Fprintf(w, "%d file(s) still without a transcript. Run again to resume; finished files are skipped.\n", remaining)
	}
}

const blankAudioToken = "[BLANK_AUDIO]"

func isBlankTranscript(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return true
	}
	return strings.EqualFold(trimmed, blankAudioToken)
}
