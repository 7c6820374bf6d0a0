package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
)

var ErrUnsupportedProbe = errors.New("duration probing is only supported for wav files")

var ErrInvalidWAV = errors.New("invalid wav file")

// ProbeDuration reads the playback length of a WAV file from its header.
func ProbeDuration(path string) (time.Duration, error) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return 0, ErrUnsupportedProbe
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return 0, ErrInvalidWAV
	}

	duration, err := decoder.Duration()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	return duration, nil
}
