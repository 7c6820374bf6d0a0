package whisper

import (
	"errors"
	"fmt"
)

var ErrInvalidParameters = errors.New("invalid transcription parameters")

// Parameters are the decoding choices for one run. They are treated as
// immutable once handed to a batch controller.
type Parameters struct {
	Model       string  `json:"model"`
	BeamSize    int     `json:"beam_size"`
	BestOf      int     `json:"best_of"`
	Temperature float64 `json:"temperature"`
}

func DefaultParameters() Parameters {
	return Parameters{
		Model:       DefaultModel,
		BeamSize:    1,
		BestOf:      1,
		Temperature: 0.0,
	}
}

func (p Parameters) Validate() error {
	if !IsAvailableModel(p.Model) {
		return fmt.Errorf("%w: unknown model %q", ErrInvalidParameters, p.Model)
	}
	if p.BeamSize < 1 {
		return fmt.Errorf("%w: beam size must be positive, got %d", ErrInvalidParameters, p.BeamSize)
	}
	if p.BestOf < 1 {
		return fmt.Errorf("%w: best-of must be positive, got %d", ErrInvalidParameters, p.BestOf)
	}
	if !(p.Temperature >= 0 && p.Temperature <= 1) {
		return fmt.Errorf("%w: temperature must be within [0, 1], got %g", ErrInvalidParameters, p.Temperature)
	}
	return nil
}
