package whisper

import (
	"strconv"
	"strings"

	"github.com/fmueller/voxbatch/internal/platform"
)

const DefaultLanguage = "pt"

type Thresholds struct {
	CompressionRatio float64 `yaml:"compression_ratio_threshold"`
	LogProb          float64 `yaml:"logprob_threshold"`
	NoSpeech         float64 `yaml:"no_speech_threshold"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CompressionRatio: 2.4,
		LogProb:          -1.0,
		NoSpeech:         0.6,
	}
}

// Options is the full decoding configuration passed to a model for one file.
type Options struct {
	Language                string
	BeamSize                int
	BestOf                  int
	Temperature             float64
	ConditionOnPreviousText bool
	Thresholds              Thresholds
	// FP16 requests reduced-precision inference.
	FP16 bool
}

// DecodeOptions combines the run parameters with the fixed robustness
// settings used for every file.
func DecodeOptions(params Parameters, language string, thresholds Thresholds, device platform.Device) Options {
	return Options{
		Language:                language,
		BeamSize:                params.BeamSize,
		BestOf:                  params.BestOf,
		Temperature:             params.Temperature,
		ConditionOnPreviousText: false,
		Thresholds:              thresholds,
		FP16:                    device.Accelerated(),
	}
}

// cliArgs renders the options as whisper-cli flags.
func (o Options) cliArgs() []string {
	args := []string{
		"-bs", strconv.Itoa(max(o.BeamSize, 1)),
		"-bo", strconv.Itoa(max(o.BestOf, 1)),
		"-tp", formatFloat(o.Temperature),
		"-et", formatFloat(o.Thresholds.CompressionRatio),
		"-lpt", formatFloat(o.Thresholds.LogProb),
		"-nth", formatFloat(o.Thresholds.NoSpeech),
	}

	if !o.ConditionOnPreviousText {
		args = append(args, "-mc", "0")
	}

	lang := strings.TrimSpace(o.Language)
	if lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}

	// whisper.cpp keeps f16 weights on GPU; flash attention also runs the
	// attention kernels in half precision.
	if o.FP16 {
		args = append(args, "-fa")
	}

	return args
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
