package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmueller/voxbatch/internal/audio"
	"github.com/fmueller/voxbatch/internal/progress"
	"github.com/fmueller/voxbatch/internal/whisper"
)

const previewLength = 80

// FileResult describes one successfully transcribed file.
type FileResult struct {
	Path           string
	OutputPath     string
	TranscribeTime time.Duration
	AudioDuration  time.Duration
	// EstimatedDuration is set when the transcript had no segments and the
	// audio duration fell back to the transcribe time.
	EstimatedDuration bool
	SpeedFactor       float64
	Words             int
	Preview           string
	Blank             bool
}

// TranscribeFiles transcribes every file in the input directory that has no
// transcript in the output directory yet. Cancelling ctx stops the run
// between files; the file in flight is allowed to finish. The summary is
// printed however the loop ends. A cancelled run returns its summary together
// with an error wrapping ErrCancelled.
func (c *Controller) TranscribeFiles(ctx context.Context) (Summary, error) {
	if c.model == nil {
		return Summary{}, ErrNotInitialized
	}
	if c.state == StateRunning {
		return Summary{}, errors.New("batch is already running")
	}

	if err := c.settings.EnsureDirectories(); err != nil {
		return Summary{}, err
	}

	files, err := audio.Discover(c.settings.InputDir)
	if err != nil {
		return Summary{}, err
	}
	if len(files) == 0 {
		fmt.Fprintf(c.out, "No audio files found in %s. Nothing to do.\n", c.settings.InputDir)
		fmt.Fprintf(c.out, "Supported formats: %s\n", strings.Join(audio.SupportedExtensions, ", "))
		return Summary{OutputDir: c.settings.OutputDir, Outcome: c.state}, nil
	}

	if err := c.transition(StateRunning); err != nil {
		return Summary{}, err
	}

	runID := uuid.NewString()
	logger := c.logger.With(zap.String("run_id", runID))
	logger.Info("batch started",
		zap.Int("files", len(files)),
		zap.String("input_dir", c.settings.InputDir),
		zap.String("output_dir", c.settings.OutputDir),
	)

	fmt.Fprintf(c.out, "Found %d audio file(s) in %s\n", len(files), c.settings.InputDir)
	fmt.Fprintf(c.out, "Transcripts will be saved to %s\n", c.settings.OutputDir)
	fmt.Fprintln(c.out, "Press Ctrl+C to stop; finished transcripts are kept.")

	summary := Summary{RunID: runID, Total: len(files), OutputDir: c.settings.OutputDir}
	opts := whisper.DecodeOptions(c.params, c.settings.Language, c.settings.Decoding, c.device)
	cancelled := false

	for i, path := range files {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		name := filepath.Base(path)
		outPath := audio.TranscriptPath(c.settings.OutputDir, path)

		exists, err := fileExists(outPath)
		if err != nil {
			summary.Failed++
			logger.Warn("cannot check transcript", zap.String("file", name), zap.Error(err))
			continue
		}
		if exists {
			summary.Skipped++
			fmt.Fprintf(c.out, "\n[%d/%d] Skipping %s: %s already exists\n", i+1, len(files), name, filepath.Base(outPath))
			continue
		}

		fmt.Fprintf(c.out, "\n[%d/%d] Transcribing %s\n", i+1, len(files), name)
		res, err := c.transcribeFile(ctx, path, outPath, opts)
		if err != nil {
			summary.Failed++
			logger.Error("file failed", zap.String("file", name), zap.Error(err))
			fmt.Fprintf(c.out, "   Failed: %v\n", err)
			continue
		}

		summary.Processed++
		summary.TranscribeTime += res.TranscribeTime
		summary.AudioDuration += res.AudioDuration
		c.reportFile(logger, res)
	}

	summary.Outcome = outcome(summary, cancelled)
	if err := c.transition(summary.Outcome); err != nil {
		return summary, err
	}

	logger.Info("batch finished",
		zap.String("outcome", string(summary.Outcome)),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("total", summary.Total),
	)
	summary.Print(c.out)

	if cancelled {
		return summary, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}
	return summary, nil
}

// transcribeFile runs inference for one file and writes the transcript only
// after the call has fully returned.
func (c *Controller) transcribeFile(ctx context.Context, path, outPath string, opts whisper.Options) (FileResult, error) {
	start := c.now()
	stop := progress.StartSpinner(c.progress, "Transcribing "+filepath.Base(path))
	result, err := c.model.Transcribe(context.WithoutCancel(ctx), path, opts)
	stop()
	elapsed := c.now().Sub(start)

	if c.device.Accelerated() {
		if releaser, ok := c.model.(whisper.CacheReleaser); ok {
			releaser.ReleaseCache()
		}
	}

	if err != nil {
		return FileResult{}, &FileError{Path: path, Stage: "transcribe", Err: err}
	}

	text := strings.TrimSpace(result.Text)
	if err := writeTranscript(outPath, text); err != nil {
		return FileResult{}, &FileError{Path: path, Stage: "write", Err: err}
	}

	duration, ok := result.Duration()
	if !ok {
		duration = elapsed
	}

	return FileResult{
		Path:              path,
		OutputPath:        outPath,
		TranscribeTime:    elapsed,
		AudioDuration:     duration,
		EstimatedDuration: !ok,
		SpeedFactor:       SpeedFactor(duration, elapsed),
		Words:             len(strings.Fields(text)),
		Preview:           preview(text, previewLength),
		Blank:             isBlankTranscript(text),
	}, nil
}

func (c *Controller) reportFile(logger *zap.Logger, res FileResult) {
	line := fmt.Sprintf("   Done in %.1fs", res.TranscribeTime.Seconds())
	if res.SpeedFactor > 1 {
		line += fmt.Sprintf(" (%.1fx faster than real time)", res.SpeedFactor)
	}
	fmt.Fprintln(c.out, line)
	fmt.Fprintf(c.out, "   Saved %s (%d words)\n", filepath.Base(res.OutputPath), res.Words)

	if res.Blank {
		logger.Warn("no speech detected", zap.String("file", filepath.Base(res.Path)))
		fmt.Fprintln(c.out, "   Warning: no speech detected in this file.")
		return
	}

	fmt.Fprintf(c.out, "   Preview: %s\n", res.Preview)

	logger.Debug("file done",
		zap.String("file", filepath.Base(res.Path)),
		zap.Duration("transcribe_time", res.TranscribeTime),
		zap.Duration("audio_duration", res.AudioDuration),
		zap.Bool("estimated_duration", res.EstimatedDuration),
		zap.Float64("speed_factor", res.SpeedFactor),
	)
}

// SpeedFactor is audio duration over processing time, or 0 when either is
// not positive.
func SpeedFactor(audioDuration, transcribeTime time.Duration) float64 {
	if audioDuration <= 0 || transcribeTime <= 0 {
		return 0
	}
	return audioDuration.Seconds() / transcribeTime.Seconds()
}

func outcome(s Summary, cancelled bool) State {
	switch {
	case cancelled:
		return StateCancelled
	case s.Failed == 0 && s.Processed+s.Skipped == s.Total:
		return StateCompleted
	default:
		return StatePartiallyCompleted
	}
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// writeTranscript writes through a temporary file so that a transcript on
// disk is always complete.
func writeTranscript(path, text string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
