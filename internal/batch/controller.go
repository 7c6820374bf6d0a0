// Package batch drives a sequential transcription run over an input
// directory: it loads one model, transcribes every file that has no
// transcript yet, and reports per-file and aggregate statistics.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/fmueller/voxbatch/internal/config"
	"github.com/fmueller/voxbatch/internal/platform"
	"github.com/fmueller/voxbatch/internal/progress"
	"github.com/fmueller/voxbatch/internal/whisper"
)

type Config struct {
	Settings   config.Settings
	Parameters whisper.Parameters
	// Profile names the preset the parameters came from, if any. It is only
	// used for reporting.
	Profile string
	// Device is detected when empty.
	Device   platform.Device
	Loader   whisper.Loader
	Logger   *zap.Logger
	Out      io.Writer
	Progress bool
}

// Controller is not safe for concurrent use. All calls are expected from a
// single goroutine.
type Controller struct {
	settings config.Settings
	params   whisper.Parameters
	profile  string
	device   platform.Device
	loader   whisper.Loader
	logger   *zap.Logger
	out      io.Writer
	progress bool
	now      func() time.Time

	state State
	model whisper.Transcriber
}

func New(cfg Config) (*Controller, error) {
	if err := cfg.Parameters.Validate(); err != nil {
		return nil, err
	}
	if cfg.Loader == nil {
		return nil, errors.New("batch: a model loader is required")
	}

	device := cfg.Device
	if device == "" {
		device = platform.DetectDevice(platform.CurrentRuntime(), exec.LookPath)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}

	return &Controller{
		settings: cfg.Settings,
		params:   cfg.Parameters,
		profile:  cfg.Profile,
		device:   device,
		loader:   cfg.Loader,
		logger:   logger,
		out:      out,
		progress: cfg.Progress,
		now:      time.Now,
		state:    StateUninitialized,
	}, nil
}

func (c *Controller) State() State { return c.state }

func (c *Controller) Device() platform.Device { return c.device }

func (c *Controller) Parameters() whisper.Parameters { return c.params }

// Initialize loads the model on the controller's device. The load runs on a
// background goroutine so that cancelling ctx returns promptly even when the
// loader itself ignores cancellation.
func (c *Controller) Initialize(ctx context.Context) error {
	if c.state != StateUninitialized {
		return ErrAlreadyInitialized
	}
	if err := c.transition(StateInitializing); err != nil {
		return err
	}

	c.logger.Info("loading model",
		zap.String("model", c.params.Model),
		zap.String("device", c.device.String()),
		zap.String("profile", c.profile),
	)
	fmt.Fprintf(c.out, "Loading model '%s' on %s...\n", c.params.Model, c.device)

	start := c.now()
	stop := progress.StartSpinner(c.progress, "Loading model "+c.params.Model)
	model, err := c.loadModel(ctx)
	stop()

	if err != nil {
		_ = c.transition(StateFailed)
		return &LoadError{Model: c.params.Model, Device: c.device, Err: err}
	}

	c.model = model
	elapsed := c.now().Sub(start)
	c.logger.Debug("model loaded", zap.Duration("elapsed", elapsed))
	fmt.Fprintf(c.out, "Model loaded in %.1fs\n", elapsed.Seconds())
	return c.transition(StateReady)
}

type loadResult struct {
	model whisper.Transcriber
	err   error
}

func (c *Controller) loadModel(ctx context.Context) (whisper.Transcriber, error) {
	timing := c.settings.Load
	if timing.PollInterval <= 0 || timing.Grace <= 0 || timing.JoinTimeout <= 0 {
		timing = config.DefaultLoadSettings()
	}

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	results := make(chan loadResult, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				results <- loadResult{err: fmt.Errorf("model loader panicked: %v", r)}
			}
		}()

		model, err := c.loader.Load(workerCtx, c.params.Model, c.device)
		if err == nil && model == nil {
			err = errors.New("model loader returned no model")
		}
		results <- loadResult{model: model, err: err}
	}()

	defer c.joinLoader(done, timing.JoinTimeout)

	ticker := time.NewTicker(timing.PollInterval)
	defer ticker.Stop()

	finished := false
	for !finished {
		select {
		case res := <-results:
			return res.model, loadFailure(ctx, res.err)
		case <-ctx.Done():
			cancelWorker()
			return nil, fmt.Errorf("%w: %w", ErrLoadCancelled, ctx.Err())
		case <-ticker.C:
			select {
			case <-done:
				finished = true
			default:
			}
		}
	}

	// The worker has exited; its result may still be in flight.
	select {
	case res := <-results:
		return res.model, loadFailure(ctx, res.err)
	case <-time.After(timing.Grace):
		return nil, ErrLoadTimeout
	}
}

// loadFailure attributes a loader error to cancellation when the loader gave
// up because ctx was cancelled.
func loadFailure(ctx context.Context, err error) error {
	if err == nil || ctx.Err() == nil || errors.Is(err, ErrLoadCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrLoadCancelled, err)
}

func (c *Controller) joinLoader(done <-chan struct{}, timeout time.Duration) {
	select {
	case <-done:
	case <-time.After(timeout):
		c.logger.Warn("model loader did not stop in time; abandoning it", zap.Duration("join_timeout", timeout))
	}
}
