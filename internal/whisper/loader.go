package whisper

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/fmueller/voxbatch/internal/download"
	"github.com/fmueller/voxbatch/internal/platform"
	"go.uber.org/zap"
)

// BundledLoader prepares whisper-cli models: it locates the engine, fetches
// missing weights and optionally verifies them against the pinned checksum.
type BundledLoader struct {
	ModelDir       string
	AutoDownload   bool
	VerifyChecksum bool
	NoProgress     bool
	Logger         *zap.Logger

	newEngine func(*zap.Logger) (Engine, error)
	download  func(context.Context, download.Options) error
	verify    func(path, sha string) error
}

func (l *BundledLoader) Load(ctx context.Context, name string, device platform.Device) (Transcriber, error) {
	newEngine := l.newEngine
	if newEngine == nil {
		newEngine = func(logger *zap.Logger) (Engine, error) { return NewBundledEngine(logger) }
	}

	engine, err := newEngine(l.log())
	if err != nil {
		return nil, err
	}

	resolved, err := l.EnsureModel(ctx, name)
	if err != nil {
		return nil, err
	}

	l.log().Debug("model ready", zap.String("model", resolved.Name), zap.String("path", resolved.Path), zap.Stringer("device", device))
	return &LoadedModel{
		Name:   resolved.Name,
		Path:   resolved.Path,
		Device: device,
		engine: engine,
	}, nil
}

// EnsureModel makes sure the weights for name are present on disk.
func (l *BundledLoader) EnsureModel(ctx context.Context, name string) (ResolvedModel, error) {
	resolved, err := ResolveModel(name, l.ModelDir)
	if err != nil {
		return ResolvedModel{}, err
	}

	if !resolved.NeedsDownload {
		if l.VerifyChecksum && resolved.SHA256 != "" {
			l.log().Info("verifying model checksum", zap.String("model", resolved.Name))
			if err := l.verifier()(resolved.Path, resolved.SHA256); err != nil {
				if !l.AutoDownload {
					return ResolvedModel{}, fmt.Errorf("model %q at %s failed verification: %w", resolved.Name, resolved.Path, err)
				}
				l.log().Warn("model checksum verification failed; downloading fresh copy", zap.String("model", resolved.Name), zap.Error(err))
				resolved.NeedsDownload = true
			}
		}
		if !resolved.NeedsDownload {
			return resolved, nil
		}
	}

	if !l.AutoDownload {
		return ResolvedModel{}, fmt.Errorf("model %q is missing at %s; run `voxbatch setup --model %s` or use --auto-download=true", resolved.Name, resolved.Path, resolved.Name)
	}

	l.log().Info("model not found, downloading", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
	if err := l.downloader()(ctx, download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: resolved.SHA256,
		Label:          "downloading " + resolved.Name,
		NoProgress:     l.NoProgress,
		Logger:         l.log(),
	}); err != nil {
		return ResolvedModel{}, fmt.Errorf("download model %q: %w", resolved.Name, err)
	}

	resolved.NeedsDownload = false
	resolved.Downloaded = true
	return resolved, nil
}

func (l *BundledLoader) log() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func (l *BundledLoader) downloader() func(context.Context, download.Options) error {
	if l.download == nil {
		return download.DownloadFile
	}
	return l.download
}

func (l *BundledLoader) verifier() func(string, string) error {
	if l.verify == nil {
		return download.VerifyFileChecksum
	}
	return l.verify
}

// LoadedModel binds a model file and device to an engine.
type LoadedModel struct {
	Name   string
	Path   string
	Device platform.Device

	engine Engine
}

func (m *LoadedModel) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	return m.engine.Transcribe(ctx, TranscriptionRequest{
		AudioPath: audioPath,
		ModelPath: m.Path,
		UseGPU:    m.Device.Accelerated(),
		Options:   opts,
	})
}

// ReleaseCache returns heap used by decoded results back to the OS. The
// engine's own buffers live in the whisper-cli process and are gone once it
// exits.
func (m *LoadedModel) ReleaseCache() {
	debug.FreeOSMemory()
}
