package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fmueller/voxbatch/internal/platform"
	"go.uber.org/zap"
)

const (
	whisperPathEnv = "VOXBATCH_WHISPER_PATH"
	ffmpegPathEnv  = "VOXBATCH_FFMPEG_PATH"
)

var ErrEngineNotFound = errors.New("whisper engine not found")

// commandRunner executes an external command and returns its stderr.
type commandRunner func(ctx context.Context, name string, args ...string) (string, error)

// BundledEngine drives a whisper-cli executable. Inputs that whisper-cli
// cannot decode natively are converted to 16 kHz mono WAV with ffmpeg first.
type BundledEngine struct {
	Executable string
	FFmpeg     string
	Logger     *zap.Logger

	run     commandRunner
	tempDir func() string
}

func NewBundledEngine(logger *zap.Logger) (*BundledEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ffmpeg := strings.TrimSpace(os.Getenv(ffmpegPathEnv))
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}

	if override := strings.TrimSpace(os.Getenv(whisperPathEnv)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("%s is not executable: %w", whisperPathEnv, err)
		}
		return newBundledEngine(override, ffmpeg, logger), nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve voxbatch executable path: %w", err)
	}

	whisperExe, err := ResolveBundledEnginePath(self, exec.LookPath)
	if err != nil {
		return nil, err
	}

	return newBundledEngine(whisperExe, ffmpeg, logger), nil
}

func newBundledEngine(executable, ffmpeg string, logger *zap.Logger) *BundledEngine {
	return &BundledEngine{
		Executable: executable,
		FFmpeg:     ffmpeg,
		Logger:     logger,
		run:        runCommand,
		tempDir:    os.TempDir,
	}
}

// ResolveBundledEnginePath looks for whisper-cli next to the voxbatch binary
// first and falls back to PATH.
func ResolveBundledEnginePath(selfExecutable string, lookPath func(string) (string, error)) (string, error) {
	for _, candidate := range EnginePathCandidates(selfExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	if lookPath != nil {
		if found, err := lookPath(engineBinaryName()); err == nil {
			return found, nil
		}
	}

	return "", fmt.Errorf("%w near %s or on PATH; install whisper.cpp or set %s, expected at ../libexec/whisper/%s", ErrEngineNotFound, selfExecutable, whisperPathEnv, engineBinaryName())
}

func EnginePathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	engineName := engineBinaryName()
	hostTarget := fmt.Sprintf("%s_%s", runtime.GOOS, platform.NormalizeArch(runtime.GOARCH))

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, engineName),
		filepath.Join(binDir, engineName),
	}
}

func (b *BundledEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (Result, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return Result{}, errors.New("audio path is required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return Result{}, errors.New("model path is required")
	}

	log := b.Logger
	if log == nil {
		log = zap.NewNop()
	}

	workDir, err := os.MkdirTemp(b.tempRoot(), "voxbatch-*")
	if err != nil {
		return Result{}, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	audioPath := req.AudioPath
	if needsConversion(audioPath) {
		converted := filepath.Join(workDir, "input-16k-mono.wav")
		args := ffmpegArgs(audioPath, converted)
		log.Debug("converting audio", zap.String("ffmpeg", b.FFmpeg), zap.Strings("args", args))
		if stderr, err := b.runner()(ctx, b.FFmpeg, args...); err != nil {
			return Result{}, fmt.Errorf("ffmpeg conversion failed: %w (%s)", err, strings.TrimSpace(stderr))
		}
		audioPath = converted
	}

	outBase := filepath.Join(workDir, "transcript")
	args := []string{"-m", req.ModelPath, "-f", audioPath, "-np", "-oj", "-of", outBase}
	if !req.UseGPU {
		args = append(args, "-ng")
	}
	args = append(args, req.Options.cliArgs()...)

	log.Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))
	if stderr, err := b.runner()(ctx, b.Executable, args...); err != nil {
		return Result{}, classifyEngineError(b.Executable, err, strings.TrimSpace(stderr))
	}

	content, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return Result{}, fmt.Errorf("read whisper output: %w", err)
	}

	return parseCLIOutput(content)
}

func (b *BundledEngine) runner() commandRunner {
	if b.run == nil {
		return runCommand
	}
	return b.run
}

func (b *BundledEngine) tempRoot() string {
	if b.tempDir == nil {
		return os.TempDir()
	}
	return b.tempDir()
}

type cliOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseCLIOutput(content []byte) (Result, error) {
	var out cliOutput
	if err := json.Unmarshal(content, &out); err != nil {
		return Result{}, fmt.Errorf("decode whisper output: %w", err)
	}

	var text strings.Builder
	segments := make([]Segment, 0, len(out.Transcription))
	for i, seg := range out.Transcription {
		text.WriteString(seg.Text)
		segments = append(segments, Segment{
			ID:    i,
			Start: time.Duration(seg.Offsets.From) * time.Millisecond,
			End:   time.Duration(seg.Offsets.To) * time.Millisecond,
			Text:  strings.TrimSpace(seg.Text),
		})
	}

	return Result{Text: strings.TrimSpace(text.String()), Segments: segments}, nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

func needsConversion(path string) bool {
	return !strings.EqualFold(filepath.Ext(path), ".wav")
}

func ffmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

func classifyEngineError(executable string, err error, stderr string) error {
	if isMissingSharedLibraryError(stderr) {
		return fmt.Errorf("whisper engine at %s is missing required shared libraries (%s); reinstall whisper.cpp or rebuild whisper-cli with BUILD_SHARED_LIBS=OFF", executable, stderr)
	}
	if isIllegalInstructionError(stderr) || isIllegalInstructionError(err.Error()) {
		return fmt.Errorf("whisper engine crashed with an illegal CPU instruction; " +
			"your CPU may lack required instruction set extensions; " +
			"set " + whisperPathEnv + " to a whisper-cli binary built for your CPU")
	}
	return fmt.Errorf("whisper transcribe failed: %w (%s)", err, stderr)
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	for _, pattern := range []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	} {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
