package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/fmueller/voxbatch/internal/platform"
	"github.com/stretchr/testify/require"
)

const sampleCLIOutput = `{
  "result": {"language": "pt"},
  "transcription": [
    {"timestamps": {"from": "00:00:00,000", "to": "00:00:04,200"}, "offsets": {"from": 0, "to": 4200}, "text": " Bom dia"},
    {"timestamps": {"from": "00:00:04,200", "to": "00:00:25,000"}, "offsets": {"from": 4200, "to": 25000}, "text": " a todos."}
  ]
}`

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func fakeEngine(t *testing.T, run commandRunner) *BundledEngine {
	t.Helper()
	engine := newBundledEngine("whisper-custom", "ffmpeg-custom", nil)
	engine.run = run
	scratch := t.TempDir()
	engine.tempDir = func() string { return scratch }
	return engine
}

func TestResolveBundledEnginePathFindsLibexecSibling(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	engineDir := filepath.Join(root, "libexec", "whisper")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	require.NoError(t, os.MkdirAll(engineDir, 0o755))

	self := filepath.Join(binDir, "voxbatch")
	require.NoError(t, os.WriteFile(self, []byte(""), 0o755))

	enginePath := filepath.Join(engineDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveBundledEnginePath(self, nil)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestResolveBundledEnginePathFallsBackToPATH(t *testing.T) {
	t.Parallel()

	self := filepath.Join(t.TempDir(), "voxbatch")
	lookPath := func(name string) (string, error) { return "/usr/local/bin/" + name, nil }

	resolved, err := ResolveBundledEnginePath(self, lookPath)
	require.NoError(t, err)
	require.Equal(t, "/usr/local/bin/"+engineBinaryName(), resolved)
}

func TestResolveBundledEnginePathMissing(t *testing.T) {
	t.Parallel()

	self := filepath.Join(t.TempDir(), "bin", "voxbatch")
	lookPath := func(string) (string, error) { return "", errors.New("not found") }

	_, err := ResolveBundledEnginePath(self, lookPath)
	require.ErrorIs(t, err, ErrEngineNotFound)
}

func TestResolveBundledEnginePathFindsPackagingPathForLocalDev(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	self := filepath.Join(root, "voxbatch")
	targetDir := filepath.Join(root, "packaging", "whisper", fmt.Sprintf("%s_%s", runtime.GOOS, platform.NormalizeArch(runtime.GOARCH)))
	require.NoError(t, os.MkdirAll(targetDir, 0o755))
	enginePath := filepath.Join(targetDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveBundledEnginePath(self, nil)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestBundledEngineTranscribeWAVParsesSegments(t *testing.T) {
	t.Parallel()

	var calls []string
	var whisperArgs []string
	engine := fakeEngine(t, func(_ context.Context, name string, args ...string) (string, error) {
		calls = append(calls, name)
		whisperArgs = append([]string{}, args...)
		return "", os.WriteFile(argValue(args, "-of")+".json", []byte(sampleCLIOutput), 0o644)
	})

	result, err := engine.Transcribe(context.Background(), TranscriptionRequest{
		AudioPath: "/in/meeting.wav",
		ModelPath: "/models/ggml-tiny.bin",
		Options:   DecodeOptions(DefaultParameters(), "pt", DefaultThresholds(), platform.DeviceCPU),
	})
	require.NoError(t, err)

	require.Equal(t, []string{"whisper-custom"}, calls)
	require.Equal(t, "/in/meeting.wav", argValue(whisperArgs, "-f"))
	require.Equal(t, "/models/ggml-tiny.bin", argValue(whisperArgs, "-m"))
	require.Contains(t, whisperArgs, "-oj")
	require.Contains(t, whisperArgs, "-ng")

	require.Equal(t, "Bom dia a todos.", result.Text)
	require.Len(t, result.Segments, 2)
	duration, ok := result.Duration()
	require.True(t, ok)
	require.Equal(t, 25*time.Second, duration)
	require.Equal(t, 4200*time.Millisecond, result.Segments[1].Start)
}

func TestBundledEngineConvertsCompressedAudioFirst(t *testing.T) {
	t.Parallel()

	var calls []string
	var whisperInput string
	engine := fakeEngine(t, func(_ context.Context, name string, args ...string) (string, error) {
		calls = append(calls, name)
		if name == "ffmpeg-custom" {
			require.Equal(t, "/in/voice.opus", argValue(args, "-i"))
			return "", os.WriteFile(args[len(args)-1], []byte("wav"), 0o644)
		}
		whisperInput = argValue(args, "-f")
		return "", os.WriteFile(argValue(args, "-of")+".json", []byte(`{"transcription": []}`), 0o644)
	})

	result, err := engine.Transcribe(context.Background(), TranscriptionRequest{
		AudioPath: "/in/voice.opus",
		ModelPath: "/models/ggml-tiny.bin",
		UseGPU:    true,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"ffmpeg-custom", "whisper-custom"}, calls)
	require.Equal(t, "input-16k-mono.wav", filepath.Base(whisperInput))
	require.Empty(t, result.Text)
	_, ok := result.Duration()
	require.False(t, ok)
}

func TestBundledEngineReportsFFmpegFailure(t *testing.T) {
	t.Parallel()

	engine := fakeEngine(t, func(_ context.Context, name string, _ ...string) (string, error) {
		return "Invalid data found when processing input", errors.New("exit status 1")
	})

	_, err := engine.Transcribe(context.Background(), TranscriptionRequest{AudioPath: "/in/a.mp3", ModelPath: "/m.bin"})
	require.ErrorContains(t, err, "ffmpeg conversion failed")
}

func TestBundledEngineClassifiesEngineFailures(t *testing.T) {
	t.Parallel()

	engine := fakeEngine(t, func(_ context.Context, _ string, _ ...string) (string, error) {
		return "error while loading shared libraries: libwhisper.so.1: cannot open shared object file", errors.New("exit status 127")
	})

	_, err := engine.Transcribe(context.Background(), TranscriptionRequest{AudioPath: "/in/a.wav", ModelPath: "/m.bin"})
	require.ErrorContains(t, err, "missing required shared libraries")
}

func TestBundledEngineRequiresPaths(t *testing.T) {
	t.Parallel()

	engine := fakeEngine(t, nil)
	_, err := engine.Transcribe(context.Background(), TranscriptionRequest{ModelPath: "/m.bin"})
	require.Error(t, err)
	_, err = engine.Transcribe(context.Background(), TranscriptionRequest{AudioPath: "/a.wav"})
	require.Error(t, err)
}

func TestIsMissingSharedLibraryError(t *testing.T) {
	t.Parallel()

	require.True(t, isMissingSharedLibraryError("error while loading shared libraries: libwhisper.so.1: cannot open shared object file"))
	require.True(t, isMissingSharedLibraryError("dyld: Library not loaded: @rpath/libwhisper.dylib"))
	require.False(t, isMissingSharedLibraryError("some other runtime error"))
}

func TestIsIllegalInstructionError(t *testing.T) {
	t.Parallel()

	require.True(t, isIllegalInstructionError("signal: illegal instruction (core dumped)"))
	require.False(t, isIllegalInstructionError(""))
}
