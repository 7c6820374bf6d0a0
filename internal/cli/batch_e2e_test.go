//go:build e2e

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	e2eWhisperPathEnv = "VOXBATCH_E2E_WHISPER_PATH"
	e2eModelDirEnv    = "VOXBATCH_E2E_MODEL_DIR"
)

func runRootCommand(ctx context.Context, args []string) (stdout string, stderr string, err error) {
	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetContext(ctx)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func TestBatchEndToEndWithBundledEngine(t *testing.T) {
	whisperPath := strings.TrimSpace(os.Getenv(e2eWhisperPathEnv))
	if whisperPath == "" {
		t.Skip("set VOXBATCH_E2E_WHISPER_PATH to run e2e test")
	}

	env := newTestEnv(t)
	modelDir := strings.TrimSpace(os.Getenv(e2eModelDirEnv))
	if modelDir == "" {
		modelDir = env.models
	}

	t.Setenv("VOXBATCH_WHISPER_PATH", whisperPath)

	_, setupStderr, err := runRootCommand(context.Background(), []string{
		"--config", env.config,
		"setup",
		"--model", "tiny",
		"--model-dir", modelDir,
		"--no-progress",
	})
	require.NoErrorf(t, err, "setup command failed: %s", setupStderr)

	env.addInput(t, "silent-1.wav", makePCM16WAVForTest(make([]int16, 16000), 16000, 1))
	env.addInput(t, "silent-2.wav", makePCM16WAVForTest(make([]int16, 32000), 16000, 1))

	args := []string{
		"--config", env.config,
		"--model", "tiny",
		"--model-dir", modelDir,
		"--language", "en",
		"--no-progress",
	}

	stdout, stderr, err := runRootCommand(context.Background(), args)
	require.NoErrorf(t, err, "batch failed: %s", stderr)
	require.Contains(t, stdout, "Files processed: 2/2")

	for _, stem := range []string{"silent-1", "silent-2"} {
		data, err := os.ReadFile(filepath.Join(env.output, stem+".txt"))
		require.NoError(t, err)
		require.True(t, isBlankForTest(string(data)), "unexpected transcript for %s: %q", stem, data)
	}

	// A second run finds every transcript in place.
	stdout, stderr, err = runRootCommand(context.Background(), args)
	require.NoErrorf(t, err, "second batch failed: %s", stderr)
	require.Contains(t, stdout, "Files processed: 0/2 (2 skipped, 0 failed)")
}

func isBlankForTest(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	return trimmed == "" || strings.EqualFold(trimmed, "[BLANK_AUDIO]")
}
