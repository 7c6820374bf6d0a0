package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxbatch/internal/config"
	"github.com/fmueller/voxbatch/internal/platform"
	"github.com/fmueller/voxbatch/internal/whisper"
)

// testEnv is an isolated data layout described by a config file, so commands
// never touch the real user directories.
type testEnv struct {
	config   string
	input    string
	output   string
	models   string
	profiles string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	dir := t.TempDir()
	env := testEnv{
		config:   filepath.Join(dir, "config.yaml"),
		input:    filepath.Join(dir, "in"),
		output:   filepath.Join(dir, "out"),
		models:   filepath.Join(dir, "models"),
		profiles: filepath.Join(dir, "profiles", "profiles.json"),
	}

	content := fmt.Sprintf(`input_dir: %s
output_dir: %s
model_dir: %s
profiles_path: %s
device: cpu
load:
  poll_interval: 5ms
  grace: 100ms
  join_timeout: 100ms
`, env.input, env.output, env.models, env.profiles)
	require.NoError(t, os.WriteFile(env.config, []byte(content), 0o644))
	return env
}

func (e testEnv) addInput(t *testing.T, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(e.input, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.input, name), data, 0o644))
}

type fakeModel struct {
	mu    sync.Mutex
	calls []string
	opts  []whisper.Options
}

func (m *fakeModel) Transcribe(_ context.Context, audioPath string, opts whisper.Options) (whisper.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, filepath.Base(audioPath))
	m.opts = append(m.opts, opts)
	return whisper.Result{Text: "hello from " + filepath.Base(audioPath)}, nil
}

type fakeLoader struct {
	mu     sync.Mutex
	model  *fakeModel
	err    error
	name   string
	device platform.Device
}

func (l *fakeLoader) Load(_ context.Context, name string, device platform.Device) (whisper.Transcriber, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.name, l.device = name, device
	if l.err != nil {
		return nil, l.err
	}
	return l.model, nil
}

func newTestApp(loader *fakeLoader) *appState {
	app := newAppState()
	app.newLoader = func(config.Settings) whisper.Loader { return loader }
	app.stdinIsTerminal = func() bool { return false }
	app.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	return app
}

func runApp(ctx context.Context, app *appState, args ...string) (stdout string, stderr string, err error) {
	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.ExecuteContext(ctx)
	return outBuf.String(), errBuf.String(), err
}

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return runApp(context.Background(), newTestApp(&fakeLoader{model: &fakeModel{}}), args...)
}

func makePCM16WAVForTest(samples []int16, sampleRate int, channels int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], []byte("RIFF"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(riffSize))
	off += 4
	copy(out[off:], []byte("WAVE"))
	off += 4

	copy(out[off:], []byte("fmt "))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], uint16(channels))
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*channels*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(channels*bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	return out
}
