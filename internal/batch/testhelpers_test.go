package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxbatch/internal/config"
	"github.com/fmueller/voxbatch/internal/platform"
	"github.com/fmueller/voxbatch/internal/whisper"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedModel advances the clock by step on every call and answers with a
// canned result or error keyed by file name.
type scriptedModel struct {
	clock   *fakeClock
	step    time.Duration
	results map[string]whisper.Result
	errs    map[string]error
	onCall  func(name string)

	calls    []string
	ctxErrs  []error
	opts     []whisper.Options
	released int
}

func (m *scriptedModel) Transcribe(ctx context.Context, audioPath string, opts whisper.Options) (whisper.Result, error) {
	name := filepath.Base(audioPath)
	m.calls = append(m.calls, name)
	m.opts = append(m.opts, opts)
	if m.clock != nil {
		m.clock.Advance(m.step)
	}
	if m.onCall != nil {
		m.onCall(name)
	}
	m.ctxErrs = append(m.ctxErrs, ctx.Err())

	if err, ok := m.errs[name]; ok {
		return whisper.Result{}, err
	}
	if res, ok := m.results[name]; ok {
		return res, nil
	}
	return whisper.Result{Text: "transcript of " + name}, nil
}

func (m *scriptedModel) ReleaseCache() { m.released++ }

type loaderFunc func(ctx context.Context, name string, device platform.Device) (whisper.Transcriber, error)

func (f loaderFunc) Load(ctx context.Context, name string, device platform.Device) (whisper.Transcriber, error) {
	return f(ctx, name, device)
}

func staticLoader(model whisper.Transcriber) loaderFunc {
	return func(context.Context, string, platform.Device) (whisper.Transcriber, error) {
		return model, nil
	}
}

func testSettings(t *testing.T) config.Settings {
	t.Helper()

	settings := config.DefaultsFor(t.TempDir())
	settings.Load = config.LoadSettings{
		PollInterval: 5 * time.Millisecond,
		Grace:        50 * time.Millisecond,
		JoinTimeout:  50 * time.Millisecond,
	}
	return settings
}

type harness struct {
	ctrl     *Controller
	model    *scriptedModel
	clock    *fakeClock
	out      *bytes.Buffer
	settings config.Settings
}

func newHarness(t *testing.T, device platform.Device) *harness {
	t.Helper()

	clock := newFakeClock()
	model := &scriptedModel{clock: clock, step: 10 * time.Second}
	settings := testSettings(t)
	var out bytes.Buffer

	ctrl, err := New(Config{
		Settings:   settings,
		Parameters: whisper.DefaultParameters(),
		Device:     device,
		Loader:     staticLoader(model),
		Out:        &out,
	})
	require.NoError(t, err)
	ctrl.now = clock.Now

	require.NoError(t, ctrl.Initialize(context.Background()))
	require.Equal(t, StateReady, ctrl.State())
	require.NoError(t, settings.EnsureDirectories())
	out.Reset()

	return &harness{ctrl: ctrl, model: model, clock: clock, out: &out, settings: settings}
}

func (h *harness) addInput(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(h.settings.InputDir, name), []byte("audio"), 0o644))
	}
}

func (h *harness) transcript(t *testing.T, stem string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.settings.OutputDir, stem+".txt"))
	require.NoError(t, err)
	return string(data)
}
