package progress

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

type StopFunc func()

// Enabled reports whether spinners should render: never when disabled by the
// user, and only when stderr is a terminal.
func Enabled(disabled bool) bool {
	if disabled {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// StartSpinner renders an indeterminate spinner on stderr until the returned
// function is called. Calling it more than once is safe.
func StartSpinner(enabled bool, description string) StopFunc {
	return startSpinner(enabled, description, os.Stderr)
}

func startSpinner(enabled bool, description string, w io.Writer) StopFunc {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
	)

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}
