package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxbatch/internal/audio"
	"github.com/fmueller/voxbatch/internal/whisper"
)

func newStatusCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which input files already have a transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			settings := app.settings

			fmt.Fprintf(out, "Input:  %s\n", settings.InputDir)
			fmt.Fprintf(out, "Output: %s\n", settings.OutputDir)

			device, err := app.resolveDevice()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Device: %s\n", device)

			if resolved, err := whisper.ResolveModel(app.model, settings.ModelDir); err != nil {
				fmt.Fprintf(out, "Model:  %v\n", err)
			} else if resolved.NeedsDownload {
				fmt.Fprintf(out, "Model:  %s (not downloaded yet)\n", resolved.Name)
			} else {
				fmt.Fprintf(out, "Model:  %s (%s)\n", resolved.Name, resolved.Path)
			}

			files, err := audio.Discover(settings.InputDir)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					fmt.Fprintln(out, "\nInput directory does not exist yet; it is created on the first run.")
					return nil
				}
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(out, "\nNo audio files found.")
				return nil
			}

			fmt.Fprintln(out)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tSTATUS\tDURATION")

			done := 0
			var total time.Duration
			for _, path := range files {
				status := "pending"
				if _, err := os.Stat(audio.TranscriptPath(settings.OutputDir, path)); err == nil {
					status = "done"
					done++
				}

				duration := "-"
				if d, err := audio.ProbeDuration(path); err == nil {
					duration = formatDuration(d)
					total += d
				} else if !errors.Is(err, audio.ErrUnsupportedProbe) {
					app.log().Debug("cannot read audio duration", zap.String("file", path), zap.Error(err))
				}

				fmt.Fprintf(w, "%s\t%s\t%s\n", filepath.Base(path), status, duration)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(out, "\n%d done, %d pending", done, len(files)-done)
			if total > 0 {
				fmt.Fprintf(out, " (%s of WAV audio)", formatDuration(total))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
