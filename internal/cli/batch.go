package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxbatch/internal/batch"
	"github.com/fmueller/voxbatch/internal/menu"
	"github.com/fmueller/voxbatch/internal/whisper"
)

func (a *appState) runBatch(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	fmt.Fprintln(out, "voxbatch: audio to text")
	fmt.Fprintln(out, strings.Repeat("=", 50))

	sel, err := a.selectParameters(cmd, out)
	if err != nil {
		if errors.Is(err, menu.ErrAborted) {
			printCancelled(out)
			return nil
		}
		return err
	}
	if err := sel.Parameters.Validate(); err != nil {
		return err
	}

	device, err := a.resolveDevice()
	if err != nil {
		return err
	}

	ctrl, err := batch.New(batch.Config{
		Settings:   a.settings,
		Parameters: sel.Parameters,
		Profile:    sel.ProfileName,
		Device:     device,
		Loader:     a.loader(),
		Logger:     a.log(),
		Out:        out,
		Progress:   a.progressEnabled(),
	})
	if err != nil {
		return err
	}
	printRunHeader(out, sel.ProfileName, ctrl)

	if err := ctrl.Initialize(ctx); err != nil {
		if errors.Is(err, batch.ErrLoadCancelled) {
			printCancelled(out)
			return nil
		}
		return err
	}

	if _, err := ctrl.TranscribeFiles(ctx); err != nil {
		if errors.Is(err, batch.ErrCancelled) {
			a.log().Info("run cancelled by user")
			return nil
		}
		return err
	}
	return nil
}

// selectParameters picks the run parameters from, in order: a named profile,
// explicit parameter flags, the interactive menu, or the defaults when stdin
// is not a terminal. Parameter flags also override a named profile.
func (a *appState) selectParameters(cmd *cobra.Command, out io.Writer) (menu.Selection, error) {
	store := a.profiles()

	if name := strings.TrimSpace(a.profileName); name != "" {
		p, found, err := store.Get(name)
		if err != nil {
			return menu.Selection{}, err
		}
		if !found {
			return menu.Selection{}, unknownProfileError(store, name)
		}
		return menu.Selection{Parameters: a.applyParameterFlags(cmd, p.Parameters), ProfileName: p.Name}, nil
	}

	defaults := whisper.DefaultParameters()
	if parameterFlagsChanged(cmd) {
		return menu.Selection{Parameters: a.applyParameterFlags(cmd, defaults)}, nil
	}

	if !a.interactive() {
		a.log().Info("stdin is not a terminal; using default parameters", zap.String("model", defaults.Model))
		return menu.Selection{Parameters: defaults}, nil
	}

	return menu.New(a.input(), out, store, defaults).Choose()
}

// printRunHeader shows what the controller will actually run with.
func printRunHeader(out io.Writer, profileName string, ctrl *batch.Controller) {
	if profileName != "" {
		fmt.Fprintf(out, "\nRunning with profile: %s\n", profileName)
	} else {
		fmt.Fprintln(out, "\nCustom settings:")
	}
	params := ctrl.Parameters()
	fmt.Fprintf(out, "Model: %s\n", params.Model)
	fmt.Fprintf(out, "Beam size: %d\n", params.BeamSize)
	fmt.Fprintf(out, "Best of: %d\n", params.BestOf)
	fmt.Fprintf(out, "Temperature: %g\n", params.Temperature)
	fmt.Fprintf(out, "Device: %s\n", ctrl.Device())
	fmt.Fprintln(out, strings.Repeat("-", 50))
}

func printCancelled(out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out, "Operation cancelled by user")
	fmt.Fprintln(out, strings.Repeat("=", 50))
}
