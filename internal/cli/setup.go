package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxbatch/internal/whisper"
)

func newSetupCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download and verify speech model assets",
		Long: "Downloads the model selected with --model into the model directory, or " +
			"verifies its checksum and replaces it when it is already present.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if err := app.settings.EnsureDirectories(); err != nil {
				return err
			}

			resolved, err := whisper.ResolveModel(app.model, app.settings.ModelDir)
			if err != nil {
				return err
			}
			if resolved.IsCustomPath {
				return fmt.Errorf("setup expects a named model; got custom path %s", resolved.Path)
			}

			loader := &whisper.BundledLoader{
				ModelDir:       app.settings.ModelDir,
				AutoDownload:   true,
				VerifyChecksum: true,
				NoProgress:     app.noProgress,
				Logger:         app.log(),
			}
			ensured, err := loader.EnsureModel(cmd.Context(), resolved.Name)
			if err != nil {
				return err
			}

			if ensured.Downloaded {
				fmt.Fprintf(out, "Model %s installed at %s\n", ensured.Name, ensured.Path)
			} else {
				app.log().Info("model already present", zap.String("model", ensured.Name), zap.String("path", ensured.Path))
				fmt.Fprintf(out, "Model %s verified at %s\n", ensured.Name, ensured.Path)
			}

			if _, err := whisper.NewBundledEngine(app.log()); err != nil {
				app.log().Warn("transcription engine not found; install whisper-cli or set VOXBATCH_WHISPER_PATH", zap.Error(err))
			}
			return nil
		},
	}
}
