package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fmueller/voxbatch/internal/config"
	"github.com/fmueller/voxbatch/internal/logging"
	"github.com/fmueller/voxbatch/internal/platform"
	"github.com/fmueller/voxbatch/internal/profile"
	"github.com/fmueller/voxbatch/internal/progress"
	"github.com/fmueller/voxbatch/internal/version"
	"github.com/fmueller/voxbatch/internal/whisper"
)

type appState struct {
	configPath   string
	verbose      bool
	jsonLogs     bool
	logFile      string
	noProgress   bool
	profileName  string
	model        string
	beamSize     int
	bestOf       int
	temperature  float64
	inputDir     string
	outputDir    string
	modelDir     string
	language     string
	device       string
	autoDownload bool
	verifyModel  bool

	settings config.Settings
	logger   *zap.Logger
	in       io.Reader

	newLoader       func(config.Settings) whisper.Loader
	stdinIsTerminal func() bool
	lookPath        func(string) (string, error)
}

func newAppState() *appState {
	defaults := whisper.DefaultParameters()
	return &appState{
		model:        defaults.Model,
		beamSize:     defaults.BeamSize,
		bestOf:       defaults.BestOf,
		temperature:  defaults.Temperature,
		language:     whisper.DefaultLanguage,
		device:       "auto",
		autoDownload: true,
		in:           os.Stdin,
	}
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voxbatch",
		Short: "Batch-transcribe a folder of audio files with a local whisper engine",
		Long: "voxbatch transcribes every audio file in the input directory into a text file " +
			"in the output directory. Files that already have a transcript are skipped, so an " +
			"interrupted run resumes where it stopped.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runBatch(cmd)
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindDirectoryFlags(cmd, app)
	bindModelFlags(cmd, app)
	bindParameterFlags(cmd, app)
	cmd.Flags().StringVar(&app.profileName, "profile", app.profileName, "Run with a saved profile instead of the interactive menu")

	cmd.AddCommand(newProfilesCmd(app))
	cmd.AddCommand(newStatusCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", app.configPath, "Path to a YAML config file (default: user config dir)")
	flags.BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	flags.StringVar(&app.logFile, "log-file", app.logFile, "Also write logs to this file")
	flags.BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindDirectoryFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.inputDir, "input", app.inputDir, "Directory with audio files to transcribe")
	flags.StringVar(&app.outputDir, "output", app.outputDir, "Directory where transcripts are written")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.model, "model", app.model, "Model name ("+strings.Join(whisper.AvailableModels, "|")+")")
	flags.StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where models are stored")
	flags.StringVar(&app.language, "language", app.language, "Language code for transcription (pt|en|de|...|auto)")
	flags.StringVar(&app.device, "device", app.device, "Compute device: auto|cpu|gpu")
	flags.BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing models")
	flags.BoolVar(&app.verifyModel, "verify-model", app.verifyModel, "Verify the model checksum before loading")
}

func bindParameterFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.IntVar(&app.beamSize, "beam-size", app.beamSize, "Beam size used while decoding")
	flags.IntVar(&app.bestOf, "best-of", app.bestOf, "Number of candidates generated per segment")
	flags.Float64Var(&app.temperature, "temperature", app.temperature, "Decoding temperature in [0, 1]")
}

// prepare builds the logger and the effective settings: built-in defaults,
// then the config file, then flags the user set explicitly.
func (a *appState) prepare(cmd *cobra.Command) error {
	logger, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs, File: a.logFile})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger

	settings, err := config.Default()
	if err != nil {
		return err
	}

	path, explicit := a.configPath, a.configPath != ""
	if !explicit {
		if path, err = platform.ResolveConfigPath(); err != nil {
			return err
		}
	}
	if settings, err = config.Load(path, explicit, settings); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		settings.InputDir = a.inputDir
	}
	if flags.Changed("output") {
		settings.OutputDir = a.outputDir
	}
	if flags.Changed("model-dir") {
		settings.ModelDir = a.modelDir
	}
	if flags.Changed("language") {
		settings.Language = sanitizeLanguage(a.language)
	}
	if flags.Changed("device") {
		settings.Device = a.device
	}
	if flags.Changed("auto-download") {
		settings.AutoDownload = a.autoDownload
	}
	if flags.Changed("verify-model") {
		settings.VerifyModel = a.verifyModel
	}

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	a.settings = settings

	a.log().Debug("settings resolved",
		zap.String("config", path),
		zap.String("input_dir", settings.InputDir),
		zap.String("output_dir", settings.OutputDir),
		zap.String("model_dir", settings.ModelDir),
		zap.String("device", settings.Device),
	)
	return nil
}

func (a *appState) loader() whisper.Loader {
	if a.newLoader != nil {
		return a.newLoader(a.settings)
	}
	return &whisper.BundledLoader{
		ModelDir:       a.settings.ModelDir,
		AutoDownload:   a.settings.AutoDownload,
		VerifyChecksum: a.settings.VerifyModel,
		NoProgress:     a.noProgress,
		Logger:         a.log(),
	}
}

func (a *appState) profiles() *profile.Store {
	return profile.NewStore(a.settings.ProfilesPath, a.log())
}

func (a *appState) resolveDevice() (platform.Device, error) {
	return platform.ResolveDevice(a.settings.Device, platform.CurrentRuntime(), a.lookPath)
}

// parameterFlagsChanged reports whether any decoding parameter was given on
// the command line.
func parameterFlagsChanged(cmd *cobra.Command) bool {
	for _, name := range []string{"model", "beam-size", "best-of", "temperature"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// applyParameterFlags overrides base with every parameter flag the user set.
func (a *appState) applyParameterFlags(cmd *cobra.Command, base whisper.Parameters) whisper.Parameters {
	flags := cmd.Flags()
	if flags.Changed("model") {
		base.Model = strings.ToLower(strings.TrimSpace(a.model))
	}
	if flags.Changed("beam-size") {
		base.BeamSize = a.beamSize
	}
	if flags.Changed("best-of") {
		base.BestOf = a.bestOf
	}
	if flags.Changed("temperature") {
		base.Temperature = a.temperature
	}
	return base
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	return progress.Enabled(a.noProgress)
}

func (a *appState) interactive() bool {
	if a.stdinIsTerminal != nil {
		return a.stdinIsTerminal()
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (a *appState) input() io.Reader {
	if a.in == nil {
		return os.Stdin
	}
	return a.in
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}

var errProfileNotFound = errors.New("profile not found")
