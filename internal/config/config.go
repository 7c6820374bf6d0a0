// Package config holds the explicit runtime settings for a batch run:
// directory layout, engine preferences and the fixed decoding thresholds.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/voxbatch/internal/platform"
	"github.com/fmueller/voxbatch/internal/whisper"
	"gopkg.in/yaml.v3"
)

// Settings is passed explicitly to every component; there is no global
// configuration.
type Settings struct {
	InputDir     string             `yaml:"input_dir"`
	OutputDir    string             `yaml:"output_dir"`
	ProfilesPath string             `yaml:"profiles_path"`
	ModelDir     string             `yaml:"model_dir"`
	Language     string             `yaml:"language"`
	Device       string             `yaml:"device"` // "auto", "cpu" or "gpu"
	AutoDownload bool               `yaml:"auto_download"`
	VerifyModel  bool               `yaml:"verify_model"`
	Decoding     whisper.Thresholds `yaml:"decoding"`
	Load         LoadSettings       `yaml:"load"`
}

// LoadSettings tunes the cancellable model load.
type LoadSettings struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Grace        time.Duration `yaml:"grace"`
	JoinTimeout  time.Duration `yaml:"join_timeout"`
}

func DefaultLoadSettings() LoadSettings {
	return LoadSettings{
		PollInterval: 100 * time.Millisecond,
		Grace:        time.Second,
		JoinTimeout:  time.Second,
	}
}

// DefaultsFor lays out the data directory the same way on every platform.
func DefaultsFor(dataDir string) Settings {
	return Settings{
		InputDir:     filepath.Join(dataDir, "data", "input"),
		OutputDir:    filepath.Join(dataDir, "data", "output"),
		ProfilesPath: filepath.Join(dataDir, "profiles", "profiles.json"),
		ModelDir:     filepath.Join(dataDir, "models"),
		Language:     whisper.DefaultLanguage,
		Device:       "auto",
		AutoDownload: true,
		Decoding:     whisper.DefaultThresholds(),
		Load:         DefaultLoadSettings(),
	}
}

func Default() (Settings, error) {
	dataDir, err := platform.ResolveDataDir()
	if err != nil {
		return Settings{}, err
	}
	return DefaultsFor(dataDir), nil
}

// Load reads a YAML settings file on top of base. A missing file at the
// default location is not an error; a missing explicit path is.
func Load(path string, explicit bool, base Settings) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return base, nil
		}
		return Settings{}, fmt.Errorf("reading config file: %w", err)
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Settings{}, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.InputDir = expandTilde(cfg.InputDir)
	cfg.OutputDir = expandTilde(cfg.OutputDir)
	cfg.ProfilesPath = expandTilde(cfg.ProfilesPath)
	cfg.ModelDir = expandTilde(cfg.ModelDir)
	return cfg, nil
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.InputDir) == "" {
		return errors.New("input_dir must not be empty")
	}
	if strings.TrimSpace(s.OutputDir) == "" {
		return errors.New("output_dir must not be empty")
	}
	if strings.TrimSpace(s.ProfilesPath) == "" {
		return errors.New("profiles_path must not be empty")
	}
	if strings.TrimSpace(s.ModelDir) == "" {
		return errors.New("model_dir must not be empty")
	}

	switch strings.ToLower(strings.TrimSpace(s.Device)) {
	case "", "auto", "cpu", "gpu":
	default:
		return fmt.Errorf("device must be auto, cpu or gpu, got %q", s.Device)
	}

	if s.Load.PollInterval <= 0 {
		return fmt.Errorf("load.poll_interval must be > 0")
	}
	if s.Load.Grace <= 0 {
		return fmt.Errorf("load.grace must be > 0")
	}
	if s.Load.JoinTimeout <= 0 {
		return fmt.Errorf("load.join_timeout must be > 0")
	}
	if s.Decoding.NoSpeech < 0 || s.Decoding.NoSpeech > 1 {
		return fmt.Errorf("decoding.no_speech_threshold must be within [0, 1], got %g", s.Decoding.NoSpeech)
	}
	return nil
}

// EnsureDirectories creates every directory the run reads from or writes to.
func (s Settings) EnsureDirectories() error {
	for _, dir := range []string{s.InputDir, s.OutputDir, filepath.Dir(s.ProfilesPath), s.ModelDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
