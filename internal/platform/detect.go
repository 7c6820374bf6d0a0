package platform

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const appName = "voxbatch"

type Runtime struct {
	OS   string
	Arch string
}

func CurrentRuntime() Runtime {
	return Runtime{
		OS:   runtime.GOOS,
		Arch: NormalizeArch(runtime.GOARCH),
	}
}

func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// DataDirFor returns the per-user data directory that holds audio input,
// transcripts, profiles and downloaded models.
func DataDirFor(goos, homeDir, xdgDataHome string) (string, error) {
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		if xdgDataHome != "" {
			return filepath.Join(xdgDataHome, appName), nil
		}
		return filepath.Join(homeDir, ".local", "share", appName), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}

func ConfigDirFor(goos, homeDir, xdgConfigHome string) (string, error) {
	if homeDir == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		if xdgConfigHome != "" {
			return filepath.Join(xdgConfigHome, appName), nil
		}
		return filepath.Join(homeDir, ".config", appName), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}

func ResolveDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return DataDirFor(runtime.GOOS, homeDir, os.Getenv("XDG_DATA_HOME"))
}

func ResolveConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	dir, err := ConfigDirFor(runtime.GOOS, homeDir, os.Getenv("XDG_CONFIG_HOME"))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Device is the compute device inference runs on. It is chosen once per
// controller and never changes afterwards.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

func (d Device) Accelerated() bool {
	return d == DeviceGPU
}

func (d Device) String() string {
	return string(d)
}

// DetectDevice reports gpu when a CUDA driver tool is on PATH or the host is
// Apple Silicon (Metal), cpu otherwise.
func DetectDevice(rt Runtime, lookPath func(string) (string, error)) Device {
	if rt.OS == "darwin" && rt.Arch == "arm64" {
		return DeviceGPU
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if _, err := lookPath("nvidia-smi"); err == nil {
		return DeviceGPU
	}
	return DeviceCPU
}

// ResolveDevice applies a user preference of auto, cpu or gpu.
func ResolveDevice(preference string, rt Runtime, lookPath func(string) (string, error)) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(preference)) {
	case "", "auto":
		return DetectDevice(rt, lookPath), nil
	case "cpu":
		return DeviceCPU, nil
	case "gpu", "cuda", "metal":
		return DeviceGPU, nil
	default:
		return "", fmt.Errorf("unknown device %q (expected auto, cpu or gpu)", preference)
	}
}
