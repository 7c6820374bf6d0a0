package platform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataDirForLinuxWithXDG(t *testing.T) {
	t.Parallel()

	dir, err := DataDirFor("linux", "/home/dev", "/tmp/xdg-data")
	require.NoError(t, err)
	require.Equal(t, "/tmp/xdg-data/voxbatch", dir)
}

func TestDataDirForLinuxWithoutXDG(t *testing.T) {
	t.Parallel()

	dir, err := DataDirFor("linux", "/home/dev", "")
	require.NoError(t, err)
	require.Equal(t, "/home/dev/.local/share/voxbatch", dir)
}

func TestDataDirForMacOS(t *testing.T) {
	t.Parallel()

	dir, err := DataDirFor("darwin", "/Users/dev", "")
	require.NoError(t, err)
	require.Equal(t, "/Users/dev/Library/Application Support/voxbatch", dir)
}

func TestDataDirForUnsupportedOS(t *testing.T) {
	t.Parallel()

	_, err := DataDirFor("windows", "/Users/dev", "")
	require.Error(t, err)

	_, err = DataDirFor("linux", "", "")
	require.Error(t, err)
}

func TestConfigDirFor(t *testing.T) {
	t.Parallel()

	dir, err := ConfigDirFor("linux", "/home/dev", "")
	require.NoError(t, err)
	require.Equal(t, "/home/dev/.config/voxbatch", dir)

	dir, err = ConfigDirFor("linux", "/home/dev", "/cfg")
	require.NoError(t, err)
	require.Equal(t, "/cfg/voxbatch", dir)
}

func TestDetectDevice(t *testing.T) {
	t.Parallel()

	found := func(string) (string, error) { return "/usr/bin/nvidia-smi", nil }
	missing := func(string) (string, error) { return "", errors.New("not found") }

	require.Equal(t, DeviceGPU, DetectDevice(Runtime{OS: "linux", Arch: "amd64"}, found))
	require.Equal(t, DeviceCPU, DetectDevice(Runtime{OS: "linux", Arch: "amd64"}, missing))
	require.Equal(t, DeviceGPU, DetectDevice(Runtime{OS: "darwin", Arch: "arm64"}, missing))
	require.Equal(t, DeviceCPU, DetectDevice(Runtime{OS: "darwin", Arch: "amd64"}, missing))
}

func TestResolveDevice(t *testing.T) {
	t.Parallel()

	missing := func(string) (string, error) { return "", errors.New("not found") }
	rt := Runtime{OS: "linux", Arch: "amd64"}

	device, err := ResolveDevice("auto", rt, missing)
	require.NoError(t, err)
	require.Equal(t, DeviceCPU, device)

	device, err = ResolveDevice(" GPU ", rt, missing)
	require.NoError(t, err)
	require.True(t, device.Accelerated())

	_, err = ResolveDevice("tpu", rt, missing)
	require.Error(t, err)
}
