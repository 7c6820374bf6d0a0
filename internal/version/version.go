package version

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Set through -ldflags at release time.
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func (i Info) String() string {
	return fmt.Sprintf("voxbatch %s (commit %s, built %s, %s %s)", i.Version, i.Commit, i.Date, i.GoVersion, i.Platform)
}

// Current collects the build metadata of the running binary.
func Current() Info {
	return Info{
		Version:   Resolve(),
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Resolve returns the version string, suffixed with git describe output when
// running from a checkout whose HEAD is not a release tag.
func Resolve() string {
	return resolveVersion(Version, runGit)
}

type gitFunc func(...string) (string, error)

func resolveVersion(base string, git gitFunc) string {
	if base == "" {
		base = "0.0.0"
	}

	if suffix := gitSuffix(base, git); suffix != "" {
		return base + "-" + suffix
	}
	return base
}

func gitSuffix(base string, git gitFunc) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}
	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(desc, "v"+base+"-")
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
