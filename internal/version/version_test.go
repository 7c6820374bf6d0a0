package version

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type gitReplies struct {
	notRepo  bool
	exact    error
	describe string
	descErr  error
}

func (r gitReplies) run(args ...string) (string, error) {
	if r.notRepo {
		return "", errors.New("not a git repository")
	}
	switch args[0] {
	case "rev-parse":
		return ".git", nil
	case "describe":
		for _, a := range args {
			if a == "--exact-match" {
				return "v0.1.0", r.exact
			}
		}
		return r.describe, r.descErr
	}
	return "", errors.New("unexpected git call")
}

func TestResolveVersion(t *testing.T) {
	t.Parallel()

	noTag := errors.New("no tag")
	cases := []struct {
		name string
		base string
		git  gitReplies
		want string
	}{
		{name: "tagged release", base: "0.1.0", git: gitReplies{}, want: "0.1.0"},
		{name: "commits after tag", base: "0.1.0", git: gitReplies{exact: noTag, describe: "v0.1.0-3-gabcdef"}, want: "0.1.0-3-gabcdef"},
		{name: "dirty tree", base: "0.1.0", git: gitReplies{exact: noTag, describe: "v0.1.0-3-gabcdef-dirty"}, want: "0.1.0-3-gabcdef-dirty"},
		{name: "no tags yet", base: "0.1.0", git: gitReplies{exact: noTag, describe: "abcdef"}, want: "0.1.0-abcdef"},
		{name: "outside repository", base: "0.1.0", git: gitReplies{notRepo: true}, want: "0.1.0"},
		{name: "empty base", base: "", git: gitReplies{notRepo: true}, want: "0.0.0"},
		{name: "describe fails", base: "0.1.0", git: gitReplies{exact: noTag, descErr: errors.New("boom")}, want: "0.1.0"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, resolveVersion(tc.base, tc.git.run))
		})
	}
}

func TestInfoString(t *testing.T) {
	t.Parallel()

	info := Info{Version: "0.1.0", Commit: "abc123", Date: "2026-01-02", GoVersion: "go1.26", Platform: "linux/amd64"}
	require.Equal(t, "voxbatch 0.1.0 (commit abc123, built 2026-01-02, go1.26 linux/amd64)", info.String())
}
