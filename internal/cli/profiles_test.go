package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxbatch/internal/profile"
	"github.com/fmueller/voxbatch/internal/whisper"
)

func runProfiles(t *testing.T, env testEnv, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runApp(context.Background(), newTestApp(&fakeLoader{model: &fakeModel{}}), append([]string{"--config", env.config, "profiles"}, args...)...)
	return stdout, err
}

func TestProfilesListSeedsDefaults(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	stdout, err := runProfiles(t, env, "list")
	require.NoError(t, err)
	require.Contains(t, stdout, "NAME")
	for _, p := range profile.Defaults() {
		require.Contains(t, stdout, p.Name)
	}
	require.FileExists(t, env.profiles)
}

func TestProfilesSaveShowDelete(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	stdout, err := runProfiles(t, env, "save", "podcasts", "--model", "small", "--beam-size", "5", "--description", "weekly show")
	require.NoError(t, err)
	require.Contains(t, stdout, "Profile 'podcasts' saved.")

	stdout, err = runProfiles(t, env, "show", "podcasts")
	require.NoError(t, err)
	require.Contains(t, stdout, "Model: small")
	require.Contains(t, stdout, "Beam size: 5")
	require.Contains(t, stdout, "Best of: 1")
	require.Contains(t, stdout, "Description: weekly show")

	// Updating keeps fields that were not given.
	stdout, err = runProfiles(t, env, "save", "podcasts", "--best-of", "3")
	require.NoError(t, err)
	require.Contains(t, stdout, "Profile 'podcasts' updated.")

	p, found, err := profile.NewStore(env.profiles, nil).Get("podcasts")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, whisper.Parameters{Model: "small", BeamSize: 5, BestOf: 3, Temperature: 0}, p.Parameters)
	require.Equal(t, "weekly show", p.Description)

	stdout, err = runProfiles(t, env, "delete", "podcasts")
	require.NoError(t, err)
	require.Contains(t, stdout, "Profile 'podcasts' deleted.")

	_, err = runProfiles(t, env, "show", "podcasts")
	require.ErrorIs(t, err, errProfileNotFound)
}

func TestProfilesDeleteUnknown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, err := runProfiles(t, env, "delete", "ghost")
	require.ErrorIs(t, err, errProfileNotFound)
}

func TestProfilesSaveRejectsInvalidParameters(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, err := runProfiles(t, env, "save", "broken", "--temperature", "1.5")
	require.ErrorIs(t, err, whisper.ErrInvalidParameters)

	_, err = runProfiles(t, env, "save", "  ")
	require.ErrorIs(t, err, profile.ErrInvalidName)
}
