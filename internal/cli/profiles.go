package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxbatch/internal/profile"
	"github.com/fmueller/voxbatch/internal/whisper"
)

func newProfilesCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage saved parameter profiles",
	}

	cmd.AddCommand(newProfilesListCmd(app))
	cmd.AddCommand(newProfilesShowCmd(app))
	cmd.AddCommand(newProfilesSaveCmd(app))
	cmd.AddCommand(newProfilesDeleteCmd(app))
	return cmd
}

func newProfilesListCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := app.profiles().LoadAll()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMODEL\tBEAM\tBEST OF\tTEMP\tDESCRIPTION")
			for _, p := range profiles {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%g\t%s\n",
					p.Name, p.Parameters.Model, p.Parameters.BeamSize, p.Parameters.BestOf, p.Parameters.Temperature, p.Description)
			}
			return w.Flush()
		},
	}
}

func newProfilesShowCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := app.profiles()
			p, found, err := store.Get(args[0])
			if err != nil {
				return err
			}
			if !found {
				return unknownProfileError(store, args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Profile: %s\n", p.Name)
			fmt.Fprintf(out, "Model: %s\n", p.Parameters.Model)
			fmt.Fprintf(out, "Beam size: %d\n", p.Parameters.BeamSize)
			fmt.Fprintf(out, "Best of: %d\n", p.Parameters.BestOf)
			fmt.Fprintf(out, "Temperature: %g\n", p.Parameters.Temperature)
			fmt.Fprintf(out, "Description: %s\n", p.Description)
			return nil
		},
	}
}

func newProfilesSaveCmd(app *appState) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Create or update a profile from parameter flags",
		Long: "Creates a profile, or updates an existing one in place. Parameters not given " +
			"as flags keep the profile's current values, or the defaults for a new profile.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := app.profiles()
			name := strings.TrimSpace(args[0])

			base := whisper.DefaultParameters()
			existing, found, err := store.Get(name)
			if err != nil {
				return err
			}
			if found {
				base = existing.Parameters
				if !cmd.Flags().Changed("description") {
					description = existing.Description
				}
			}

			params := app.applyParameterFlags(cmd, base)
			if err := store.Save(name, params, description); err != nil {
				return err
			}

			app.log().Debug("profile saved", zap.String("profile", name), zap.Bool("updated", found))
			verb := "saved"
			if found {
				verb = "updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' %s.\n", name, verb)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Human-readable description")
	return cmd
}

func newProfilesDeleteCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := app.profiles()
			deleted, err := store.Delete(args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return unknownProfileError(store, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' deleted.\n", args[0])
			return nil
		},
	}
}

func unknownProfileError(store *profile.Store, name string) error {
	profiles, err := store.LoadAll()
	if err != nil || len(profiles) == 0 {
		return fmt.Errorf("%w: %q", errProfileNotFound, name)
	}

	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	return fmt.Errorf("%w: %q (available: %s)", errProfileNotFound, name, strings.Join(names, ", "))
}
