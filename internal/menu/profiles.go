package menu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fmueller/voxbatch/internal/profile"
)

// manageProfiles returns done=true when the operator chose to run right away
// with the profile they just saved.
func (m *Menu) manageProfiles() (Selection, bool, error) {
	for {
		profiles, err := m.store.LoadAll()
		if err != nil {
			return Selection{}, false, err
		}

		m.println()
		m.println("Profiles")
		m.println(strings.Repeat("=", 40))
		if len(profiles) > 0 {
			m.println("Existing profiles:")
			for i, p := range profiles {
				m.printf("  %d. %s - %s\n", i+1, p.Name, describe(p))
			}
			m.println()
		}

		m.println("1. Create a new profile")
		if len(profiles) > 0 {
			m.println("2. Edit an existing profile")
			m.println("3. Delete a profile")
		}
		m.println("0. Back")

		choice, err := m.ask("Choose an option: ")
		if err != nil {
			return Selection{}, false, err
		}

		switch {
		case choice == "1":
			return m.createProfile(profiles)
		case choice == "2" && len(profiles) > 0:
			return m.editProfile(profiles)
		case choice == "3" && len(profiles) > 0:
			if err := m.deleteProfile(profiles); err != nil {
				return Selection{}, false, err
			}
		case choice == "0":
			return Selection{}, false, nil
		default:
			m.println("Invalid option.")
		}
	}
}

func (m *Menu) createProfile(existing []profile.Profile) (Selection, bool, error) {
	m.println()
	m.println("New profile")
	m.println(strings.Repeat("-", 25))

	var name string
	for {
		answer, err := m.ask("Profile name: ")
		if err != nil {
			return Selection{}, false, err
		}
		if answer == "" {
			m.println("Name must not be empty.")
			continue
		}
		if _, found := find(existing, answer); found {
			overwrite, err := m.confirm(fmt.Sprintf("Profile '%s' already exists. Overwrite?", answer))
			if err != nil {
				return Selection{}, false, err
			}
			if !overwrite {
				continue
			}
		}
		name = answer
		break
	}

	description, err := m.ask("Description (optional): ")
	if err != nil {
		return Selection{}, false, err
	}

	m.printf("\nConfiguring profile '%s':\n", name)
	params, err := m.askParameters()
	if err != nil {
		return Selection{}, false, err
	}

	if err := m.store.Save(name, params, description); err != nil {
		return Selection{}, false, err
	}
	m.printf("\nProfile '%s' saved.\n", name)

	return m.offerRun(Selection{Parameters: params, ProfileName: name})
}

func (m *Menu) editProfile(profiles []profile.Profile) (Selection, bool, error) {
	m.println()
	m.println("Edit profile")
	m.println(strings.Repeat("-", 30))
	for i, p := range profiles {
		m.printf("%d. %s\n", i+1, p.Name)
		m.printf("   Model: %s, beam: %d\n", p.Parameters.Model, p.Parameters.BeamSize)
		m.printf("   %s\n", describe(p))
	}

	p, err := m.pick(profiles, "to edit")
	if err != nil {
		return Selection{}, false, err
	}

	m.printf("\nEditing profile: %s\n", p.Name)
	m.println("(press Enter to keep the current value)")

	description, err := m.ask(fmt.Sprintf("Description [%s]: ", p.Description))
	if err != nil {
		return Selection{}, false, err
	}
	if description == "" {
		description = p.Description
	}

	params, err := m.editParameters(p.Parameters)
	if err != nil {
		return Selection{}, false, err
	}

	if err := m.store.Save(p.Name, params, description); err != nil {
		return Selection{}, false, err
	}
	m.printf("\nProfile '%s' updated.\n", p.Name)

	return m.offerRun(Selection{Parameters: params, ProfileName: p.Name})
}

func (m *Menu) deleteProfile(profiles []profile.Profile) error {
	m.println()
	m.println("Delete profile")
	m.println(strings.Repeat("-", 20))
	for i, p := range profiles {
		m.printf("%d. %s\n", i+1, p.Name)
	}

	p, err := m.pick(profiles, "to delete")
	if err != nil {
		return err
	}

	ok, err := m.confirm(fmt.Sprintf("Delete '%s'?", p.Name))
	if err != nil {
		return err
	}
	if !ok {
		m.println("Deletion cancelled.")
		return nil
	}

	if _, err := m.store.Delete(p.Name); err != nil {
		return err
	}
	m.printf("Profile '%s' deleted.\n", p.Name)
	return nil
}

func (m *Menu) runWithProfile() (Selection, bool, error) {
	profiles, err := m.store.LoadAll()
	if err != nil {
		return Selection{}, false, err
	}

	if len(profiles) == 0 {
		m.println()
		m.println("No profiles found. Create one first (option 3).")
		if _, err := m.ask("Press Enter to continue..."); err != nil {
			return Selection{}, false, err
		}
		return Selection{}, false, nil
	}

	m.println()
	m.println("Run with profile")
	m.println(strings.Repeat("=", 30))
	for i, p := range profiles {
		m.printf("%d. %s\n", i+1, p.Name)
		m.printf("   Model: %s\n", p.Parameters.Model)
		m.printf("   Beam: %d, best of: %d, temperature: %g\n", p.Parameters.BeamSize, p.Parameters.BestOf, p.Parameters.Temperature)
		m.printf("   %s\n\n", describe(p))
	}

	p, err := m.pick(profiles, "")
	if err != nil {
		return Selection{}, false, err
	}

	m.printf("\nSelected profile: %s\n", p.Name)
	m.printf("Settings: %s | beam: %d | best of: %d\n", p.Parameters.Model, p.Parameters.BeamSize, p.Parameters.BestOf)
	return Selection{Parameters: p.Parameters, ProfileName: p.Name}, true, nil
}

// pick asks for a 1-based index until a valid one is entered.
func (m *Menu) pick(profiles []profile.Profile, purpose string) (profile.Profile, error) {
	prompt := fmt.Sprintf("\nChoose a profile (1-%d): ", len(profiles))
	if purpose != "" {
		prompt = fmt.Sprintf("\nChoose a profile %s (1-%d): ", purpose, len(profiles))
	}

	for {
		answer, err := m.ask(prompt)
		if err != nil {
			return profile.Profile{}, err
		}
		n, err := strconv.Atoi(answer)
		if err != nil {
			m.println("Invalid input.")
			continue
		}
		if n < 1 || n > len(profiles) {
			m.println("Invalid choice.")
			continue
		}
		return profiles[n-1], nil
	}
}

func (m *Menu) offerRun(sel Selection) (Selection, bool, error) {
	run, err := m.confirm("Run transcription with this profile now?")
	if err != nil || !run {
		return Selection{}, false, err
	}
	return sel, true, nil
}

func find(profiles []profile.Profile, name string) (profile.Profile, bool) {
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return profile.Profile{}, false
}

func describe(p profile.Profile) string {
	if p.Description == "" {
		return "No description"
	}
	return p.Description
}
