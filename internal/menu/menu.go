// Package menu is the interactive front end that picks the decoding
// parameters for a run, either directly or through a saved profile.
package menu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fmueller/voxbatch/internal/profile"
	"github.com/fmueller/voxbatch/internal/whisper"
)

var ErrAborted = errors.New("menu aborted: input closed")

var (
	beamChoices   = []int{1, 5, 10}
	bestOfChoices = []int{1, 3, 5}
)

const fallbackModel = "base"

// Selection is what the operator chose. ProfileName is empty when the
// parameters were entered directly.
type Selection struct {
	Parameters  whisper.Parameters
	ProfileName string
}

type ProfileStore interface {
	LoadAll() ([]profile.Profile, error)
	Save(name string, params whisper.Parameters, description string) error
	Delete(name string) (bool, error)
}

type Menu struct {
	in       *bufio.Reader
	out      io.Writer
	store    ProfileStore
	defaults whisper.Parameters
}

func New(in io.Reader, out io.Writer, store ProfileStore, defaults whisper.Parameters) *Menu {
	return &Menu{in: bufio.NewReader(in), out: out, store: store, defaults: defaults}
}

// Choose runs the top-level menu until the operator settles on parameters.
func (m *Menu) Choose() (Selection, error) {
	for {
		m.println("Choose how to run:")
		m.printf("1. Default (model '%s' with default parameters)\n", m.defaults.Model)
		m.println("2. Advanced (choose model and parameters)")
		m.println("3. Create/edit a profile")
		m.println("4. Run with a saved profile")

		choice, err := m.ask("Enter 1, 2, 3 or 4: ")
		if err != nil {
			return Selection{}, err
		}

		switch choice {
		case "2":
			params, err := m.askParameters()
			return Selection{Parameters: params}, err
		case "3":
			sel, done, err := m.manageProfiles()
			if err != nil || done {
				return sel, err
			}
		case "4":
			sel, done, err := m.runWithProfile()
			if err != nil || done {
				return sel, err
			}
		default:
			return Selection{Parameters: m.defaults}, nil
		}
	}
}

func (m *Menu) askParameters() (whisper.Parameters, error) {
	var params whisper.Parameters
	var err error

	if params.Model, err = m.selectModel(); err != nil {
		return params, err
	}
	m.println()
	m.println("Beam size: how many hypotheses are kept while decoding.")
	m.println(" Low values (1) are faster, higher values (5, 10) are slower and more accurate.")
	if params.BeamSize, err = m.selectChoice("Beam size (1, 5 or 10): ", beamChoices); err != nil {
		return params, err
	}
	m.println()
	m.println("Best of: how many candidate transcriptions are generated to pick the most confident one.")
	if params.BestOf, err = m.selectChoice("Best of (1, 3 or 5): ", bestOfChoices); err != nil {
		return params, err
	}
	m.println()
	m.println("Temperature: randomness while decoding. 0.0 is deterministic and best for transcription.")
	if params.Temperature, err = m.selectTemperature(); err != nil {
		return params, err
	}
	return params, nil
}

func (m *Menu) selectModel() (string, error) {
	m.println()
	m.printf("Available models: %s\n", strings.Join(whisper.AvailableModels, ", "))
	answer, err := m.ask("Model: ")
	if err != nil {
		return "", err
	}

	model := strings.ToLower(answer)
	if !whisper.IsAvailableModel(model) {
		m.printf("Invalid model. Using '%s'.\n", fallbackModel)
		return fallbackModel, nil
	}
	return model, nil
}

func (m *Menu) selectChoice(prompt string, choices []int) (int, error) {
	answer, err := m.ask(prompt)
	if err != nil {
		return 0, err
	}

	if v, ok := parseChoice(answer, choices); ok {
		return v, nil
	}
	m.printf("Invalid value. Using %d.\n", choices[0])
	return choices[0], nil
}

func (m *Menu) selectTemperature() (float64, error) {
	answer, err := m.ask("Temperature (0.0 to 1.0): ")
	if err != nil {
		return 0, err
	}

	if v, ok := parseTemperature(answer); ok {
		return v, nil
	}
	m.println("Invalid value. Using 0.0.")
	return 0, nil
}

// editParameters prompts for each field and keeps the current value on empty
// or invalid input.
func (m *Menu) editParameters(current whisper.Parameters) (whisper.Parameters, error) {
	params := current

	m.printf("\nAvailable models: %s\n", strings.Join(whisper.AvailableModels, ", "))
	answer, err := m.ask(fmt.Sprintf("Model [current: %s]: ", current.Model))
	if err != nil {
		return current, err
	}
	if model := strings.ToLower(answer); model != "" {
		if whisper.IsAvailableModel(model) {
			params.Model = model
		} else {
			m.println("Invalid model. Keeping current.")
		}
	}

	answer, err = m.ask(fmt.Sprintf("Beam size (1, 5 or 10) [current: %d]: ", current.BeamSize))
	if err != nil {
		return current, err
	}
	params.BeamSize = m.keepOr(answer, current.BeamSize, beamChoices)

	answer, err = m.ask(fmt.Sprintf("Best of (1, 3 or 5) [current: %d]: ", current.BestOf))
	if err != nil {
		return current, err
	}
	params.BestOf = m.keepOr(answer, current.BestOf, bestOfChoices)

	answer, err = m.ask(fmt.Sprintf("Temperature (0.0 to 1.0) [current: %g]: ", current.Temperature))
	if err != nil {
		return current, err
	}
	if answer != "" {
		if v, ok := parseTemperature(answer); ok {
			params.Temperature = v
		} else {
			m.println("Invalid value. Keeping current.")
		}
	}

	return params, nil
}

func (m *Menu) keepOr(answer string, current int, choices []int) int {
	if answer == "" {
		return current
	}
	if v, ok := parseChoice(answer, choices); ok {
		return v
	}
	m.println("Invalid value. Keeping current.")
	return current
}

func parseChoice(answer string, choices []int) (int, bool) {
	v, err := strconv.Atoi(answer)
	if err != nil {
		return 0, false
	}
	for _, c := range choices {
		if v == c {
			return v, true
		}
	}
	return 0, false
}

func parseTemperature(answer string) (float64, bool) {
	v, err := strconv.ParseFloat(answer, 64)
	if err != nil || !(v >= 0 && v <= 1) {
		return 0, false
	}
	return v, true
}

// ask prints prompt and returns the trimmed answer. A closed input aborts the
// menu instead of looping on empty answers.
func (m *Menu) ask(prompt string) (string, error) {
	m.printf("%s", prompt)
	line, err := m.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			m.println()
			return "", ErrAborted
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (m *Menu) confirm(prompt string) (bool, error) {
	answer, err := m.ask(prompt + " (y/n): ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (m *Menu) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(m.out, format, args...)
}

func (m *Menu) println(args ...any) {
	_, _ = fmt.Fprintln(m.out, args...)
}
