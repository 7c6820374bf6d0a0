// Package profile persists named bundles of decoding parameters in a single
// JSON document. The store seeds itself with built-in profiles on first use.
package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/voxbatch/internal/whisper"
	"go.uber.org/zap"
)

var ErrInvalidName = errors.New("profile name must not be empty")

type Profile struct {
	Name        string
	Parameters  whisper.Parameters
	Description string
}

// body is the on-disk shape of one profile, keyed by name in the document.
type body struct {
	Model       string  `json:"model"`
	BeamSize    int     `json:"beam_size"`
	BestOf      int     `json:"best_of"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
}

// Defaults returns the built-in profiles written when no usable store exists.
func Defaults() []Profile {
	return []Profile{
		{
			Name:        "fast",
			Parameters:  whisper.Parameters{Model: "tiny", BeamSize: 1, BestOf: 1, Temperature: 0},
			Description: "Fast transcription with basic quality",
		},
		{
			Name:        "balanced",
			Parameters:  whisper.Parameters{Model: "base", BeamSize: 1, BestOf: 1, Temperature: 0},
			Description: "Good balance between speed and quality",
		},
		{
			Name:        "quality",
			Parameters:  whisper.Parameters{Model: "medium", BeamSize: 5, BestOf: 3, Temperature: 0},
			Description: "High quality, moderate speed",
		},
		{
			Name:        "max-precision",
			Parameters:  whisper.Parameters{Model: "large", BeamSize: 10, BestOf: 5, Temperature: 0},
			Description: "Highest possible quality (slowest)",
		},
	}
}

// Store is a JSON file of profiles. It assumes a single writer.
type Store struct {
	path   string
	logger *zap.Logger
}

func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

func (s *Store) Path() string {
	return s.path
}

// LoadAll returns every profile in document order. A missing or unparsable
// document is replaced by the defaults before reading again.
func (s *Store) LoadAll() ([]Profile, error) {
	profiles, err := s.read()
	if err == nil {
		return profiles, nil
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.logger.Debug("profile store missing; seeding defaults", zap.String("path", s.path))
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, errMalformed):
		backup := s.path + ".bak"
		s.logger.Warn("profile store unreadable; reseeding defaults", zap.String("path", s.path), zap.String("backup", backup), zap.Error(err))
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			s.logger.Warn("failed to back up profile store", zap.Error(renameErr))
		}
	default:
		return nil, err
	}

	if err := s.write(Defaults()); err != nil {
		return nil, err
	}
	return s.read()
}

// Save creates or overwrites the profile called name. A new profile is
// appended; an existing one keeps its position.
func (s *Store) Save(name string, params whisper.Parameters, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if err := params.Validate(); err != nil {
		return err
	}

	profiles, err := s.LoadAll()
	if err != nil {
		return err
	}

	updated := Profile{Name: name, Parameters: params, Description: description}
	replaced := false
	for i := range profiles {
		if profiles[i].Name == name {
			profiles[i] = updated
			replaced = true
			break
		}
	}
	if !replaced {
		profiles = append(profiles, updated)
	}

	return s.write(profiles)
}

func (s *Store) Get(name string) (Profile, bool, error) {
	name = strings.TrimSpace(name)
	profiles, err := s.LoadAll()
	if err != nil {
		return Profile{}, false, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, true, nil
		}
	}
	return Profile{}, false, nil
}

// Delete removes name and reports whether it existed.
func (s *Store) Delete(name string) (bool, error) {
	name = strings.TrimSpace(name)
	profiles, err := s.LoadAll()
	if err != nil {
		return false, err
	}

	kept := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(profiles) {
		return false, nil
	}
	return true, s.write(kept)
}

var errMalformed = errors.New("profile document must be a JSON object")

// read decodes the document token by token so that key order survives.
func (s *Store) read() ([]Profile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, malformed(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errMalformed
	}

	var profiles []Profile
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed(err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, errMalformed
		}

		var b body
		if err := dec.Decode(&b); err != nil {
			return nil, malformed(err)
		}
		p := Profile{
			Name: name,
			Parameters: whisper.Parameters{
				Model:       b.Model,
				BeamSize:    b.BeamSize,
				BestOf:      b.BestOf,
				Temperature: b.Temperature,
			},
			Description: b.Description,
		}
		// A repeated key replaces the earlier entry and keeps its position.
		if i, dup := index[name]; dup {
			profiles[i] = p
			continue
		}
		index[name] = len(profiles)
		profiles = append(profiles, p)
	}

	if _, err := dec.Token(); err != nil {
		return nil, malformed(err)
	}
	return profiles, nil
}

func (s *Store) write(profiles []Profile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}

	var buf bytes.Buffer
	if err := encode(&buf, profiles); err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace profiles: %w", err)
	}
	return nil
}

func encode(w io.Writer, profiles []Profile) error {
	if len(profiles) == 0 {
		_, err := io.WriteString(w, "{}\n")
		return err
	}

	if _, err := io.WriteString(w, "{\n"); err != nil {
		return err
	}
	for i, p := range profiles {
		key, err := marshal(p.Name, "")
		if err != nil {
			return err
		}
		value, err := marshal(body{
			Model:       p.Parameters.Model,
			BeamSize:    p.Parameters.BeamSize,
			BestOf:      p.Parameters.BestOf,
			Temperature: p.Parameters.Temperature,
			Description: p.Description,
		}, "    ")
		if err != nil {
			return err
		}

		sep := ","
		if i == len(profiles)-1 {
			sep = ""
		}
		if _, err := fmt.Fprintf(w, "    %s: %s%s\n", key, value, sep); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}\n")
	return err
}

// marshal encodes v without HTML escaping so names and descriptions stay
// readable in the file.
func marshal(v any, prefix string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func malformed(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return err
	}
	return fmt.Errorf("%w: %v", errMalformed, err)
}
