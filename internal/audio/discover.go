package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const TranscriptExt = ".txt"

// SupportedExtensions lists the audio formats picked up from the input
// directory, in the order they are enumerated.
var SupportedExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".opus"}

func IsSupported(path string) bool {
	ext := filepath.Ext(path)
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// Discover lists supported audio files directly under dir. Files are grouped
// by extension in SupportedExtensions order and sorted by name within a group.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory %s: %w", dir, err)
	}

	byExt := make(map[string][]string, len(SupportedExtensions))
	for _, entry := range entries {
		if entry.IsDir() || !IsSupported(entry.Name()) {
			continue
		}
		ext := filepath.Ext(entry.Name())
		byExt[ext] = append(byExt[ext], entry.Name())
	}

	files := make([]string, 0, len(entries))
	for _, ext := range SupportedExtensions {
		names := byExt[ext]
		sort.Strings(names)
		for _, name := range names {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files, nil
}

// Stem returns the file name without its extension. It identifies an audio
// file and names its transcript.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func TranscriptPath(outputDir, audioPath string) string {
	return filepath.Join(outputDir, Stem(audioPath)+TranscriptExt)
}
