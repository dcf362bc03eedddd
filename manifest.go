package cococonv

// Split manifests: plain text lists of image ids, one per line.

import (
	"fmt"
	"os"
)

// Manifest appends image ids to a split manifest file. Existing content is kept.
type Manifest struct {
	file *os.File
	path string
	n    int
}

// OpenManifest opens the manifest at path for appending, creating it if needed.
func OpenManifest(path string) (*Manifest, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %q: %w", path, err)
	}
	return &Manifest{file: f, path: path}, nil
}

// Append adds id as the last line.
func (m *Manifest) Append(id string) error {
	if _, err := fmt.Fprintln(m.file, id); err != nil {
		return fmt.Errorf("failed to append to manifest %q: %w", m.path, err)
	}
	m.n++
	return nil
}

// Len is the number of ids appended through m.
func (m *Manifest) Len() int {
	return m.n
}

// Close closes the manifest file.
func (m *Manifest) Close() error {
	return m.file.Close()
}

// ReadManifest returns the ids listed in the manifest at path.
func ReadManifest(path string) ([]string, error) {
	return readLines(path)
}
