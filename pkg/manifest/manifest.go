package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ReadManifest reads and parses a manifest from the given file path.
func ReadManifest(path string) (*ExportManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m ExportManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	return &m, nil
}

// ReadOrEmpty reads the manifest at path, or returns an empty one when
// the file does not exist yet.
func ReadOrEmpty(path string) (*ExportManifest, error) {
	m, err := ReadManifest(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ExportManifest{}, nil
	}
	return m, err
}

// WriteManifest serializes and writes a manifest to the given file path.
func WriteManifest(path string, m *ExportManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	// Write-then-rename so readers never see a partial manifest.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// Put adds e, replacing any entry with the same key. Entries stay sorted
// by file name.
func (m *ExportManifest) Put(e Entry) {
	for i := range m.Documents {
		if m.Documents[i].Key == e.Key {
			m.Documents[i] = e
			return
		}
	}
	m.Documents = append(m.Documents, e)
	sort.Slice(m.Documents, func(i, j int) bool {
		return m.Documents[i].File < m.Documents[j].File
	})
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Mismatch is a manifest entry whose file is missing or altered.
type Mismatch struct {
	File   string
	Reason string
}

// Verify checks every entry of the manifest in dir against the file on
// disk.
func Verify(dir string) ([]Mismatch, error) {
	m, err := ReadManifest(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}

	var bad []Mismatch
	for _, e := range m.Documents {
		data, err := os.ReadFile(filepath.Join(dir, e.File))
		if err != nil {
			bad = append(bad, Mismatch{File: e.File, Reason: "missing"})
			continue
		}
		if got := Checksum(data); got != e.SHA256 {
			bad = append(bad, Mismatch{File: e.File, Reason: "checksum mismatch"})
		}
	}
	return bad, nil
}
