package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var errMissingSnapshotPath = errors.New("catalog: snapshot path is required")

// SnapshotFile persists the ordered catalog as a single JSON document,
// rewritten in full on every change. The file is the sole hand-off artifact
// for the read-only serving layer.
type SnapshotFile struct {
	path string
}

// NewSnapshotFile returns a snapshot writer bound to the given path.
func NewSnapshotFile(path string) (*SnapshotFile, error) {
	if path == "" {
		return nil, errMissingSnapshotPath
	}
	return &SnapshotFile{path: path}, nil
}

// Write replaces the snapshot document atomically via a temp file rename.
func (s *SnapshotFile) Write(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}

// Load reads a previously persisted snapshot. A missing file is not an
// error; the catalog simply starts empty.
func (s *SnapshotFile) Load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}
	return entries, nil
}
