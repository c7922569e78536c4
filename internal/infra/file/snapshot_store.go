package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var unsafeProfileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SnapshotStore persists the attempt snapshot as one JSON document per profile,
// the on-disk counterpart of a browser origin's local storage.
type SnapshotStore struct {
	mu   sync.Mutex
	path string
}

// NewSnapshotStore stores the snapshot for profile under dir.
func NewSnapshotStore(dir, profile string) *SnapshotStore {
	name := unsafeProfileChars.ReplaceAllString(profile, "_")
	if name == "" {
		name = "default"
	}
	return &SnapshotStore{path: filepath.Join(dir, "quiz-attempts-"+name+".json")}
}

// Path returns the snapshot file location.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Load returns nil when nothing has been saved yet.
func (s *SnapshotStore) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// Save writes through a temp file and rename so a crash never leaves a torn snapshot.
func (s *SnapshotStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".quiz-attempts-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
