package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/HerbHall/cnmwatch/pkg/models"
)

// Compile-time interface guard.
var _ Store = (*FileStore)(nil)

// FileStore keeps each network's status in <dir>/<network_id>.json.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on
// the first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file backing networkID.
func (s *FileStore) Path(networkID string) string {
	return filepath.Join(s.dir, networkID+".json")
}

func (s *FileStore) Load(_ context.Context, networkID string) (*models.NetworkStatus, error) {
	if err := validateID(networkID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(networkID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read status %s: %w", networkID, err)
	}

	var status models.NetworkStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode status %s: %w", networkID, err)
	}
	return &status, nil
}

// Save writes to a temporary file and renames it into place so a crash never
// leaves a half-written record behind.
func (s *FileStore) Save(_ context.Context, status models.NetworkStatus) error {
	if err := validateID(status.NetworkID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create state dir %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status %s: %w", status.NetworkID, err)
	}

	tmp, err := os.CreateTemp(s.dir, status.NetworkID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write status %s: %w", status.NetworkID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(status.NetworkID)); err != nil {
		return fmt.Errorf("replace status %s: %w", status.NetworkID, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
