package receipt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// DiskStore writes receipts as JSON files to a directory. When no
// directory is given, a temp directory is created lazily on first use.
type DiskStore struct {
	mu  sync.Mutex
	dir string
}

// NewDiskStore creates a DiskStore rooted at dir, or at a lazily-created
// temp directory if dir is empty.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Save writes a receipt as a JSON file.
func (s *DiskStore) Save(r *Receipt) error {
	path, err := s.path(r.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshalling receipt %s: %w", r.ID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing receipt %s: %w", r.ID, err)
	}
	return nil
}

// Load reads a receipt from disk.
func (s *DiskStore) Load(id string) (*Receipt, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading receipt %s: %w", id, err)
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshalling receipt %s: %w", id, err)
	}
	return &r, nil
}

// path maps an ID to its file. IDs must be UUIDs so that a caller-supplied
// ID cannot name a file outside the store.
func (s *DiskStore) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("invalid receipt id %q", id)
	}
	dir, err := s.ensureDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, id+".json"), nil
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "tofile-receipts-*")
	if err != nil {
		return "", fmt.Errorf("creating receipt directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}
