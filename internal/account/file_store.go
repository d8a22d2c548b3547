package account

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// IndexFile is the name of the account index inside the accounts directory.
const IndexFile = "accounts.yaml"

type index struct {
	Accounts []Account `yaml:"accounts"`
}

// FileStore keeps accounts in a YAML index next to their reference pictures.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates a store rooted at dir. The directory is created on first enrollment.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the accounts directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) readIndex() (*index, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, IndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read account index: %w", err)
	}

	var idx index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse account index: %w", err)
	}
	return &idx, nil
}

func (s *FileStore) writeIndex(idx *index) error {
	sort.Slice(idx.Accounts, func(i, j int) bool { return idx.Accounts[i].ID < idx.Accounts[j].ID })

	data, err := yaml.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal account index: %w", err)
	}

	tmp := filepath.Join(s.dir, IndexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write account index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, IndexFile)); err != nil {
		return fmt.Errorf("replace account index: %w", err)
	}
	return nil
}

// List returns all accounts sorted by ID.
func (s *FileStore) List(ctx context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	accounts := idx.Accounts
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

// Get returns the account with the given ID.
func (s *FileStore) Get(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	for i := range idx.Accounts {
		if idx.Accounts[i].ID == id {
			acc := idx.Accounts[i]
			return &acc, nil
		}
	}
	return nil, ErrAccountNotFound
}

// Picture reads the reference picture. The picture name is reduced to its base
// name so an index entry cannot point outside the accounts directory.
func (s *FileStore) Picture(ctx context.Context, acc *Account) ([]byte, error) {
	if acc == nil || acc.Picture == "" {
		return nil, ErrPictureNotFound
	}
	path := filepath.Join(s.dir, filepath.Base(acc.Picture))
	data, err := os.ReadFile(path) //nolint:gosec // name sanitized via filepath.Base
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrPictureNotFound, acc.Picture)
	}
	if err != nil {
		return nil, fmt.Errorf("read reference picture: %w", err)
	}
	return data, nil
}

// Enroll writes the picture and upserts the account in the index.
func (s *FileStore) Enroll(ctx context.Context, acc Account, picture []byte) error {
	if acc.ID == "" {
		return errors.New("account ID is required")
	}
	if acc.Picture == "" {
		return errors.New("picture name is required")
	}
	if len(picture) == 0 {
		return errors.New("picture is empty")
	}
	acc.Picture = filepath.Base(acc.Picture)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create accounts directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, acc.Picture), picture, 0o644); err != nil {
		return fmt.Errorf("write reference picture: %w", err)
	}

	idx, err := s.readIndex()
	if err != nil {
		return err
	}
	replaced := false
	for i := range idx.Accounts {
		if idx.Accounts[i].ID == acc.ID {
			idx.Accounts[i] = acc
			replaced = true
			break
		}
	}
	if !replaced {
		idx.Accounts = append(idx.Accounts, acc)
	}
	return s.writeIndex(idx)
}
