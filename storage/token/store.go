package tokenstore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Store persists the bearer token between runs. It is the only durable
// state the client keeps; it is written by login/logout/delete-account
// flows and read at startup and on every outgoing request.
type Store interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

type fileStore struct {
	path string
}

var _ Store = (*fileStore)(nil) // interface compliance check

// NewFileStore returns a Store backed by a single file at path.
func NewFileStore(path string) Store {
	return &fileStore{path: path}
}

func (s *fileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrapf(err, "reading token file %s", s.path)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *fileStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Wrapf(err, "creating token dir for %s", s.path)
	}
	if err := os.WriteFile(s.path, []byte(token), 0600); err != nil {
		return errors.Wrapf(err, "writing token file %s", s.path)
	}
	return nil
}

func (s *fileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing token file %s", s.path)
	}
	return nil
}

type memoryStore struct {
	mu    sync.RWMutex
	token string
}

var _ Store = (*memoryStore)(nil)

// NewMemoryStore returns an in-memory Store; handy for tests.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Load() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *memoryStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *memoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
