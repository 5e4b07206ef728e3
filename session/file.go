package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps the pair in one JSON document on disk. Replacing the whole file with a
// rename makes each write all-or-nothing.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileDocument struct {
	Token string          `json:"token,omitempty"`
	User  json.RawMessage `json:"user,omitempty"`
}

// NewFileStore returns a store backed by path. The parent directory is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Read(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		// An unreadable document cannot hold a trustworthy token.
		_ = os.Remove(s.path)
		return nil, nil
	}

	if strings.TrimSpace(doc.Token) == "" {
		if len(doc.User) > 0 {
			_ = os.Remove(s.path)
		}
		return nil, nil
	}
	if len(doc.User) == 0 || string(doc.User) == "null" {
		return &Record{Token: doc.Token}, nil
	}

	user, err := DecodeUser(doc.User)
	if err != nil {
		return &Record{Token: doc.Token}, nil
	}
	return &Record{Token: doc.Token, User: user}, nil
}

func (s *FileStore) Write(ctx context.Context, token string, user UserRecord) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	rawUser, err := EncodeUser(user)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(fileDocument{Token: token, User: rawUser}, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if err := tmp.Chmod(0o600); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
