// Package session keeps the signed-in account of a client in one place.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bid2build/bid2build/internal/api/dto"
)

// ErrNoSession is returned by Get when nobody is signed in.
var ErrNoSession = errors.New("no active session")

// Session is the authenticated state shared by every client command.
type Session struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	User      dto.UserResponse `json:"user"`
}

// Expired reports whether the token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store is the single read/write/clear accessor for the session. Writes are last-write-wins.
type Store interface {
	Get() (*Session, error)
	Set(s *Session) error
	Clear() error
}

// MemoryStore holds the session in process.
type MemoryStore struct {
	mu      sync.RWMutex
	current *Session
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, ErrNoSession
	}
	cp := *m.current
	return &cp, nil
}

func (m *MemoryStore) Set(s *Session) error {
	if s == nil {
		return m.Clear()
	}
	cp := *s
	m.mu.Lock()
	m.current = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return nil
}

// FileStore persists the session as JSON at path, readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath is session.json under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bid2build", "session.json"), nil
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get() (*Session, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Token == "" {
		return nil, ErrNoSession
	}
	return &s, nil
}

// Set replaces the file atomically through a temp file in the same directory.
func (f *FileStore) Set(s *Session) error {
	if s == nil {
		return f.Clear()
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
