package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

// UserKey is the storage key holding the current session record.
const UserKey = "user"

// FileStore is the client-local session storage: a JSON object file whose "user" key holds
// the authenticated session along with the bearer token issued at login.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// LocalRecord is what the client keeps under UserKey.
type LocalRecord struct {
	domain.Session
	Token string `json:"token,omitempty"`
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the stored record, or nil when the user is not authenticated.
func (f *FileStore) Load() (*LocalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return nil, err
	}
	raw, ok := entries[UserKey]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var rec LocalRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", UserKey, err)
	}
	if rec.ID == "" || !rec.Role.Valid() {
		return nil, nil
	}
	return &rec, nil
}

// Store writes rec under UserKey, keeping any other keys intact.
func (f *FileStore) Store(rec LocalRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	entries[UserKey] = raw
	return f.write(entries)
}

// Clear removes the session record.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.read()
	if err != nil {
		return err
	}
	delete(entries, UserKey)
	return f.write(entries)
}

// Current implements the navigator's session provider. Read errors count as logged out.
func (f *FileStore) Current() (*domain.Session, bool) {
	rec, err := f.Load()
	if err != nil || rec == nil {
		return nil, false
	}
	s := rec.Session
	return &s, true
}

func (f *FileStore) read() (map[string]json.RawMessage, error) {
	entries := map[string]json.RawMessage{}
	content, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, err
	}
	if len(content) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return entries, nil
}

func (f *FileStore) write(entries map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	content, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
