package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"adminconsole.org/internal/authz"
)

// sessionRecordVersion guards the on-disk layout. Bump it and old records
// are treated as absent.
const sessionRecordVersion = 1

// SessionRecord is the persisted session blob of the token strategy. Opaque
// to every component except the Manager.
type SessionRecord struct {
	Version      int        `json:"version"`
	User         authz.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresAt    string     `json:"expiresAt"`
}

// complete reports whether the record can be adopted as a session. A record
// missing any credential or the user identity is discarded wholesale.
func (r *SessionRecord) complete() bool {
	return r != nil &&
		r.Version == sessionRecordVersion &&
		r.AccessToken != "" &&
		r.RefreshToken != "" &&
		r.User.ID != ""
}

// SessionStore persists the session record across process restarts.
// Implementations are only wired under the dev/mock configuration; in
// production no store exists and credentials never touch durable storage.
type SessionStore interface {
	Load() (*SessionRecord, error)
	Save(rec *SessionRecord) error
	Clear() error
}

// FileStore keeps the session record in a single JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (*SessionRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt record is the same as no record.
		return nil, nil
	}
	return &rec, nil
}

func (s *FileStore) Save(rec *SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
