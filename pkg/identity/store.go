// Package identity keeps the local display name. The name survives restarts
// via a small JSON state file; callers that pass an explicit name bypass the
// file entirely.
package identity

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type state struct {
	Username string `json:"username"`
}

// Store reads and writes the persisted display name.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath resolves the per-user state file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve user config dir")
	}
	return filepath.Join(dir, "chat-db", "identity.json"), nil
}

// GetOrCreate returns the stored display name, synthesizing and persisting a
// guest name when none exists. The returned name is always usable; a non-nil
// error reports that persisting it failed and the name is in-memory only.
func (s *Store) GetOrCreate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name, ok := s.read(); ok {
		return name, nil
	}
	name := fmt.Sprintf("guest%d", rand.Intn(1000))
	if err := s.write(name); err != nil {
		return name, err
	}
	return name, nil
}

// Rename overwrites the stored display name. Validation of the new name is
// the caller's job.
func (s *Store) Rename(newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(newName)
}

func (s *Store) read() (string, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("failed to read identity file, regenerating")
		}
		return "", false
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("corrupt identity file, regenerating")
		return "", false
	}
	name := strings.TrimSpace(st.Username)
	if name == "" {
		return "", false
	}
	return name, true
}

func (s *Store) write(name string) error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create identity dir")
		}
	}
	data, err := json.Marshal(state{Username: name})
	if err != nil {
		return errors.Wrap(err, "failed to marshal identity")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write identity file")
	}
	return nil
}
