package tokenstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Store persists host tokens keyed by room ID. A token in the store is what
// marks this machine as the owner of a room: role resolution and the stop
// command both read it.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open returns the store backed by the default per-user location.
func Open() (*Store, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("token store: %w", err)
	}
	return OpenAt(filepath.Join(dir, "screenbeam", "tokens")), nil
}

// OpenAt returns a store backed by the given file path.
func OpenAt(path string) *Store {
	return &Store{path: path}
}

// Save records the host token for a room, replacing any previous token.
func (s *Store) Save(roomID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.load()
	tokens[roomID] = token
	return s.write(tokens)
}

// Lookup returns the stored host token for a room, if any.
func (s *Store) Lookup(roomID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.load()[roomID]
	return token, ok
}

// Forget removes the token for a room. Removing an unknown room is a no-op.
func (s *Store) Forget(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.load()
	if _, ok := tokens[roomID]; !ok {
		return nil
	}
	delete(tokens, roomID)
	return s.write(tokens)
}

func (s *Store) load() map[string]string {
	tokens := make(map[string]string)

	data, err := os.ReadFile(s.path)
	if err != nil {
		return tokens
	}
	if err := msgpack.Unmarshal(data, &tokens); err != nil {
		// A corrupt store is discarded rather than wedging every command.
		return make(map[string]string)
	}
	return tokens
}

func (s *Store) write(tokens map[string]string) error {
	data, err := msgpack.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("token store: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("token store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("token store: %w", err)
	}
	return nil
}
