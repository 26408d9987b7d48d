// Package keystore persists per-user provider API keys to
// user_api_keys.json. Keys are stored as the user entered them; everything
// that leaves the store for display goes through masking.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
)

var (
	// ErrUnknownProvider is returned for providers outside the known set.
	ErrUnknownProvider = errors.New("keystore: unknown provider")

	// ErrNotFound is returned when deleting a key that does not exist.
	ErrNotFound = errors.New("keystore: key not found")
)

var knownProviders = map[string]struct{}{
	"openai":    {},
	"anthropic": {},
	"gemini":    {},
	"voyage":    {},
}

// ValidProvider reports whether name is a provider keys can be stored for.
func ValidProvider(name string) bool {
	_, ok := knownProviders[strings.ToLower(name)]
	return ok
}

const keysVersion = 1

type keysFile struct {
	Version int                          `json:"version"`
	Users   map[string]map[string]string `json:"users"`
}

// Store holds user → provider → API key, persisted as JSON.
type Store struct {
	mu    sync.RWMutex
	users map[string]map[string]string
	file  string
	log   *logging.Logger
}

// New loads the key store from file. A missing file starts empty; a corrupt
// one is moved aside and the store starts empty.
func New(file string, log *logging.Logger) *Store {
	s := &Store{
		users: make(map[string]map[string]string),
		file:  file,
		log:   log.Sub("keystore"),
	}
	s.load()
	return s
}

// Set stores a key for a user and provider.
func (s *Store) Set(user, provider, key string) error {
	user = strings.TrimSpace(user)
	provider = strings.ToLower(strings.TrimSpace(provider))
	key = strings.TrimSpace(key)

	if user == "" {
		return fmt.Errorf("keystore: user required")
	}
	if !ValidProvider(provider) {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if key == "" {
		return fmt.Errorf("keystore: key required")
	}

	s.mu.Lock()
	if s.users[user] == nil {
		s.users[user] = make(map[string]string)
	}
	s.users[user][provider] = key
	err := s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.log.Info().
		Str("user", user).
		Str("provider", provider).
		Str("key", logging.MaskSecret(key)).
		Msg("api key stored")
	return nil
}

// Get returns a user's key for a provider.
func (s *Store) Get(user, provider string) (string, bool) {
	provider = strings.ToLower(strings.TrimSpace(provider))

	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.users[user][provider]
	return key, ok
}

// Delete removes a user's key for a provider. Users with no remaining keys
// are removed entirely.
func (s *Store) Delete(user, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))

	s.mu.Lock()
	keys, ok := s.users[user]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if _, ok := keys[provider]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(keys, provider)
	if len(keys) == 0 {
		delete(s.users, user)
	}
	err := s.saveLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.log.Info().Str("user", user).Str("provider", provider).Msg("api key deleted")
	return nil
}

// Providers returns the providers a user has keys for, sorted.
func (s *Store) Providers(user string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.users[user]))
	for provider := range s.users[user] {
		out = append(out, provider)
	}
	sort.Strings(out)
	return out
}

// MaskedKeys returns a user's keys with all but the tail masked, for
// listings and status output.
func (s *Store) MaskedKeys(user string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.users[user]))
	for provider, key := range s.users[user] {
		out[provider] = logging.MaskSecret(key)
	}
	return out
}

// Users returns all user IDs with at least one key, sorted.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.users))
	for user := range s.users {
		out = append(out, user)
	}
	sort.Strings(out)
	return out
}

// KeyFor implements llm.KeyResolver: it returns the user's stored key for a
// provider, or "" so the provider falls back to its configured key.
func (s *Store) KeyFor(userID, provider string) string {
	key, _ := s.Get(userID, provider)
	return key
}

// Resolver returns the store as a KeyResolver.
func (s *Store) Resolver() llm.KeyResolver { return s }

func (s *Store) load() {
	data, err := os.ReadFile(s.file)
	if err != nil {
		return
	}

	var parsed keysFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		corrupt := s.file + ".corrupt"
		if renameErr := os.Rename(s.file, corrupt); renameErr == nil {
			s.log.Warn().Str("movedTo", corrupt).Msg("corrupt key file moved aside")
		} else {
			s.log.Warn().Err(err).Msg("corrupt key file ignored")
		}
		return
	}

	for user, keys := range parsed.Users {
		if len(keys) == 0 {
			continue
		}
		s.users[user] = keys
	}
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(keysFile{Version: keysVersion, Users: s.users}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding keys: %w", err)
	}

	tmp := s.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing keys: %w", err)
	}
	if err := os.Rename(tmp, s.file); err != nil {
		return fmt.Errorf("replacing keys: %w", err)
	}
	return nil
}
