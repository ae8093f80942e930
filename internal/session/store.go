package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/romato/romato/internal/models"
)

// Sentinel errors
var (
	// ErrNoSession is returned when no complete session is persisted.
	ErrNoSession = errors.New("no persisted session")

	// ErrCorruptSession is returned when a persisted record cannot be parsed.
	ErrCorruptSession = errors.New("persisted session is corrupt")
)

const (
	userFile   = "user.json"
	tokensFile = "tokens.json"
)

// Store persists the user record and credential pair. Both are written and
// cleared together.
type Store interface {
	Load() (*models.User, models.Tokens, error)
	Save(user models.User, tokens models.Tokens) error
	Clear() error
}

// FileStore keeps the session as two JSON files in a private directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a session store.
// If baseDir is empty, uses ~/.romato/session/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".romato", "session")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("session store initialized")

	return &FileStore{baseDir: baseDir}, nil
}

// Dir returns the directory holding the session files.
func (s *FileStore) Dir() string {
	return s.baseDir
}

// Load reads the persisted pair. A missing or half-written pair is reported
// as ErrNoSession.
func (s *FileStore) Load() (*models.User, models.Tokens, error) {
	var user models.User
	var tokens models.Tokens

	userFound, err := s.readJSON(userFile, &user)
	if err != nil {
		return nil, models.Tokens{}, err
	}
	tokensFound, err := s.readJSON(tokensFile, &tokens)
	if err != nil {
		return nil, models.Tokens{}, err
	}

	if !userFound || !tokensFound {
		if userFound != tokensFound {
			log.Debug().Bool("user", userFound).Bool("tokens", tokensFound).Msg("ignoring partial session")
		}
		return nil, models.Tokens{}, ErrNoSession
	}

	if tokens.Refresh == "" {
		return nil, models.Tokens{}, ErrNoSession
	}

	return &user, tokens, nil
}

// Save writes both records. If the second write fails the first is removed
// so a partial pair is never left behind.
func (s *FileStore) Save(user models.User, tokens models.Tokens) error {
	if err := s.writeJSON(tokensFile, tokens); err != nil {
		return err
	}
	if err := s.writeJSON(userFile, user); err != nil {
		_ = os.Remove(filepath.Join(s.baseDir, tokensFile))
		return err
	}

	log.Debug().Str("username", user.Username).Msg("session persisted")

	return nil
}

// Clear removes both records. Missing files are not an error.
func (s *FileStore) Clear() error {
	var errs []error
	for _, name := range []string{tokensFile, userFile} {
		if err := os.Remove(filepath.Join(s.baseDir, name)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *FileStore) readJSON(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorruptSession, name, err)
	}

	return true, nil
}

// writeJSON writes the file atomically.
func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	path := filepath.Join(s.baseDir, name)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save %s: %w", name, err)
	}

	return nil
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu     sync.Mutex
	user   *models.User
	tokens models.Tokens

	// SaveErr, when set, is returned by Save without storing anything.
	SaveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*models.User, models.Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.tokens.Refresh == "" {
		return nil, models.Tokens{}, ErrNoSession
	}
	u := *s.user
	return &u, s.tokens, nil
}

func (s *MemoryStore) Save(user models.User, tokens models.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.user = &user
	s.tokens = tokens
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.tokens = models.Tokens{}
	return nil
}
