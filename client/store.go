package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

var ErrNoCurrentGame = errors.New("no current game stored")

// CurrentGame is the durable record of the match the user is in. It is the
// single source of truth for "what game am I in" across reconnects and
// restarts, which is why it lives outside the connection object.
type CurrentGame struct {
	GameID        string `json:"game_id"`
	ChallengeType string `json:"challenge_type,omitempty"`
	Opponent      string `json:"opponent,omitempty"`
}

// SessionStore persists the user identity and the current-game record.
// Implementations must clear the game record atomically with respect to
// concurrent readers.
type SessionStore interface {
	UserID() (string, error)
	CurrentGame() (CurrentGame, error)
	SetCurrentGame(game CurrentGame) error
	ClearCurrentGame() error
}

// FileStore keeps session state as JSON files under a state directory,
// the closest server-side analogue to browser local storage.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

type fileStoreState struct {
	UserID      string       `json:"user_id"`
	CurrentGame *CurrentGame `json:"current_game,omitempty"`
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, "session.json")
}

func (s *FileStore) load() (fileStoreState, error) {
	var state fileStoreState
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, err
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return fileStoreState{}, err
	}
	return state, nil
}

func (s *FileStore) save(state fileStoreState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	// Write-then-rename so a crash mid-write never leaves a torn record.
	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path())
}

// UserID returns the stable user identity, generating and persisting one
// on first use.
func (s *FileStore) UserID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return "", err
	}
	if state.UserID != "" {
		return state.UserID, nil
	}
	state.UserID = uuid.NewString()
	if err := s.save(state); err != nil {
		return "", err
	}
	return state.UserID, nil
}

func (s *FileStore) CurrentGame() (CurrentGame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return CurrentGame{}, err
	}
	if state.CurrentGame == nil || state.CurrentGame.GameID == "" {
		return CurrentGame{}, ErrNoCurrentGame
	}
	return *state.CurrentGame, nil
}

func (s *FileStore) SetCurrentGame(game CurrentGame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	state.CurrentGame = &game
	return s.save(state)
}

func (s *FileStore) ClearCurrentGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	state.CurrentGame = nil
	return s.save(state)
}

// MemoryStore is an in-memory SessionStore for tests.
type MemoryStore struct {
	mu      sync.Mutex
	userID  string
	game    *CurrentGame
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) UserID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		s.userID = uuid.NewString()
	}
	return s.userID, nil
}

func (s *MemoryStore) CurrentGame() (CurrentGame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.game == nil {
		return CurrentGame{}, ErrNoCurrentGame
	}
	return *s.game, nil
}

func (s *MemoryStore) SetCurrentGame(game CurrentGame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.game = &game
	return nil
}

func (s *MemoryStore) ClearCurrentGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.game = nil
	return nil
}
