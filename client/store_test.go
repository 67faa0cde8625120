package client

import (
	"errors"
	"testing"
)

func TestFileStoreUserIDStable(t *testing.T) {
	dir := t.TempDir()

	first, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	id, err := first.UserID()
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if id == "" {
		t.Fatal("UserID must generate an identity on first use")
	}

	// A new store over the same directory sees the same identity.
	second, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	again, err := second.UserID()
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if again != id {
		t.Fatalf("user id changed across restarts: %q then %q", id, again)
	}
}

func TestFileStoreCurrentGame(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := store.CurrentGame(); !errors.Is(err, ErrNoCurrentGame) {
		t.Fatalf("empty store CurrentGame err = %v, want ErrNoCurrentGame", err)
	}

	game := CurrentGame{GameID: "game-7", ChallengeType: "Power Hour", Opponent: "bob"}
	if err := store.SetCurrentGame(game); err != nil {
		t.Fatalf("SetCurrentGame: %v", err)
	}

	// The record survives a restart.
	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	got, err := reopened.CurrentGame()
	if err != nil {
		t.Fatalf("CurrentGame: %v", err)
	}
	if got != game {
		t.Fatalf("CurrentGame = %+v, want %+v", got, game)
	}

	if err := reopened.ClearCurrentGame(); err != nil {
		t.Fatalf("ClearCurrentGame: %v", err)
	}
	if _, err := reopened.CurrentGame(); !errors.Is(err, ErrNoCurrentGame) {
		t.Fatalf("cleared store CurrentGame err = %v, want ErrNoCurrentGame", err)
	}

	// Clearing the game leaves the identity alone.
	if id, err := reopened.UserID(); err != nil || id == "" {
		t.Fatalf("UserID after clear = %q, %v", id, err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	id, err := store.UserID()
	if err != nil || id == "" {
		t.Fatalf("UserID = %q, %v", id, err)
	}
	again, _ := store.UserID()
	if again != id {
		t.Fatal("memory store must keep a stable user id")
	}

	if _, err := store.CurrentGame(); !errors.Is(err, ErrNoCurrentGame) {
		t.Fatalf("empty CurrentGame err = %v", err)
	}
	game := CurrentGame{GameID: "game-1"}
	if err := store.SetCurrentGame(game); err != nil {
		t.Fatalf("SetCurrentGame: %v", err)
	}
	got, err := store.CurrentGame()
	if err != nil || got.GameID != "game-1" {
		t.Fatalf("CurrentGame = %+v, %v", got, err)
	}
	if err := store.ClearCurrentGame(); err != nil {
		t.Fatalf("ClearCurrentGame: %v", err)
	}
	if _, err := store.CurrentGame(); !errors.Is(err, ErrNoCurrentGame) {
		t.Fatalf("cleared CurrentGame err = %v", err)
	}
}
