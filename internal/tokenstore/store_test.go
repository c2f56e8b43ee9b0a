package tokenstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLookupForget(t *testing.T) {
	store := OpenAt(filepath.Join(t.TempDir(), "tokens"))

	if _, ok := store.Lookup("room-1"); ok {
		t.Fatal("lookup on empty store succeeded")
	}

	if err := store.Save("room-1", "token-a"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save("room-2", "token-b"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	token, ok := store.Lookup("room-1")
	if !ok || token != "token-a" {
		t.Errorf("Lookup(room-1) = %q, %v", token, ok)
	}

	if err := store.Forget("room-1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, ok := store.Lookup("room-1"); ok {
		t.Error("token survived Forget")
	}
	if _, ok := store.Lookup("room-2"); !ok {
		t.Error("Forget removed an unrelated token")
	}
}

func TestForgetUnknownRoomIsNoop(t *testing.T) {
	store := OpenAt(filepath.Join(t.TempDir(), "tokens"))
	if err := store.Forget("never-saved"); err != nil {
		t.Errorf("Forget on unknown room: %v", err)
	}
}

func TestSaveReplacesToken(t *testing.T) {
	store := OpenAt(filepath.Join(t.TempDir(), "tokens"))

	store.Save("room-1", "old")
	store.Save("room-1", "new")

	token, _ := store.Lookup("room-1")
	if token != "new" {
		t.Errorf("token = %q, want replacement", token)
	}
}

func TestCorruptStoreIsDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens")
	if err := os.WriteFile(path, []byte("not msgpack at all"), 0o600); err != nil {
		t.Fatal(err)
	}

	store := OpenAt(path)
	if _, ok := store.Lookup("room-1"); ok {
		t.Error("corrupt store produced a token")
	}

	// Writing through a corrupt store starts fresh instead of failing.
	if err := store.Save("room-1", "token-a"); err != nil {
		t.Fatalf("Save over corrupt store: %v", err)
	}
	if token, ok := store.Lookup("room-1"); !ok || token != "token-a" {
		t.Errorf("Lookup after recovery = %q, %v", token, ok)
	}
}
