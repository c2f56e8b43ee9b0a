package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreSweepExpiresSilentRooms(t *testing.T) {
	var mu sync.Mutex
	var expired []string

	store := NewMemoryStore(time.Minute, func(room *Room) {
		mu.Lock()
		expired = append(expired, room.ID)
		mu.Unlock()
	})
	defer store.Close()

	now := time.Now()
	ctx := context.Background()

	store.Put(ctx, &Room{ID: "silent", LastHeartbeat: now.Add(-2 * time.Minute)})
	store.Put(ctx, &Room{ID: "alive", LastHeartbeat: now})

	store.sweepOnce(now)

	if _, err := store.Get(ctx, "silent"); !errors.Is(err, ErrRoomNotFound) {
		t.Error("silent room survived the sweep")
	}
	if _, err := store.Get(ctx, "alive"); err != nil {
		t.Errorf("alive room was swept: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 || expired[0] != "silent" {
		t.Errorf("onExpire fired for %v", expired)
	}
}

func TestMemoryStoreTouchKeepsRoomAlive(t *testing.T) {
	store := NewMemoryStore(time.Minute, nil)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	store.Put(ctx, &Room{ID: "room-1", LastHeartbeat: now.Add(-2 * time.Minute)})
	if err := store.Touch(ctx, "room-1", now); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	store.sweepOnce(now)

	if _, err := store.Get(ctx, "room-1"); err != nil {
		t.Errorf("touched room was swept: %v", err)
	}
}

func TestMemoryStoreTouchUnknownRoom(t *testing.T) {
	store := NewMemoryStore(time.Minute, nil)
	defer store.Close()

	if err := store.Touch(context.Background(), "nope", time.Now()); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Touch unknown room: %v", err)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore(time.Minute, nil)
	defer store.Close()

	ctx := context.Background()
	store.Put(ctx, &Room{ID: "room-1", Title: "original"})

	room, _ := store.Get(ctx, "room-1")
	room.Title = "mutated"

	again, _ := store.Get(ctx, "room-1")
	if again.Title != "original" {
		t.Error("Get exposed internal state")
	}
}
