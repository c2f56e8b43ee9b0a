package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRoomNotFound = errors.New("room not found")

// Room is one registry record. The host token never leaves the record except
// in the creation response.
type Room struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	HostToken     string    `json:"host_token"`
	RelayRoomID   uint64    `json:"relay_room_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Store persists room records. Get and Touch return ErrRoomNotFound for
// unknown or expired rooms.
type Store interface {
	Put(ctx context.Context, room *Room) error
	Get(ctx context.Context, roomID string) (*Room, error)
	Touch(ctx context.Context, roomID string, at time.Time) error
	Delete(ctx context.Context, roomID string) error
}

// MemoryStore keeps rooms in process memory and sweeps out rooms whose host
// stopped heartbeating. onExpire runs outside the lock for each swept room.
type MemoryStore struct {
	ttl      time.Duration
	onExpire func(room *Room)

	mu    sync.Mutex
	rooms map[string]*Room

	stopOnce sync.Once
	stop     chan struct{}
}

func NewMemoryStore(ttl time.Duration, onExpire func(room *Room)) *MemoryStore {
	s := &MemoryStore{
		ttl:      ttl,
		onExpire: onExpire,
		rooms:    make(map[string]*Room),
		stop:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) Put(ctx context.Context, room *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, roomID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	copied := *room
	return &copied, nil
}

func (s *MemoryStore) Touch(ctx context.Context, roomID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.LastHeartbeat = at
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

// Close stops the expiry sweeper.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce(time.Now())
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) sweepOnce(now time.Time) {
	var expired []*Room

	s.mu.Lock()
	for id, room := range s.rooms {
		if now.Sub(room.LastHeartbeat) > s.ttl {
			delete(s.rooms, id)
			expired = append(expired, room)
		}
	}
	s.mu.Unlock()

	for _, room := range expired {
		slog.Info("room expired", "room", room.ID, "last_heartbeat", room.LastHeartbeat)
		if s.onExpire != nil {
			s.onExpire(room)
		}
	}
}

// RedisStore keeps rooms as JSON under room:<id> with a TTL refreshed on every
// heartbeat, so expiry is handled by Redis itself.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Put(ctx context.Context, room *Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room: %w", err)
	}
	return s.client.Set(ctx, roomKey(room.ID), data, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, roomID string) (*Room, error) {
	data, err := s.client.Get(ctx, roomKey(roomID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	var room Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return &room, nil
}

func (s *RedisStore) Touch(ctx context.Context, roomID string, at time.Time) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	room.LastHeartbeat = at
	return s.Put(ctx, room)
}

func (s *RedisStore) Delete(ctx context.Context, roomID string) error {
	return s.client.Del(ctx, roomKey(roomID)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func roomKey(roomID string) string {
	return "room:" + roomID
}
