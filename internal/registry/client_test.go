package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rooms" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"room_id":"abc","host_token":"secret","relay_room_id":4242}`))
	}))
	defer srv.Close()

	created, err := NewClient(srv.URL).CreateRoom(context.Background(), "My stream")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if created.RoomID != "abc" || created.HostToken != "secret" || created.RelayRoomID != 4242 {
		t.Errorf("created = %+v", created)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Room not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetRoom(context.Background(), "gone")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHeartbeatSendsToken(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Host-Token")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).Heartbeat(context.Background(), "abc", "secret"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if gotToken != "secret" {
		t.Errorf("host token header = %q", gotToken)
	}
}

func TestHeartbeatStatusTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"not found", http.StatusNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewClient(srv.URL).Heartbeat(context.Background(), "abc", "bad")
			if !errors.Is(err, tt.want) {
				t.Errorf("status %d: got %v, want %v", tt.status, err, tt.want)
			}
		})
	}
}

func TestDeleteRoomIdempotent(t *testing.T) {
	// Deleting an already-gone room is success: teardown converges from any
	// starting state.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).DeleteRoom(context.Background(), "gone", "secret"); err != nil {
		t.Errorf("delete of missing room should succeed, got %v", err)
	}
}

func TestDeleteRoomRejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"Invalid host token"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).DeleteRoom(context.Background(), "abc", "wrong")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
