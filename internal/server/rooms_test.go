package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type fakeRelayAdmin struct {
	mu        sync.Mutex
	created   []uint64
	destroyed []uint64
}

func (f *fakeRelayAdmin) CreateRoom(ctx context.Context, relayRoomID uint64, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, relayRoomID)
	return nil
}

func (f *fakeRelayAdmin) DestroyRoom(ctx context.Context, relayRoomID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, relayRoomID)
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *MemoryStore, *fakeRelayAdmin) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	relay := &fakeRelayAdmin{}
	store := NewMemoryStore(time.Minute, nil)
	t.Cleanup(store.Close)

	return NewRouter(NewHandlers(store, relay), "test"), store, relay
}

func doRequest(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Host-Token", token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoomLifecycle(t *testing.T) {
	router, _, relay := newTestRouter(t)

	// Create
	w := doRequest(router, http.MethodPost, "/api/v1/rooms", "", `{"title":"Demo"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", w.Code, w.Body.String())
	}
	var created createRoomResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.RoomID == "" || created.HostToken == "" || created.RelayRoomID == 0 {
		t.Fatalf("incomplete create response: %+v", created)
	}

	relay.mu.Lock()
	if len(relay.created) != 1 || relay.created[0] != created.RelayRoomID {
		t.Errorf("relay rooms created: %v", relay.created)
	}
	relay.mu.Unlock()

	// Public lookup never leaks the token.
	w = doRequest(router, http.MethodGet, "/api/v1/rooms/"+created.RoomID, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	if strings.Contains(w.Body.String(), created.HostToken) {
		t.Error("room lookup leaked the host token")
	}
	var info roomInfoResponse
	json.Unmarshal(w.Body.Bytes(), &info)
	if info.RelayRoomID != created.RelayRoomID || info.Status != "live" {
		t.Errorf("room info = %+v", info)
	}

	// Heartbeat with the right token.
	w = doRequest(router, http.MethodPut, "/api/v1/rooms/"+created.RoomID+"/heartbeat", created.HostToken, "")
	if w.Code != http.StatusOK {
		t.Errorf("heartbeat: status %d", w.Code)
	}

	// Heartbeat with a wrong token is rejected.
	w = doRequest(router, http.MethodPut, "/api/v1/rooms/"+created.RoomID+"/heartbeat", "wrong", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("bad-token heartbeat: status %d", w.Code)
	}

	// Delete with a wrong token is rejected.
	w = doRequest(router, http.MethodDelete, "/api/v1/rooms/"+created.RoomID, "wrong", "")
	if w.Code != http.StatusForbidden {
		t.Errorf("bad-token delete: status %d", w.Code)
	}

	// Delete with the right token tears relay and record down.
	w = doRequest(router, http.MethodDelete, "/api/v1/rooms/"+created.RoomID, created.HostToken, "")
	if w.Code != http.StatusOK {
		t.Errorf("delete: status %d", w.Code)
	}

	relay.mu.Lock()
	if len(relay.destroyed) != 1 || relay.destroyed[0] != created.RelayRoomID {
		t.Errorf("relay rooms destroyed: %v", relay.destroyed)
	}
	relay.mu.Unlock()

	w = doRequest(router, http.MethodGet, "/api/v1/rooms/"+created.RoomID, "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d", w.Code)
	}
}

func TestUnknownRoomIs404(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/rooms/nope"},
		{http.MethodPut, "/api/v1/rooms/nope/heartbeat"},
		{http.MethodDelete, "/api/v1/rooms/nope"},
	} {
		w := doRequest(router, req.method, req.path, "any", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: status %d, want 404", req.method, req.path, w.Code)
		}
	}
}

func TestCreateRoomDefaultsTitle(t *testing.T) {
	router, store, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/rooms", "", `{}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d", w.Code)
	}
	var created createRoomResponse
	json.Unmarshal(w.Body.Bytes(), &created)

	room, err := store.Get(context.Background(), created.RoomID)
	if err != nil {
		t.Fatalf("stored room missing: %v", err)
	}
	if room.Title == "" {
		t.Error("empty title was stored verbatim")
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("health: status %d", w.Code)
	}
}
