package server

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const hostTokenHeader = "X-Host-Token"

// Handlers implements the room registry HTTP API.
type Handlers struct {
	store Store
	relay RelayAdmin
}

func NewHandlers(store Store, relay RelayAdmin) *Handlers {
	return &Handlers{store: store, relay: relay}
}

// NewRouter builds the gin engine with all registry routes mounted.
func NewRouter(h *Handlers, environment string) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms/:roomId", h.GetRoom)
		api.PUT("/rooms/:roomId/heartbeat", h.Heartbeat)
		api.DELETE("/rooms/:roomId", h.DeleteRoom)
	}

	return router
}

type createRoomRequest struct {
	Title string `json:"title"`
}

type createRoomResponse struct {
	RoomID      string `json:"room_id"`
	HostToken   string `json:"host_token"`
	RelayRoomID uint64 `json:"relay_room_id"`
	Title       string `json:"title"`
}

type roomInfoResponse struct {
	RoomID      string `json:"room_id"`
	Status      string `json:"status"`
	RelayRoomID uint64 `json:"relay_room_id"`
	Title       string `json:"title"`
}

// CreateRoom provisions a relay room and records it. The host token in the
// response is shown exactly once; the registry never returns it again.
func (h *Handlers) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title == "" {
		req.Title = "Untitled broadcast"
	}

	room := &Room{
		ID:            uuid.NewString(),
		Title:         req.Title,
		HostToken:     uuid.NewString(),
		RelayRoomID:   randomRelayRoomID(),
		CreatedAt:     time.Now(),
		LastHeartbeat: time.Now(),
	}

	if err := h.relay.CreateRoom(c.Request.Context(), room.RelayRoomID, room.Title); err != nil {
		slog.Error("relay room creation failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Media relay unavailable"})
		return
	}

	if err := h.store.Put(c.Request.Context(), room); err != nil {
		slog.Error("room store failed", "room", room.ID, "error", err)
		h.relay.DestroyRoom(c.Request.Context(), room.RelayRoomID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	slog.Info("room created", "room", room.ID, "relay_room", room.RelayRoomID)

	c.JSON(http.StatusCreated, createRoomResponse{
		RoomID:      room.ID,
		HostToken:   room.HostToken,
		RelayRoomID: room.RelayRoomID,
		Title:       room.Title,
	})
}

// GetRoom is the public lookup used by viewers; it never exposes the token.
func (h *Handlers) GetRoom(c *gin.Context) {
	room, err := h.store.Get(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		roomError(c, err)
		return
	}

	c.JSON(http.StatusOK, roomInfoResponse{
		RoomID:      room.ID,
		Status:      "live",
		RelayRoomID: room.RelayRoomID,
		Title:       room.Title,
	})
}

// Heartbeat refreshes the room's liveness timestamp. Only the token holder
// can keep a room alive.
func (h *Handlers) Heartbeat(c *gin.Context) {
	room, err := h.store.Get(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		roomError(c, err)
		return
	}

	if c.GetHeader(hostTokenHeader) != room.HostToken {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid host token"})
		return
	}

	if err := h.store.Touch(c.Request.Context(), room.ID, time.Now()); err != nil {
		roomError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeleteRoom tears the room down on relay and registry.
func (h *Handlers) DeleteRoom(c *gin.Context) {
	room, err := h.store.Get(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		roomError(c, err)
		return
	}

	if c.GetHeader(hostTokenHeader) != room.HostToken {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid host token"})
		return
	}

	// Relay teardown failure does not keep the record around; the relay
	// reaps empty rooms on its own.
	if err := h.relay.DestroyRoom(c.Request.Context(), room.RelayRoomID); err != nil {
		slog.Warn("relay room destroy failed", "room", room.ID, "relay_room", room.RelayRoomID, "error", err)
	}

	if err := h.store.Delete(c.Request.Context(), room.ID); err != nil {
		slog.Error("room delete failed", "room", room.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete room"})
		return
	}

	slog.Info("room deleted", "room", room.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Room deleted"})
}

func roomError(c *gin.Context, err error) {
	if errors.Is(err, ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	slog.Error("room store error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Registry storage unavailable"})
}

// randomRelayRoomID picks a numeric relay room identifier. Collisions surface
// as a relay "room already exists" error on creation.
func randomRelayRoomID() uint64 {
	n, err := rand.Int(rand.Reader, big.NewInt(999_000_000))
	if err != nil {
		return uint64(time.Now().UnixNano() % 999_000_000)
	}
	return uint64(n.Int64()) + 1000
}

// ExpireRelayRoom is the memory store's expiry hook: a room whose host went
// silent is also removed from the relay.
func ExpireRelayRoom(relay RelayAdmin) func(room *Room) {
	return func(room *Room) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := relay.DestroyRoom(ctx, room.RelayRoomID); err != nil {
			slog.Warn("relay cleanup for expired room failed", "room", room.ID, "error", err)
		}
	}
}
