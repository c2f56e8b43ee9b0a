package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const hostTokenHeader = "X-Host-Token"

var (
	ErrNotFound     = errors.New("room not found")
	ErrUnauthorized = errors.New("host token rejected")
)

// RoomCreated is the registry response for a freshly created room. The host
// token is the sole credential proving ownership of the room.
type RoomCreated struct {
	RoomID      string `json:"room_id"`
	HostToken   string `json:"host_token"`
	RelayRoomID uint64 `json:"relay_room_id"`
}

// RoomInfo is the public lookup result for an existing room.
type RoomInfo struct {
	RoomID      string `json:"room_id"`
	Status      string `json:"status"`
	RelayRoomID uint64 `json:"relay_room_id"`
}

// Client is a thin wrapper over the room registry REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a registry client for the given base URL
// (e.g. https://api.example.com/api/v1).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateRoom registers a new room and returns its identifiers along with the
// host token.
func (c *Client) CreateRoom(ctx context.Context, title string) (*RoomCreated, error) {
	body, _ := json.Marshal(map[string]string{"title": title})

	resp, err := c.do(ctx, http.MethodPost, "/rooms", "", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("create room: %s", readError(resp))
	}

	var created RoomCreated
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("create room: decode response: %w", err)
	}
	return &created, nil
}

// GetRoom resolves a public room ID to its relay room identifier. Returns
// ErrNotFound when the room no longer exists.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*RoomInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/rooms/"+roomID, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("get room %s: %w", roomID, ErrNotFound)
	default:
		return nil, fmt.Errorf("get room %s: %s", roomID, readError(resp))
	}

	var info RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("get room %s: decode response: %w", roomID, err)
	}
	return &info, nil
}

// Heartbeat refreshes the room's liveness timestamp. Returns ErrUnauthorized
// when the token does not match the room's current host token.
func (c *Client) Heartbeat(ctx context.Context, roomID, hostToken string) error {
	resp, err := c.do(ctx, http.MethodPut, "/rooms/"+roomID+"/heartbeat", hostToken, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("heartbeat %s: %w", roomID, ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("heartbeat %s: %w", roomID, ErrNotFound)
	default:
		return fmt.Errorf("heartbeat %s: %s", roomID, readError(resp))
	}
}

// DeleteRoom tears the room down. Deleting a room that is already gone is
// treated as success.
func (c *Client) DeleteRoom(ctx context.Context, roomID, hostToken string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/rooms/"+roomID, hostToken, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	case http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("delete room %s: %w", roomID, ErrUnauthorized)
	default:
		return fmt.Errorf("delete room %s: %s", roomID, readError(resp))
	}
}

func (c *Client) do(ctx context.Context, method, path, hostToken string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("registry request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if hostToken != "" {
		req.Header.Set(hostTokenHeader, hostToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request: %w", err)
	}
	return resp, nil
}

func readError(resp *http.Response) string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return resp.Status
}
