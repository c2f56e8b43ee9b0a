package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const videoRoomPlugin = "janus.plugin.videoroom"

// RelayAdmin provisions rooms on the media relay.
type RelayAdmin interface {
	CreateRoom(ctx context.Context, relayRoomID uint64, description string) error
	DestroyRoom(ctx context.Context, relayRoomID uint64) error
}

// AdminClient talks to the relay's HTTP API. Each call opens an ephemeral
// session, attaches the videoroom plugin, performs one request and tears the
// session down again.
type AdminClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAdminClient(baseURL string) *AdminClient {
	return &AdminClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateRoom creates a relay room sized for one publisher.
func (c *AdminClient) CreateRoom(ctx context.Context, relayRoomID uint64, description string) error {
	_, err := c.pluginRequest(ctx, map[string]any{
		"request":     "create",
		"room":        relayRoomID,
		"description": description,
		"publishers":  1,
		"bitrate":     2048000,
		"permanent":   false,
	})
	return err
}

// DestroyRoom removes a relay room. Destroying an unknown room is treated as
// success so registry and relay teardown stay idempotent together.
func (c *AdminClient) DestroyRoom(ctx context.Context, relayRoomID uint64) error {
	data, err := c.pluginRequest(ctx, map[string]any{
		"request": "destroy",
		"room":    relayRoomID,
	})
	if err != nil {
		return err
	}
	if data.ErrorCode == noSuchRoomCode {
		return nil
	}
	if data.ErrorCode != 0 {
		return fmt.Errorf("destroy relay room %d: %s (%d)", relayRoomID, data.Error, data.ErrorCode)
	}
	return nil
}

// noSuchRoomCode is the videoroom plugin's error for operations on a missing
// room.
const noSuchRoomCode = 426

type pluginData struct {
	VideoRoom string `json:"videoroom"`
	Room      uint64 `json:"room"`
	ErrorCode int    `json:"error_code"`
	Error     string `json:"error"`
}

type adminReply struct {
	Janus string `json:"janus"`
	Data  struct {
		ID uint64 `json:"id"`
	} `json:"data"`
	PluginData struct {
		Plugin string     `json:"plugin"`
		Data   pluginData `json:"data"`
	} `json:"plugindata"`
	Error *struct {
		Code   int    `json:"code"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// pluginRequest runs one videoroom request over a throwaway session.
func (c *AdminClient) pluginRequest(ctx context.Context, body map[string]any) (*pluginData, error) {
	session, err := c.post(ctx, c.baseURL, map[string]any{
		"janus":       "create",
		"transaction": uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("create relay session: %w", err)
	}
	sessionURL := fmt.Sprintf("%s/%d", c.baseURL, session.Data.ID)

	defer func() {
		// Session teardown is best-effort; the relay reaps idle sessions.
		c.post(context.WithoutCancel(ctx), sessionURL, map[string]any{
			"janus":       "destroy",
			"transaction": uuid.NewString(),
		})
	}()

	handle, err := c.post(ctx, sessionURL, map[string]any{
		"janus":       "attach",
		"plugin":      videoRoomPlugin,
		"transaction": uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("attach videoroom plugin: %w", err)
	}

	reply, err := c.post(ctx, fmt.Sprintf("%s/%d", sessionURL, handle.Data.ID), map[string]any{
		"janus":       "message",
		"body":        body,
		"transaction": uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	data := reply.PluginData.Data
	if body["request"] == "create" && data.ErrorCode != 0 {
		return nil, fmt.Errorf("relay refused: %s (%d)", data.Error, data.ErrorCode)
	}
	return &data, nil
}

func (c *AdminClient) post(ctx context.Context, url string, payload map[string]any) (*adminReply, error) {
	encoded, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reply adminReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode relay reply: %w", err)
	}
	if reply.Janus == "error" && reply.Error != nil {
		return nil, fmt.Errorf("relay error %d: %s", reply.Error.Code, reply.Error.Reason)
	}
	return &reply, nil
}
