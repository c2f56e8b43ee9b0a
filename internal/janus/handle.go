package janus

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Handle is one logical participant slot in the relay room: a signaling
// channel multiplexed over the session. A publisher handle carries the local
// join (and, for a host, the outbound media plane); each subscriber handle
// receives exactly one remote feed.
type Handle struct {
	ID     uint64
	client *Client
	events chan *Event
}

// Events returns the handle's event stream. The channel preserves relay
// ordering for this handle and closes when the session ends.
func (h *Handle) Events() <-chan *Event {
	return h.events
}

// Message sends a plugin control message, optionally carrying a local SDP.
// It returns once the relay acknowledges the message; the plugin's answer, if
// any, arrives later on Events.
func (h *Handle) Message(ctx context.Context, body any, jsep *webrtc.SessionDescription) error {
	resp, err := h.client.roundTrip(ctx, &request{
		Janus:     "message",
		SessionID: h.client.sessionID,
		HandleID:  h.ID,
		Body:      body,
		JSEP:      jsep,
	})
	if err != nil {
		return fmt.Errorf("handle %d: send message: %w", h.ID, err)
	}

	// Synchronous plugin replies ride on the success envelope; a plugin error
	// there means the request itself was rejected.
	if resp.PluginData != nil {
		ev, err := ParseVideoRoomEvent(resp.PluginData.Data)
		if err != nil {
			return fmt.Errorf("handle %d: %w", h.ID, err)
		}
		if n, ok := ev.(*NotificationEvent); ok && n.Err != nil {
			return fmt.Errorf("handle %d: %w: %s", h.ID, ErrRelayError, n.Err.Reason)
		}
	}
	return nil
}

// Trickle relays one local ICE candidate; a nil candidate signals the end of
// gathering.
func (h *Handle) Trickle(ctx context.Context, candidate *webrtc.ICECandidateInit) error {
	var payload any
	if candidate != nil {
		payload = candidate
	} else {
		payload = map[string]bool{"completed": true}
	}

	_, err := h.client.roundTrip(ctx, &request{
		Janus:     "trickle",
		SessionID: h.client.sessionID,
		HandleID:  h.ID,
		Candidate: payload,
	})
	if err != nil {
		return fmt.Errorf("handle %d: trickle: %w", h.ID, err)
	}
	return nil
}

// Detach releases the handle on the relay side.
func (h *Handle) Detach(ctx context.Context) error {
	_, err := h.client.roundTrip(ctx, &request{
		Janus:     "detach",
		SessionID: h.client.sessionID,
		HandleID:  h.ID,
	})

	h.client.mu.Lock()
	delete(h.client.handles, h.ID)
	h.client.mu.Unlock()

	if err != nil {
		return fmt.Errorf("handle %d: detach: %w", h.ID, err)
	}
	return nil
}
