package janus

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// VideoRoomPlugin is the relay-side plugin every handle attaches to.
const VideoRoomPlugin = "janus.plugin.videoroom"

var ErrRelayError = errors.New("relay reported error")

// request is the envelope for every client-originated message.
type request struct {
	Janus       string                     `json:"janus"`
	Transaction string                     `json:"transaction"`
	SessionID   uint64                     `json:"session_id,omitempty"`
	HandleID    uint64                     `json:"handle_id,omitempty"`
	Plugin      string                     `json:"plugin,omitempty"`
	Body        any                        `json:"body,omitempty"`
	JSEP        *webrtc.SessionDescription `json:"jsep,omitempty"`
	Candidate   any                        `json:"candidate,omitempty"`
}

// reply is the envelope for every relay-originated message, both transaction
// responses and asynchronous events.
type reply struct {
	Janus       string                     `json:"janus"`
	Transaction string                     `json:"transaction,omitempty"`
	SessionID   uint64                     `json:"session_id,omitempty"`
	Sender      uint64                     `json:"sender,omitempty"`
	Data        *replyData                 `json:"data,omitempty"`
	PluginData  *pluginData                `json:"plugindata,omitempty"`
	JSEP        *webrtc.SessionDescription `json:"jsep,omitempty"`
	Error       *apiError                  `json:"error,omitempty"`
}

type replyData struct {
	ID uint64 `json:"id"`
}

type pluginData struct {
	Plugin string          `json:"plugin"`
	Data   json.RawMessage `json:"data"`
}

type apiError struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.Code, e.Reason)
}

func (e *apiError) Unwrap() error {
	return ErrRelayError
}

// Event is one relay-originated message scoped to a single handle. Events on
// one handle are delivered in relay order; events across handles interleave.
type Event struct {
	// Kind is the envelope type: "event" for plugin events, or a core
	// notification such as "webrtcup", "media", "hangup", "detached".
	Kind string

	// Room is the decoded plugin payload; nil for core notifications.
	Room VideoRoomEvent

	// JSEP carries a remote offer or answer needing local handling.
	JSEP *webrtc.SessionDescription
}

// Publisher describes one active feed announced by the relay.
type Publisher struct {
	ID      uint64 `json:"id"`
	Display string `json:"display"`
}

// RoomError is a plugin-level error carried inside an event. A non-zero code
// is surfaced to the user but does not terminate the session by itself.
type RoomError struct {
	Code   int    `json:"error_code"`
	Reason string `json:"error"`
}

func (e *RoomError) Error() string {
	return fmt.Sprintf("videoroom error %d: %s", e.Code, e.Reason)
}

// VideoRoomEvent is the plugin payload decoded from the "videoroom" tag.
type VideoRoomEvent interface {
	videoRoomEvent()
}

// JoinedEvent confirms our join request. For a viewer the publisher list may
// already name feeds to subscribe to.
type JoinedEvent struct {
	ID         uint64
	Publishers []Publisher
}

// AttachedEvent confirms a subscriber handle is bound to a feed; the remote
// offer rides on the same message's JSEP.
type AttachedEvent struct {
	FeedID uint64
}

// NotificationEvent is the catch-all "event" payload: publisher
// announcements, leaving notices, configure/start confirmations and soft
// errors.
type NotificationEvent struct {
	Publishers []Publisher
	Leaving    bool
	Configured string
	Started    string
	Err        *RoomError
}

// DestroyedEvent signals the relay tore the room down.
type DestroyedEvent struct{}

// UnknownEvent carries an unrecognized tag; it is logged and ignored.
type UnknownEvent struct {
	Tag string
}

func (*JoinedEvent) videoRoomEvent()       {}
func (*AttachedEvent) videoRoomEvent()     {}
func (*NotificationEvent) videoRoomEvent() {}
func (*DestroyedEvent) videoRoomEvent()    {}
func (*UnknownEvent) videoRoomEvent()      {}

type rawRoomEvent struct {
	VideoRoom  string          `json:"videoroom"`
	ID         uint64          `json:"id"`
	Publishers []Publisher     `json:"publishers"`
	Leaving    json.RawMessage `json:"leaving"`
	Configured string          `json:"configured"`
	Started    string          `json:"started"`
	ErrorCode  int             `json:"error_code"`
	Error      string          `json:"error"`
}

// ParseVideoRoomEvent decodes a plugin payload into its tagged variant.
func ParseVideoRoomEvent(raw json.RawMessage) (VideoRoomEvent, error) {
	var ev rawRoomEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode videoroom event: %w", err)
	}

	switch ev.VideoRoom {
	case "joined":
		return &JoinedEvent{ID: ev.ID, Publishers: ev.Publishers}, nil
	case "attached":
		return &AttachedEvent{FeedID: ev.ID}, nil
	case "event":
		n := &NotificationEvent{
			Publishers: ev.Publishers,
			Leaving:    len(ev.Leaving) > 0,
			Configured: ev.Configured,
			Started:    ev.Started,
		}
		if ev.ErrorCode != 0 {
			n.Err = &RoomError{Code: ev.ErrorCode, Reason: ev.Error}
		}
		return n, nil
	case "destroyed":
		return &DestroyedEvent{}, nil
	default:
		return &UnknownEvent{Tag: ev.VideoRoom}, nil
	}
}

// Control message bodies. Host and viewer both join as publisher-type
// participants; only subscriber handles join with ptype "subscriber".

type JoinPublisher struct {
	Request string `json:"request"`
	Room    uint64 `json:"room"`
	PType   string `json:"ptype"`
	Display string `json:"display,omitempty"`
}

type JoinSubscriber struct {
	Request string `json:"request"`
	Room    uint64 `json:"room"`
	PType   string `json:"ptype"`
	Feed    uint64 `json:"feed"`
}

type Configure struct {
	Request string `json:"request"`
	Audio   bool   `json:"audio"`
	Video   bool   `json:"video"`
}

type Start struct {
	Request string `json:"request"`
	Room    uint64 `json:"room"`
}

func NewJoinPublisher(room uint64, display string) *JoinPublisher {
	return &JoinPublisher{Request: "join", Room: room, PType: "publisher", Display: display}
}

func NewJoinSubscriber(room, feed uint64) *JoinSubscriber {
	return &JoinSubscriber{Request: "join", Room: room, PType: "subscriber", Feed: feed}
}

func NewConfigure(video bool) *Configure {
	return &Configure{Request: "configure", Audio: false, Video: video}
}

func NewStart(room uint64) *Start {
	return &Start{Request: "start", Room: room}
}
