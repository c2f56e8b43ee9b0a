package janus

import (
	"encoding/json"
	"testing"
)

func TestParseVideoRoomEvent(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, ev VideoRoomEvent)
	}{
		{
			name: "joined with publishers",
			raw:  `{"videoroom":"joined","id":123,"publishers":[{"id":7,"display":"Host"}]}`,
			check: func(t *testing.T, ev VideoRoomEvent) {
				joined, ok := ev.(*JoinedEvent)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if joined.ID != 123 {
					t.Errorf("id = %d", joined.ID)
				}
				if len(joined.Publishers) != 1 || joined.Publishers[0].ID != 7 {
					t.Errorf("publishers = %+v", joined.Publishers)
				}
			},
		},
		{
			name: "attached to feed",
			raw:  `{"videoroom":"attached","id":7,"room":42}`,
			check: func(t *testing.T, ev VideoRoomEvent) {
				attached, ok := ev.(*AttachedEvent)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if attached.FeedID != 7 {
					t.Errorf("feed = %d", attached.FeedID)
				}
			},
		},
		{
			name: "event with new publisher",
			raw:  `{"videoroom":"event","room":42,"publishers":[{"id":9,"display":"Host"}]}`,
			check: func(t *testing.T, ev VideoRoomEvent) {
				n, ok := ev.(*NotificationEvent)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if len(n.Publishers) != 1 || n.Publishers[0].ID != 9 {
					t.Errorf("publishers = %+v", n.Publishers)
				}
				if n.Err != nil {
					t.Errorf("unexpected error: %v", n.Err)
				}
			},
		},
		{
			name: "event with leaving participant",
			raw:  `{"videoroom":"event","room":42,"leaving":7}`,
			check: func(t *testing.T, ev VideoRoomEvent) {
				n := ev.(*NotificationEvent)
				if !n.Leaving {
					t.Error("leaving not detected")
				}
			},
		},
		{
			name: "event with plugin error",
			raw:  `{"videoroom":"event","error_code":426,"error":"No such room"}`,
			check: func(t *testing.T, ev VideoRoomEvent) {
				n := ev.(*NotificationEvent)
				if n.Err == nil {
					t.Fatal("error not surfaced")
				}
				if n.Err.Code != 426 || n.Err.Reason != "No such room" {
					t.Errorf("err = %+v", n.Err)
				}
			},
		},
		{
			name: "event with configured ok",
			raw:  `{"videoroom":"event","room":42,"configured":"ok"}`,
			check: func(t *testing.T, ev VideoRoomEvent) {
				n := ev.(*NotificationEvent)
				if n.Configured != "ok" {
					t.Errorf("configured = %q", n.Configured)
				}
			},
		},
		{
			name: "destroyed",
			raw:  `{"videoroom":"destroyed","room":42}`,
			check: func(t *testing.T, ev VideoRoomEvent) {
				if _, ok := ev.(*DestroyedEvent); !ok {
					t.Fatalf("got %T", ev)
				}
			},
		},
		{
			name: "unknown tag",
			raw:  `{"videoroom":"talking","id":7}`,
			check: func(t *testing.T, ev VideoRoomEvent) {
				unknown, ok := ev.(*UnknownEvent)
				if !ok {
					t.Fatalf("got %T", ev)
				}
				if unknown.Tag != "talking" {
					t.Errorf("tag = %q", unknown.Tag)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseVideoRoomEvent(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			tt.check(t, ev)
		})
	}
}

func TestParseVideoRoomEventRejectsGarbage(t *testing.T) {
	if _, err := ParseVideoRoomEvent(json.RawMessage(`not json`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestControlBodies(t *testing.T) {
	join := NewJoinPublisher(42, "Host")
	if join.Request != "join" || join.PType != "publisher" || join.Room != 42 {
		t.Errorf("join publisher = %+v", join)
	}

	sub := NewJoinSubscriber(42, 7)
	if sub.Request != "join" || sub.PType != "subscriber" || sub.Feed != 7 {
		t.Errorf("join subscriber = %+v", sub)
	}

	// Audio must stay declined on the wire regardless of the video flag.
	cfgBody, _ := json.Marshal(NewConfigure(true))
	var decoded map[string]any
	json.Unmarshal(cfgBody, &decoded)
	if decoded["audio"] != false {
		t.Errorf("configure carries audio=%v, want false", decoded["audio"])
	}
	if decoded["video"] != true {
		t.Errorf("configure carries video=%v, want true", decoded["video"])
	}
}
