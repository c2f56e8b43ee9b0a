package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/screenbeam/screenbeam/internal/janus"
	"github.com/screenbeam/screenbeam/internal/registry"
)

type sentMessage struct {
	body any
	jsep *webrtc.SessionDescription
}

type fakeHandle struct {
	mu        sync.Mutex
	messages  []sentMessage
	detached  bool
	events    chan *janus.Event
	closeOnce sync.Once
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{events: make(chan *janus.Event, 16)}
}

func (h *fakeHandle) Message(ctx context.Context, body any, jsep *webrtc.SessionDescription) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, sentMessage{body: body, jsep: jsep})
	return nil
}

func (h *fakeHandle) Trickle(ctx context.Context, candidate *webrtc.ICECandidateInit) error {
	return nil
}

func (h *fakeHandle) Events() <-chan *janus.Event {
	return h.events
}

func (h *fakeHandle) Detach(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detached = true
	return nil
}

func (h *fakeHandle) isDetached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detached
}

func (h *fakeHandle) close() {
	h.closeOnce.Do(func() { close(h.events) })
}

func (h *fakeHandle) push(ev *janus.Event) {
	h.events <- ev
}

func (h *fakeHandle) lastMessage() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.messages) == 0 {
		return nil
	}
	return h.messages[len(h.messages)-1].body
}

type fakeRelay struct {
	mu        sync.Mutex
	handles   []*fakeHandle
	destroyed int
}

func (r *fakeRelay) Attach(ctx context.Context) (RelayHandle, error) {
	h := newFakeHandle()
	r.mu.Lock()
	r.handles = append(r.handles, h)
	r.mu.Unlock()
	return h, nil
}

func (r *fakeRelay) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyed++
	for _, h := range r.handles {
		h.close()
	}
}

func (r *fakeRelay) handleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *fakeRelay) handle(i int) *fakeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[i]
}

func (r *fakeRelay) destroyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

type fakeSink struct {
	mu     sync.Mutex
	closes int
}

func (s *fakeSink) AddTrack(track *webrtc.TrackRemote) {}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSink) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeFetcher struct {
	info *registry.RoomInfo
	err  error
}

func (f *fakeFetcher) GetRoom(ctx context.Context, roomID string) (*registry.RoomInfo, error) {
	return f.info, f.err
}

// recorder captures the status and notice callbacks for assertions.
type recorder struct {
	mu       sync.Mutex
	statuses []Status
	notices  []Notice
}

func (r *recorder) onStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) onNotice(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) sawStatus(want Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.statuses {
		if s == want {
			return true
		}
	}
	return false
}

func (r *recorder) sawNotice(msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notices {
		if n.Message == msg {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newViewerOrchestrator(relay *fakeRelay, rec *recorder) *Orchestrator {
	return New(Config{
		RoomID:      "room-1",
		RelayRoomID: 42,
		Role:        RoleViewer,
		RelayURL:    "wss://unused",
		Dial: func(ctx context.Context, serverURL string) (RelaySession, error) {
			return relay, nil
		},
		Sink:       &fakeSink{},
		OnStatus:   rec.onStatus,
		OnNotice:   rec.onNotice,
		GraceDelay: 10 * time.Millisecond,
	})
}

func TestViewerSubscribesOncePerFeed(t *testing.T) {
	relay := &fakeRelay{}
	rec := &recorder{}
	o := newViewerOrchestrator(relay, rec)

	runErr := make(chan error, 1)
	go func() { runErr <- o.Run(context.Background()) }()

	waitFor(t, func() bool { return relay.handleCount() >= 1 }, "publisher attach")
	pub := relay.handle(0)
	waitFor(t, func() bool { return pub.lastMessage() != nil }, "join request")

	join, ok := pub.lastMessage().(*janus.JoinPublisher)
	if !ok {
		t.Fatalf("expected join request, got %T", pub.lastMessage())
	}
	if join.Room != 42 || join.PType != "publisher" {
		t.Errorf("unexpected join body: %+v", join)
	}

	pub.push(&janus.Event{Kind: "event", Room: &janus.JoinedEvent{
		ID:         100,
		Publishers: []janus.Publisher{{ID: 7, Display: "Host"}},
	}})

	waitFor(t, func() bool { return relay.handleCount() == 2 }, "subscriber attach")

	sub := relay.handle(1)
	waitFor(t, func() bool { return sub.lastMessage() != nil }, "subscriber join")
	subJoin, ok := sub.lastMessage().(*janus.JoinSubscriber)
	if !ok {
		t.Fatalf("expected subscriber join, got %T", sub.lastMessage())
	}
	if subJoin.Feed != 7 || subJoin.PType != "subscriber" {
		t.Errorf("unexpected subscriber join body: %+v", subJoin)
	}

	// Announcing the same feed again must not create a second handle.
	pub.push(&janus.Event{Kind: "event", Room: &janus.NotificationEvent{
		Publishers: []janus.Publisher{{ID: 7, Display: "Host"}},
	}})
	time.Sleep(50 * time.Millisecond)
	if got := relay.handleCount(); got != 2 {
		t.Errorf("duplicate announcement attached a new handle: %d handles", got)
	}

	if !rec.sawStatus(StatusWaitingForHost) {
		t.Error("viewer never reported WaitingForHost")
	}

	o.Stop()
	if err := <-runErr; err != nil {
		t.Errorf("Run returned error: %v", err)
	}

	// Cleanup releases the subscriber handle on the relay side.
	if !sub.isDetached() {
		t.Error("subscriber handle was not detached during cleanup")
	}
}

func TestDestroyedEventTearsDownAfterGrace(t *testing.T) {
	relay := &fakeRelay{}
	rec := &recorder{}
	o := newViewerOrchestrator(relay, rec)

	runErr := make(chan error, 1)
	go func() { runErr <- o.Run(context.Background()) }()

	waitFor(t, func() bool { return relay.handleCount() >= 1 }, "publisher attach")
	relay.handle(0).push(&janus.Event{Kind: "event", Room: &janus.DestroyedEvent{}})

	waitFor(t, func() bool { return rec.sawStatus(StatusRoomDestroyed) }, "RoomDestroyed status")

	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not clean up after room destroy")
	}

	if relay.destroyCount() == 0 {
		t.Error("relay session was not destroyed")
	}
	if !rec.sawStatus(StatusCleanedUp) {
		t.Error("cleanup never reported CleanedUp")
	}
}

func TestSecondRunIsDropped(t *testing.T) {
	relay := &fakeRelay{}
	rec := &recorder{}

	dials := 0
	var dialMu sync.Mutex
	o := New(Config{
		RoomID:      "room-1",
		RelayRoomID: 42,
		Role:        RoleViewer,
		Dial: func(ctx context.Context, serverURL string) (RelaySession, error) {
			dialMu.Lock()
			dials++
			dialMu.Unlock()
			return relay, nil
		},
		Sink:       &fakeSink{},
		OnStatus:   rec.onStatus,
		OnNotice:   rec.onNotice,
		GraceDelay: 10 * time.Millisecond,
	})

	runErr := make(chan error, 1)
	go func() { runErr <- o.Run(context.Background()) }()
	waitFor(t, func() bool { return relay.handleCount() >= 1 }, "publisher attach")

	// A second trigger while the session runs is dropped outright.
	if err := o.Run(context.Background()); err != nil {
		t.Errorf("dropped run returned error: %v", err)
	}

	dialMu.Lock()
	got := dials
	dialMu.Unlock()
	if got != 1 {
		t.Errorf("expected a single relay dial, got %d", got)
	}

	o.Stop()
	<-runErr
}

func TestRoomLookupFailure(t *testing.T) {
	rec := &recorder{}
	o := New(Config{
		RoomID: "room-gone",
		Role:   RoleViewer,
		Dial: func(ctx context.Context, serverURL string) (RelaySession, error) {
			t.Fatal("dialed the relay despite failed room lookup")
			return nil, nil
		},
		Registry:   &fakeFetcher{err: registry.ErrNotFound},
		Sink:       &fakeSink{},
		OnStatus:   rec.onStatus,
		OnNotice:   rec.onNotice,
		GraceDelay: 5 * time.Millisecond,
	})

	err := o.Run(context.Background())
	if !errors.Is(err, ErrRoomUnavailable) {
		t.Fatalf("expected ErrRoomUnavailable, got %v", err)
	}
	if !rec.sawNotice("Invalid or expired room link.") {
		t.Error("user was not told the link is invalid")
	}
	if !rec.sawStatus(StatusCleanedUp) {
		t.Error("failed lookup did not converge on cleanup")
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	relay := &fakeRelay{}
	rec := &recorder{}
	snk := &fakeSink{}
	o := New(Config{
		RoomID:      "room-1",
		RelayRoomID: 42,
		Role:        RoleViewer,
		Dial: func(ctx context.Context, serverURL string) (RelaySession, error) {
			return relay, nil
		},
		Sink:       snk,
		OnStatus:   rec.onStatus,
		OnNotice:   rec.onNotice,
		GraceDelay: 10 * time.Millisecond,
	})

	runErr := make(chan error, 1)
	go func() { runErr <- o.Run(context.Background()) }()
	waitFor(t, func() bool { return relay.handleCount() >= 1 }, "publisher attach")

	o.Stop()
	o.Stop()
	<-runErr
	o.Stop()

	if got := snk.closeCount(); got != 1 {
		t.Errorf("sink closed %d times, want 1", got)
	}
	if got := relay.destroyCount(); got != 1 {
		t.Errorf("relay destroyed %d times, want 1", got)
	}

	select {
	case <-o.Done():
	default:
		t.Error("Done is not closed after cleanup")
	}
}

func TestLostTransportReportsConnectionFailed(t *testing.T) {
	relay := &fakeRelay{}
	rec := &recorder{}
	o := newViewerOrchestrator(relay, rec)

	runErr := make(chan error, 1)
	go func() { runErr <- o.Run(context.Background()) }()
	waitFor(t, func() bool { return relay.handleCount() >= 1 }, "publisher attach")

	// Simulate the signaling transport dropping: the handle's event stream
	// closes without a preceding cleanup.
	relay.handle(0).close()

	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not react to lost transport")
	}

	if !rec.sawStatus(StatusConnectionFailed) {
		t.Error("lost transport never reported ConnectionFailed")
	}
	if !rec.sawNotice("Connection to media server lost") {
		t.Error("user was not told the connection dropped")
	}
}
