// Package session implements the room-session orchestrator: it owns the
// signaling session to the media relay, attaches plugin handles, resolves the
// join flow per role, fans remote feeds out to the playback sink and funnels
// every terminal trigger into one idempotent cleanup path.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/screenbeam/screenbeam/internal/capture"
	"github.com/screenbeam/screenbeam/internal/janus"
	"github.com/screenbeam/screenbeam/internal/registry"
)

const (
	defaultGraceDelay = 2 * time.Second
	signalTimeout     = 10 * time.Second
	detachWait        = 2 * time.Second
)

// RelayHandle is one signaling channel within the relay session.
type RelayHandle interface {
	Message(ctx context.Context, body any, jsep *webrtc.SessionDescription) error
	Trickle(ctx context.Context, candidate *webrtc.ICECandidateInit) error
	Events() <-chan *janus.Event
	Detach(ctx context.Context) error
}

// RelaySession is the signaling session handles multiplex over.
type RelaySession interface {
	Attach(ctx context.Context) (RelayHandle, error)
	Destroy()
}

// RelayDialer establishes a relay session. Exactly one live session exists
// per orchestrator; the dialer is never invoked twice concurrently.
type RelayDialer func(ctx context.Context, serverURL string) (RelaySession, error)

// DialRelay is the production dialer backed by the janus client.
func DialRelay(ctx context.Context, serverURL string) (RelaySession, error) {
	c := janus.NewClient(serverURL)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return &janusRelay{c}, nil
}

type janusRelay struct {
	*janus.Client
}

func (r *janusRelay) Attach(ctx context.Context) (RelayHandle, error) {
	return r.Client.Attach(ctx)
}

// RoomFetcher resolves a public room ID to its relay room identifier.
type RoomFetcher interface {
	GetRoom(ctx context.Context, roomID string) (*registry.RoomInfo, error)
}

// Capturer acquires and releases the local screen capture (host only).
type Capturer interface {
	Acquire(ctx context.Context) (*capture.Feed, error)
	Release()
}

// TrackSink receives remote video tracks (viewer only). Tracks from several
// subscriber handles accumulate into the one sink.
type TrackSink interface {
	AddTrack(track *webrtc.TrackRemote)
	Close() error
}

// Config wires one orchestrator instance.
type Config struct {
	RoomID      string
	RelayRoomID uint64 // 0 when only the public room ID is known
	Role        Role
	RelayURL    string

	Dial     RelayDialer // defaults to DialRelay
	Registry RoomFetcher
	Capture  Capturer  // host only
	Sink     TrackSink // viewer only

	WebRTC webrtc.Configuration

	OnStatus func(Status)
	OnNotice func(Notice)

	// GraceDelay is the pause between a fatal notice and leaving the room,
	// so the user sees the reason before eviction.
	GraceDelay time.Duration
}

// Orchestrator drives one room session from join to teardown. All terminal
// paths (explicit stop, capture ended, relay destroy, fatal errors) converge
// on the same cleanup routine.
type Orchestrator struct {
	cfg       Config
	relayRoom uint64

	mu         sync.Mutex
	relay      RelaySession
	pub        RelayHandle
	pubPC      *webrtc.PeerConnection
	feeds      map[uint64]*feedSubscription
	started    bool
	connecting bool
	alive      bool
	cleanedUp  bool
	status     Status

	done chan struct{}
	wg   sync.WaitGroup
}

func New(cfg Config) *Orchestrator {
	if cfg.Dial == nil {
		cfg.Dial = DialRelay
	}
	if cfg.GraceDelay == 0 {
		cfg.GraceDelay = defaultGraceDelay
	}
	return &Orchestrator{
		cfg:       cfg,
		relayRoom: cfg.RelayRoomID,
		feeds:     make(map[uint64]*feedSubscription),
		done:      make(chan struct{}),
	}
}

// Run drives the session until a terminal transition or context cancellation.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		// A second trigger while a run is underway is dropped, not queued.
		o.mu.Unlock()
		return nil
	}
	o.started = true
	o.alive = true
	o.mu.Unlock()

	o.setStatus(StatusInitializing)

	if o.relayRoom == 0 {
		o.setStatus(StatusFetchingRoomInfo)
		info, err := o.cfg.Registry.GetRoom(ctx, o.cfg.RoomID)
		if err != nil {
			slog.Error("failed to fetch room info", "room", o.cfg.RoomID, "error", err)
			o.notify(NoticeError, "Invalid or expired room link.")
			// Grace period so the user reads the notice; not a retry.
			o.waitGrace(ctx)
			o.cleanup()
			return fmt.Errorf("%w: %v", ErrRoomUnavailable, err)
		}
		o.relayRoom = info.RelayRoomID
	}

	relay, err := o.connectRelay(ctx)
	if err != nil {
		o.setStatus(StatusConnectionFailed)
		o.notify(NoticeError, "Connection to media server failed")
		o.cleanup()
		return err
	}
	if relay == nil {
		// Another creation was already in flight; late attempts are dropped,
		// never queued.
		return nil
	}

	o.setStatus(StatusAttachingPlugin)
	pub, err := relay.Attach(ctx)
	if err != nil {
		slog.Error("publisher attach failed", "error", err)
		o.notify(NoticeError, "Error attaching to media server")
		o.cleanup()
		return fmt.Errorf("%w: %v", ErrAttachFailed, err)
	}

	o.mu.Lock()
	o.pub = pub
	o.mu.Unlock()

	o.setStatus(StatusReadyToJoin)

	// Host and viewer both join as publisher-type participants; the relay's
	// event stream decides everything after this point.
	join := janus.NewJoinPublisher(o.relayRoom, o.cfg.Role.Display())
	if err := pub.Message(ctx, join, nil); err != nil {
		slog.Error("join failed", "room", o.relayRoom, "error", err)
		o.notify(NoticeError, "Could not join the room")
		o.cleanup()
		return err
	}

	o.wg.Add(1)
	go o.publisherLoop(ctx, pub)

	select {
	case <-ctx.Done():
	case <-o.done:
	}
	o.cleanup()
	o.wg.Wait()
	return nil
}

// connectRelay guards against duplicate concurrent session creation. A nil
// session with nil error means the attempt was dropped.
func (o *Orchestrator) connectRelay(ctx context.Context) (RelaySession, error) {
	o.mu.Lock()
	if o.relay != nil || o.connecting {
		o.mu.Unlock()
		return nil, nil
	}
	o.connecting = true
	o.mu.Unlock()

	o.setStatus(StatusConnectingToServer)
	relay, err := o.cfg.Dial(ctx, o.cfg.RelayURL)

	o.mu.Lock()
	o.connecting = false
	if err == nil {
		o.relay = relay
	}
	o.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return relay, nil
}

// publisherLoop processes the publisher handle's events in relay order.
func (o *Orchestrator) publisherLoop(ctx context.Context, pub RelayHandle) {
	defer o.wg.Done()

	for ev := range pub.Events() {
		o.handlePublisherEvent(ctx, ev)
	}

	// The stream closing without a prior cleanup means the transport dropped.
	o.mu.Lock()
	lost := o.alive && !o.cleanedUp
	o.mu.Unlock()
	if lost {
		o.notify(NoticeError, "Connection to media server lost")
		o.setStatus(StatusConnectionFailed)
		o.cleanup()
	}
}

func (o *Orchestrator) handlePublisherEvent(ctx context.Context, ev *janus.Event) {
	if !o.isAlive() {
		return
	}

	switch room := ev.Room.(type) {
	case *janus.JoinedEvent:
		if o.cfg.Role == RoleHost {
			o.notify(NoticeInfo, "You joined as host")
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				o.publish(ctx)
			}()
		} else {
			o.setStatus(StatusWaitingForHost)
			for _, p := range room.Publishers {
				o.subscribe(ctx, p)
			}
		}

	case *janus.NotificationEvent:
		// A non-zero error code is surfaced but does not terminate the
		// session; the relay also reports soft warnings this way.
		if room.Err != nil {
			slog.Warn("relay reported error", "code", room.Err.Code, "reason", room.Err.Reason)
			o.notify(NoticeError, room.Err.Reason)
		}
		if o.cfg.Role == RoleViewer {
			for _, p := range room.Publishers {
				o.notify(NoticeInfo, "Publisher found: "+p.Display)
				o.subscribe(ctx, p)
			}
		}
		if room.Leaving {
			o.notify(NoticeInfo, "A participant left")
		}

	case *janus.DestroyedEvent:
		o.notify(NoticeWarning, "The room has been destroyed!")
		o.setStatus(StatusRoomDestroyed)
		time.AfterFunc(o.cfg.GraceDelay, o.cleanup)

	case *janus.UnknownEvent:
		slog.Warn("unrecognized videoroom event", "tag", room.Tag)

	case *janus.AttachedEvent:
		slog.Debug("unexpected attached event on publisher handle")

	case nil:
		slog.Debug("relay notification", "kind", ev.Kind)
	}

	if ev.JSEP != nil {
		o.handleRemoteAnswer(ev.JSEP)
	}
}

// Stop triggers the explicit teardown path (host stop, viewer quit).
func (o *Orchestrator) Stop() {
	o.cleanup()
}

// Done is closed once the session reached its terminal state.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Status returns the last surfaced status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// cleanup is the single convergence point for every terminal transition.
// Invoking it any number of times produces the same end state.
func (o *Orchestrator) cleanup() {
	o.mu.Lock()
	if o.cleanedUp {
		o.mu.Unlock()
		return
	}
	o.cleanedUp = true
	o.alive = false
	o.connecting = false
	relay := o.relay
	o.relay = nil
	pubPC := o.pubPC
	o.pubPC = nil
	feeds := o.feeds
	o.feeds = make(map[uint64]*feedSubscription)
	o.mu.Unlock()

	if len(feeds) > 0 {
		// Best-effort: with a dead transport the detach fails and the relay
		// reaps the handles with the session.
		ctx, cancel := context.WithTimeout(context.Background(), detachWait)
		for _, sub := range feeds {
			if sub.pc != nil {
				sub.pc.Close()
			}
			if sub.handle != nil {
				if err := sub.handle.Detach(ctx); err != nil {
					slog.Debug("subscriber detach failed", "feed", sub.feedID, "error", err)
				}
			}
		}
		cancel()
	}
	if pubPC != nil {
		pubPC.Close()
	}
	if o.cfg.Capture != nil {
		o.cfg.Capture.Release()
	}
	if o.cfg.Sink != nil {
		o.cfg.Sink.Close()
	}
	if relay != nil {
		relay.Destroy()
	}

	o.setStatus(StatusCleanedUp)
	close(o.done)
}

func (o *Orchestrator) isAlive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.alive && !o.cleanedUp
}

func (o *Orchestrator) waitGrace(ctx context.Context) {
	select {
	case <-time.After(o.cfg.GraceDelay):
	case <-ctx.Done():
	}
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	o.status = s
	cb := o.cfg.OnStatus
	o.mu.Unlock()

	slog.Debug("status changed", "status", s.String())
	if cb != nil {
		cb(s)
	}
}

func (o *Orchestrator) notify(level NoticeLevel, msg string) {
	if o.cfg.OnNotice != nil {
		o.cfg.OnNotice(Notice{Level: level, Message: msg})
	}
}
