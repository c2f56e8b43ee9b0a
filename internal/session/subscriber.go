package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/screenbeam/screenbeam/internal/janus"
)

const keyframeInterval = 3 * time.Second

// feedSubscription is one subscriber handle bound to one remote feed.
// Subscriptions are disjoint per feed ID for the lifetime of the session.
type feedSubscription struct {
	feedID  uint64
	display string
	handle  RelayHandle
	pc      *webrtc.PeerConnection
}

// subscribe attaches a subscriber handle for a newly announced feed. Repeated
// announcements for a feed already tracked are ignored.
func (o *Orchestrator) subscribe(ctx context.Context, pub janus.Publisher) {
	o.mu.Lock()
	if o.cleanedUp {
		o.mu.Unlock()
		return
	}
	if _, known := o.feeds[pub.ID]; known {
		o.mu.Unlock()
		return
	}
	sub := &feedSubscription{feedID: pub.ID, display: pub.Display}
	o.feeds[pub.ID] = sub
	relay := o.relay
	o.mu.Unlock()

	handle, err := relay.Attach(ctx)
	if err != nil {
		// No automatic re-attach; a reload recovers.
		slog.Error("subscriber attach failed", "feed", pub.ID, "error", err)
		o.notify(NoticeError, "Could not subscribe to "+pub.Display)
		return
	}

	o.mu.Lock()
	sub.handle = handle
	o.mu.Unlock()

	if err := handle.Message(ctx, janus.NewJoinSubscriber(o.relayRoom, pub.ID), nil); err != nil {
		slog.Error("subscriber join failed", "feed", pub.ID, "error", err)
		o.notify(NoticeError, "Could not subscribe to "+pub.Display)
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for ev := range handle.Events() {
			o.handleSubscriberEvent(ctx, sub, ev)
		}
		// The relay cleaning the handle up is the end-of-feed signal; there
		// is no explicit unsubscribe message.
		slog.Debug("subscriber handle closed", "feed", sub.feedID)
	}()
}

func (o *Orchestrator) handleSubscriberEvent(ctx context.Context, sub *feedSubscription, ev *janus.Event) {
	if !o.isAlive() {
		return
	}

	switch room := ev.Room.(type) {
	case *janus.AttachedEvent:
		slog.Debug("attached to feed", "feed", room.FeedID)
	case *janus.NotificationEvent:
		if room.Err != nil {
			slog.Warn("relay reported error", "feed", sub.feedID, "code", room.Err.Code)
			o.notify(NoticeError, room.Err.Reason)
		}
	case *janus.DestroyedEvent:
		// Room teardown also arrives on the publisher handle; handled there.
	case *janus.UnknownEvent:
		slog.Warn("unrecognized videoroom event", "tag", room.Tag)
	}

	if ev.JSEP != nil && ev.JSEP.Type == webrtc.SDPTypeOffer {
		if err := o.answerFeed(ctx, sub, ev.JSEP); err != nil {
			slog.Error("subscriber negotiation failed", "feed", sub.feedID, "error", err)
			o.notify(NoticeError, "Could not start playback for "+sub.display)
		}
	}
}

// answerFeed answers the remote offer with a receive-only video plan and
// sends the start request. The first delivered video track flips the session
// to WatchingStream.
func (o *Orchestrator) answerFeed(ctx context.Context, sub *feedSubscription, offer *webrtc.SessionDescription) error {
	pc, err := webrtc.NewPeerConnection(o.cfg.WebRTC)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
	}

	o.mu.Lock()
	if o.cleanedUp {
		o.mu.Unlock()
		pc.Close()
		return nil
	}
	sub.pc = pc
	o.mu.Unlock()

	// Subscribers are receive-only: video in, nothing out, audio declined.
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if !o.isAlive() || track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		go o.keyframeLoop(pc, uint32(track.SSRC()))
		o.cfg.Sink.AddTrack(track)
		o.setStatus(StatusWatchingStream)
	})

	o.bindTrickle(pc, sub.handle)

	if err := pc.SetRemoteDescription(*offer); err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err == nil {
		err = pc.SetLocalDescription(answer)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
	}

	if err := sub.handle.Message(ctx, janus.NewStart(o.relayRoom), pc.LocalDescription()); err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
	}
	return nil
}

// keyframeLoop periodically requests a keyframe so late joiners render
// promptly.
func (o *Orchestrator) keyframeLoop(pc *webrtc.PeerConnection, ssrc uint32) {
	ticker := time.NewTicker(keyframeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: ssrc},
			}); err != nil {
				return
			}
		case <-o.done:
			return
		}
	}
}
