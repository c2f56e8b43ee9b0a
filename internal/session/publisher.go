package session

import (
	"context"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/screenbeam/screenbeam/internal/janus"
)

// publish runs the host's outbound flow: acquire the screen capture, offer
// the capture track as the only media plane (audio always declined) and send
// the configure request. SharingActive is only reached once the relay's
// answer is applied.
func (o *Orchestrator) publish(ctx context.Context) {
	feed, err := o.cfg.Capture.Acquire(ctx)
	if err != nil {
		slog.Error("screen capture failed", "error", err)
		o.notify(NoticeError, "Could not share screen: "+err.Error())
		// A host cannot proceed without a capture source.
		o.cleanup()
		return
	}

	pc, err := webrtc.NewPeerConnection(o.cfg.WebRTC)
	if err != nil {
		slog.Error("peer connection failed", "error", err)
		o.notify(NoticeError, "Could not set up media connection")
		o.cleanup()
		return
	}

	o.mu.Lock()
	if o.cleanedUp {
		o.mu.Unlock()
		pc.Close()
		return
	}
	o.pubPC = pc
	pub := o.pub
	o.mu.Unlock()

	if _, err := pc.AddTransceiverFromTrack(feed.Track, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	}); err != nil {
		slog.Error("add track failed", "error", err)
		o.notify(NoticeError, "Could not set up media connection")
		o.cleanup()
		return
	}

	o.bindTrickle(pc, pub)

	offer, err := pc.CreateOffer(nil)
	if err == nil {
		err = pc.SetLocalDescription(offer)
	}
	if err != nil {
		slog.Error("offer failed", "error", err)
		o.notify(NoticeError, "Media negotiation failed")
		o.cleanup()
		return
	}

	if err := pub.Message(ctx, janus.NewConfigure(true), pc.LocalDescription()); err != nil {
		slog.Error("configure failed", "error", err)
		o.notify(NoticeError, "Media negotiation failed")
		o.cleanup()
		return
	}

	// The user can stop sharing from outside the app (killing the grabber);
	// that ends the feed and routes into the same cleanup as an explicit stop.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		select {
		case <-feed.Done():
			if o.isAlive() {
				o.notify(NoticeInfo, "Screen sharing stopped.")
				o.cleanup()
			}
		case <-o.done:
		}
	}()
}

// handleRemoteAnswer applies the relay's answer to our publish offer.
func (o *Orchestrator) handleRemoteAnswer(jsep *webrtc.SessionDescription) {
	if jsep.Type != webrtc.SDPTypeAnswer {
		slog.Debug("ignoring remote jsep on publisher handle", "type", jsep.Type.String())
		return
	}

	o.mu.Lock()
	pc := o.pubPC
	o.mu.Unlock()
	if pc == nil {
		return
	}

	if err := pc.SetRemoteDescription(*jsep); err != nil {
		slog.Error("apply remote answer failed", "error", err)
		o.notify(NoticeError, "Media negotiation failed")
		return
	}

	o.setStatus(StatusSharingActive)
	o.notify(NoticeInfo, "Screen sharing started")
}

// bindTrickle forwards local ICE candidates to the relay on the given handle.
func (o *Orchestrator) bindTrickle(pc *webrtc.PeerConnection, handle RelayHandle) {
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if !o.isAlive() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), signalTimeout)
		defer cancel()

		if c == nil {
			if err := handle.Trickle(ctx, nil); err != nil {
				slog.Debug("trickle complete failed", "error", err)
			}
			return
		}
		init := c.ToJSON()
		if err := handle.Trickle(ctx, &init); err != nil {
			slog.Debug("trickle failed", "error", err)
		}
	})
}
