// Package lifecycle keeps a hosted room alive on the registry and cleans it
// up on departure. Viewers never run this.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// HeartbeatInterval is how often the host refreshes the room's liveness. The
// registry's own timeout policy is the authority on room expiry.
const HeartbeatInterval = 10 * time.Second

const beatTimeout = 5 * time.Second

// Heartbeat periodically invokes a beat function. A failed beat is logged and
// otherwise ignored; there is no immediate retry before the next tick and a
// failure never tears the local session down.
type Heartbeat struct {
	interval time.Duration
	beat     func(ctx context.Context) error

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewHeartbeat creates a runner with the given interval; zero means
// HeartbeatInterval.
func NewHeartbeat(interval time.Duration, beat func(ctx context.Context) error) *Heartbeat {
	if interval == 0 {
		interval = HeartbeatInterval
	}
	return &Heartbeat{
		interval: interval,
		beat:     beat,
		stop:     make(chan struct{}),
	}
}

// Start launches the heartbeat loop until Stop is called or ctx ends.
func (h *Heartbeat) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				beatCtx, cancel := context.WithTimeout(ctx, beatTimeout)
				if err := h.beat(beatCtx); err != nil {
					slog.Warn("heartbeat failed", "error", err)
				}
				cancel()
			case <-h.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight beat. Idempotent.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	h.wg.Wait()
}

// BestEffortDelete attempts a room deletion with a short deadline, for use on
// the way out of the process. Delivery is advisory: failure is logged and
// ignored, the registry's expiry policy cleans up eventually.
func BestEffortDelete(del func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), beatTimeout)
	defer cancel()

	if err := del(ctx); err != nil {
		slog.Warn("room delete on shutdown failed", "error", err)
	}
}
