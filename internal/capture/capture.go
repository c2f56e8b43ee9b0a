package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
)

var ErrCaptureDenied = errors.New("screen capture unavailable")

// Feed is an acquired capture stream bound to an outbound track.
type Feed struct {
	// Track is the local video track to publish.
	Track *webrtc.TrackLocalStaticSample

	done chan struct{}
	once sync.Once
}

// Done is closed when the underlying source ends, whether drained normally or
// stopped by the user outside the app.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

func (f *Feed) end() {
	f.once.Do(func() { close(f.done) })
}

// Manager owns the local capture stream while sharing is active. Acquire is
// host-only; every terminal session transition must call Release.
type Manager struct {
	source Source

	mu       sync.Mutex
	stream   io.ReadCloser
	feed     *Feed
	released bool
}

func NewManager(source Source) *Manager {
	return &Manager{source: source}
}

// Acquire opens the capture source and starts pumping frames into a local
// VP8 track. Fails with ErrCaptureDenied when the platform cannot capture.
func (m *Manager) Acquire(ctx context.Context) (*Feed, error) {
	stream, err := m.source.Open(ctx)
	if err != nil {
		return nil, err
	}

	reader, header, err := ivfreader.NewWith(stream)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: %v", ErrCaptureDenied, err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "screenbeam",
	)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("create local track: %w", err)
	}

	feed := &Feed{Track: track, done: make(chan struct{})}

	m.mu.Lock()
	m.stream = stream
	m.feed = feed
	m.released = false
	m.mu.Unlock()

	go m.pump(reader, header, feed)

	return feed, nil
}

// pump feeds IVF frames into the track at the stream's native pacing.
func (m *Manager) pump(reader *ivfreader.IVFReader, header *ivfreader.IVFFileHeader, feed *Feed) {
	defer feed.end()

	// Send interval derived from the IVF timebase, matching the encoder's
	// frame rate.
	interval := time.Millisecond * time.Duration(
		(float32(header.TimebaseNumerator)/float32(header.TimebaseDenominator))*1000,
	)
	if interval <= 0 {
		interval = time.Second / 30
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		frame, _, err := reader.ParseNextFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("capture stream ended", "source", m.source.Name(), "error", err)
			}
			return
		}

		if err := feed.Track.WriteSample(media.Sample{Data: frame, Duration: interval}); err != nil {
			slog.Debug("write sample failed", "error", err)
			return
		}
	}
}

// Release stops every track and the underlying source. It is idempotent.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.released {
		return
	}
	m.released = true

	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
	if m.feed != nil {
		m.feed.end()
		m.feed = nil
	}
}
