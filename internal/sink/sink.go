// Package sink collects the viewer's remote video tracks into a single
// playable output. Tracks from multiple subscriber handles may accumulate
// into one sink.
package sink

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
)

// IVF writes every received video track into one IVF stream.
type IVF struct {
	mu     sync.Mutex
	out    io.Closer
	writer *ivfwriter.IVFWriter
	closed bool
	tracks int
}

// NewIVF creates a sink writing to the given path. "-" writes to stdout so
// the stream can be piped straight into a player.
func NewIVF(path string) (*IVF, error) {
	var out io.WriteCloser
	if path == "-" {
		out = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("open playback sink: %w", err)
		}
		out = f
	}

	writer, err := ivfwriter.NewWith(out)
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("open playback sink: %w", err)
	}

	return &IVF{out: out, writer: writer}, nil
}

// AddTrack binds one remote video track into the sink and drains it until the
// track ends. Non-video tracks are ignored.
func (s *IVF) AddTrack(track *webrtc.TrackRemote) {
	if track.Kind() != webrtc.RTPCodecTypeVideo {
		slog.Debug("ignoring non-video track", "kind", track.Kind().String())
		return
	}

	s.mu.Lock()
	s.tracks++
	s.mu.Unlock()

	go s.drain(track)
}

func (s *IVF) drain(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("remote track ended", "ssrc", track.SSRC(), "error", err)
			}
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		err = s.writer.WriteRTP(pkt)
		s.mu.Unlock()

		if err != nil {
			slog.Debug("sink write failed", "error", err)
			return
		}
	}
}

// Close finalizes the output. Idempotent.
func (s *IVF) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.writer.Close()
	if s.out != os.Stdout {
		s.out.Close()
	}
	return err
}
