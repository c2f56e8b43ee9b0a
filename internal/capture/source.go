package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
)

// Source produces a VP8 IVF byte stream of the screen content. Closing the
// returned reader stops the source.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Name() string
}

// ScreenSource grabs the desktop with ffmpeg and encodes it to VP8 on the
// fly. The stream ends when ffmpeg exits, including when the user kills it
// from outside the app.
type ScreenSource struct {
	// Display selects the input (e.g. ":0.0" on X11). Empty uses $DISPLAY.
	Display   string
	FrameRate int
}

func (s *ScreenSource) Name() string { return "screen" }

func (s *ScreenSource) Open(ctx context.Context) (io.ReadCloser, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found in PATH", ErrCaptureDenied)
	}

	grabber, input, err := s.grabInput()
	if err != nil {
		return nil, err
	}

	rate := s.FrameRate
	if rate == 0 {
		rate = 30
	}

	cmd := exec.CommandContext(ctx, ffmpeg,
		"-f", grabber,
		"-framerate", fmt.Sprintf("%d", rate),
		"-i", input,
		"-c:v", "libvpx",
		"-deadline", "realtime",
		"-cpu-used", "4",
		"-b:v", "2M",
		"-f", "ivf",
		"pipe:1",
	)
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureDenied, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureDenied, err)
	}

	return &processReader{ReadCloser: stdout, cmd: cmd}, nil
}

func (s *ScreenSource) grabInput() (grabber, input string, err error) {
	switch runtime.GOOS {
	case "linux":
		display := s.Display
		if display == "" {
			display = os.Getenv("DISPLAY")
		}
		if display == "" {
			return "", "", fmt.Errorf("%w: no display to capture", ErrCaptureDenied)
		}
		return "x11grab", display, nil
	case "darwin":
		return "avfoundation", "1:none", nil
	case "windows":
		return "gdigrab", "desktop", nil
	default:
		return "", "", fmt.Errorf("%w: unsupported platform %s", ErrCaptureDenied, runtime.GOOS)
	}
}

// processReader ties the pipe's lifetime to the grabber process.
type processReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *processReader) Close() error {
	err := p.ReadCloser.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.cmd.Wait()
	return err
}

// FileSource replays a prerecorded IVF file, useful for rehearsing a share
// without a live screen.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return s.Path }

func (s *FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureDenied, err)
	}
	return f, nil
}
