package command

import (
	"context"

	"github.com/screenbeam/screenbeam/internal/config"
	"github.com/screenbeam/screenbeam/internal/registry"
	"github.com/screenbeam/screenbeam/internal/session"
	"github.com/screenbeam/screenbeam/internal/ui"
)

// runSession wires one orchestrator to the live terminal UI and drives it to
// its terminal state. Pressing q routes into the same stop path as every
// other teardown trigger.
func runSession(ctx context.Context, cfg *config.Config, reg *registry.Client, opts sessionOptions) error {
	sessUI := ui.NewSessionUI(opts.roomID, opts.role.Display())

	orch := session.New(session.Config{
		RoomID:      opts.roomID,
		RelayRoomID: opts.relayRoomID,
		Role:        opts.role,
		RelayURL:    cfg.RelayURL,
		Registry:    reg,
		Capture:     opts.capturer,
		Sink:        opts.sink,
		WebRTC:      cfg.WebRTC(),
		OnStatus: func(s session.Status) {
			live := s == session.StatusSharingActive || s == session.StatusWatchingStream
			sessUI.SetStatus(s.String(), live)
		},
		OnNotice: func(n session.Notice) {
			icon := ui.IconInfo
			switch n.Level {
			case session.NoticeWarning:
				icon = ui.IconWarning
			case session.NoticeError:
				icon = ui.IconError
			}
			sessUI.Toast(icon, n.Message)
		},
	})

	sessUI.Start()
	defer sessUI.Stop()

	runErr := make(chan error, 1)
	go func() {
		runErr <- orch.Run(ctx)
	}()

	select {
	case err := <-runErr:
		return err
	case <-sessUI.Quit():
		orch.Stop()
		return <-runErr
	}
}

type sessionOptions struct {
	roomID      string
	relayRoomID uint64
	role        session.Role
	capturer    session.Capturer
	sink        session.TrackSink
}
