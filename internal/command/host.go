package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/screenbeam/screenbeam/internal/capture"
	"github.com/screenbeam/screenbeam/internal/config"
	"github.com/screenbeam/screenbeam/internal/lifecycle"
	"github.com/screenbeam/screenbeam/internal/registry"
	"github.com/screenbeam/screenbeam/internal/session"
	"github.com/screenbeam/screenbeam/internal/tokenstore"
	"github.com/screenbeam/screenbeam/internal/ui"
	"github.com/spf13/cobra"
)

var (
	hostTitle     string
	hostInput     string
	hostDisplay   string
	hostFrameRate int

	hostRegistryURL string
	hostRelayURL    string
	hostSTUNServer  string
	hostTURNServer  string
	hostTURNUser    string
	hostTURNPass    string
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Create a room and broadcast your screen",
	Long:  `Create a room on the registry and start broadcasting your screen to it. The shareable link is printed once the room exists; the broadcast runs until you press q, the capture ends, or the room is torn down.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHost()
	},
}

func init() {
	rootCmd.AddCommand(hostCmd)

	hostCmd.Flags().StringVarP(&hostTitle, "title", "t", "Untitled broadcast", "Room title shown to viewers")
	hostCmd.Flags().StringVarP(&hostInput, "input", "i", "", "Broadcast a prerecorded IVF file instead of the live screen")
	hostCmd.Flags().StringVar(&hostDisplay, "display", "", "Display to capture (defaults to $DISPLAY)")
	hostCmd.Flags().IntVar(&hostFrameRate, "framerate", 30, "Capture frame rate")

	addConnectionFlags(hostCmd, &hostRegistryURL, &hostRelayURL, &hostSTUNServer, &hostTURNServer, &hostTURNUser, &hostTURNPass)
}

func runHost() error {
	cfg, err := config.Load(config.Options{
		RegistryURL: hostRegistryURL,
		RelayURL:    hostRelayURL,
		STUNServer:  hostSTUNServer,
		TURNServer:  hostTURNServer,
		TURNUser:    hostTURNUser,
		TURNPass:    hostTURNPass,
	})
	if err != nil {
		return err
	}

	store, err := tokenstore.Open()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := registry.NewClient(cfg.RegistryURL)

	stopSpinner := ui.RunSpinner("Creating room...")
	created, err := reg.CreateRoom(ctx, hostTitle)
	stopSpinner()
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}

	if err := store.Save(created.RoomID, created.HostToken); err != nil {
		ui.PrintWarning("Could not persist the host token; 'screenbeam stop' will not work for this room")
	}

	ui.NewRoomInfo(created.RoomID, hostTitle, cfg.GetRoomLink(created.RoomID)).Render()

	return hostSession(ctx, cfg, reg, store, created.RoomID, created.HostToken, created.RelayRoomID)
}

// hostSession runs a publishing session with the registry heartbeat alive for
// its whole duration, then tears the room down best-effort on the way out.
func hostSession(ctx context.Context, cfg *config.Config, reg *registry.Client, store *tokenstore.Store, roomID, hostToken string, relayRoomID uint64) error {
	var source capture.Source
	if hostInput != "" {
		source = &capture.FileSource{Path: hostInput}
	} else {
		source = &capture.ScreenSource{Display: hostDisplay, FrameRate: hostFrameRate}
	}

	hb := lifecycle.NewHeartbeat(lifecycle.HeartbeatInterval, func(ctx context.Context) error {
		return reg.Heartbeat(ctx, roomID, hostToken)
	})
	hb.Start(ctx)
	defer hb.Stop()

	start := time.Now()
	runErr := runSession(ctx, cfg, reg, sessionOptions{
		roomID:      roomID,
		relayRoomID: relayRoomID,
		role:        session.RoleHost,
		capturer:    capture.NewManager(source),
	})

	hb.Stop()
	lifecycle.BestEffortDelete(func(ctx context.Context) error {
		return reg.DeleteRoom(ctx, roomID, hostToken)
	})
	store.Forget(roomID)

	outcome := "Ended"
	if runErr != nil {
		outcome = "Failed"
	}
	ui.RenderSessionSummary(ui.SessionSummary{
		RoomID:   roomID,
		Role:     session.RoleHost.Display(),
		Duration: time.Since(start).Round(time.Second).String(),
		Outcome:  outcome,
	})

	return runErr
}
