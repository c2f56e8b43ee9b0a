package command

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/screenbeam/screenbeam/internal/config"
	"github.com/screenbeam/screenbeam/internal/registry"
	"github.com/screenbeam/screenbeam/internal/session"
	"github.com/screenbeam/screenbeam/internal/sink"
	"github.com/screenbeam/screenbeam/internal/tokenstore"
	"github.com/screenbeam/screenbeam/internal/ui"
	"github.com/spf13/cobra"
)

var (
	watchRole   string
	watchOutput string

	watchRegistryURL string
	watchRelayURL    string
	watchSTUNServer  string
	watchTURNServer  string
	watchTURNUser    string
	watchTURNPass    string
)

var watchCmd = &cobra.Command{
	Use:   "watch <room-id-or-link>",
	Short: "Join a room and watch the broadcast",
	Long:  `Join an existing room as a viewer and record the broadcast to an IVF file. If this machine created the room, the stored host token makes you rejoin as the host and resume broadcasting instead.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(args[0])
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchRole, "role", "", "Force a role (host or viewer) instead of resolving it from the token store")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "IVF file to record the stream to ('-' for stdout, default screenbeam-<room>.ivf)")

	addConnectionFlags(watchCmd, &watchRegistryURL, &watchRelayURL, &watchSTUNServer, &watchTURNServer, &watchTURNUser, &watchTURNPass)
}

func runWatch(input string) error {
	roomID, err := parseRoomInput(input)
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{
		RegistryURL: watchRegistryURL,
		RelayURL:    watchRelayURL,
		STUNServer:  watchSTUNServer,
		TURNServer:  watchTURNServer,
		TURNUser:    watchTURNUser,
		TURNPass:    watchTURNPass,
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

	hostToken, hasToken := store.Lookup(roomID)
	role := session.ResolveRole(watchRole, hasToken)

	if role == session.RoleHost {
		ui.PrintInfo("You created this room; rejoining as the host.")
		return hostSession(ctx, cfg, reg, store, roomID, hostToken, 0)
	}

	// Resolve the room before entering the session view so a bad link fails
	// fast instead of inside the live UI.
	stopSpinner := ui.RunConnectionSpinner("Looking up room...")
	info, err := reg.GetRoom(ctx, roomID)
	stopSpinner()
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return fmt.Errorf("room %s not found or expired", roomID)
		}
		return err
	}

	output := watchOutput
	if output == "" {
		output = fmt.Sprintf("screenbeam-%s.ivf", roomID)
	}
	recorder, err := sink.NewIVF(output)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	start := time.Now()
	runErr := runSession(ctx, cfg, reg, sessionOptions{
		roomID:      roomID,
		relayRoomID: info.RelayRoomID,
		role:        session.RoleViewer,
		sink:        recorder,
	})

	outcome := "Ended"
	if runErr != nil {
		outcome = "Failed"
	}
	ui.RenderSessionSummary(ui.SessionSummary{
		RoomID:   roomID,
		Role:     session.RoleViewer.Display(),
		Duration: time.Since(start).Round(time.Second).String(),
		Outcome:  outcome,
	})

	return runErr
}

// parseRoomInput accepts either a bare room ID or a shareable link of the
// form https://<domain>/room/<id>.
func parseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty room ID")
	}

	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("invalid room link: %w", err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i, part := range parts {
			if part == "room" && i+1 < len(parts) && parts[i+1] != "" {
				return parts[i+1], nil
			}
		}
		return "", fmt.Errorf("room link %q has no room ID", input)
	}

	return input, nil
}
