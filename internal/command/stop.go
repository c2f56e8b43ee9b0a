package command

import (
	"context"
	"errors"
	"time"

	"github.com/screenbeam/screenbeam/internal/config"
	"github.com/screenbeam/screenbeam/internal/registry"
	"github.com/screenbeam/screenbeam/internal/tokenstore"
	"github.com/screenbeam/screenbeam/internal/ui"
	"github.com/spf13/cobra"
)

var stopRegistryURL string

var stopCmd = &cobra.Command{
	Use:   "stop <room-id>",
	Short: "Delete a room you are hosting",
	Long:  `Delete a room created on this machine. Requires the host token stored when the room was created; without it the command does nothing.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStop(args[0])
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().StringVar(&stopRegistryURL, "registry", "", "Room registry base URL")
}

func runStop(roomID string) error {
	cfg, err := config.Load(config.Options{RegistryURL: stopRegistryURL})
	if err != nil {
		return err
	}

	store, err := tokenstore.Open()
	if err != nil {
		return err
	}

	token, ok := store.Lookup(roomID)
	if !ok {
		ui.PrintWarning("No host token stored for this room; nothing to stop.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sp := ui.NewSimpleSpinner("Deleting room...")
	sp.Start()

	err = registry.NewClient(cfg.RegistryURL).DeleteRoom(ctx, roomID, token)
	switch {
	case errors.Is(err, registry.ErrUnauthorized):
		sp.Stop()
		// The registry no longer recognizes this token; drop it.
		store.Forget(roomID)
		ui.PrintWarning("The registry rejected the stored host token; forgetting it.")
		return nil
	case err != nil:
		sp.Error("Could not delete the room")
		return err
	}

	store.Forget(roomID)
	sp.Success("Room deleted.")
	return nil
}
