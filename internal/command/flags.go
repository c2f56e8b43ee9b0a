package command

import "github.com/spf13/cobra"

// addConnectionFlags registers the registry/relay/ICE overrides shared by the
// session commands. Values left empty fall back to env vars then defaults.
func addConnectionFlags(cmd *cobra.Command, registryURL, relayURL, stun, turn, turnUser, turnPass *string) {
	cmd.Flags().StringVar(registryURL, "registry", "", "Room registry base URL")
	cmd.Flags().StringVar(relayURL, "relay", "", "Media relay WebSocket URL")
	cmd.Flags().StringVar(stun, "stun", "", "STUN server URL")
	cmd.Flags().StringVar(turn, "turn", "", "TURN server URL")
	cmd.Flags().StringVar(turnUser, "turn-user", "", "TURN username")
	cmd.Flags().StringVar(turnPass, "turn-pass", "", "TURN password")
}
