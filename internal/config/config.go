package config

import (
	"fmt"
	"os"

	"github.com/pion/webrtc/v4"
)

// Default configuration values (production)
const (
	DefaultRegistryURL = "https://api.screenbeam.qzz.io/api/v1"
	DefaultRelayURL    = "wss://relay.screenbeam.qzz.io/janus"
	DefaultWebDomain   = "screenbeam.qzz.io"
	DefaultSTUN        = "stun:stun.l.google.com:19302"
	DefaultTURN        = "" // Optional, empty by default
	DefaultTURNUser    = ""
	DefaultTURNPass    = ""
)

// Config holds application configuration
type Config struct {
	// RegistryURL is the base URL of the room registry API
	RegistryURL string

	// RelayURL is the WebSocket endpoint of the media relay
	RelayURL string

	// WebDomain is used to build shareable viewer links
	WebDomain string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Options for loading config with CLI flag overrides
type Options struct {
	RegistryURL string
	RelayURL    string
	WebDomain   string
	STUNServer  string
	TURNServer  string
	TURNUser    string
	TURNPass    string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	registryURL := firstOf(opts.RegistryURL, os.Getenv("REGISTRY_URL"), DefaultRegistryURL)
	relayURL := firstOf(opts.RelayURL, os.Getenv("RELAY_URL"), DefaultRelayURL)
	webDomain := firstOf(opts.WebDomain, os.Getenv("WEB_DOMAIN"), DefaultWebDomain)
	stunServer := firstOf(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turnServer := firstOf(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN)
	turnUser := firstOf(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser)
	turnPass := firstOf(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass)

	return &Config{
		RegistryURL: registryURL,
		RelayURL:    relayURL,
		WebDomain:   webDomain,
		STUNServer:  stunServer,
		TURNServer:  turnServer,
		TURNUser:    turnUser,
		TURNPass:    turnPass,
	}, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetRoomLink returns the webapp URL viewers open for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/room/%s", c.WebDomain, roomID)
}

// WebRTC builds the peer connection configuration from the ICE settings.
func (c *Config) WebRTC() webrtc.Configuration {
	iceServers := []webrtc.ICEServer{{URLs: []string{c.STUNServer}}}

	if c.TURNServer != "" {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs: []string{
				fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
				fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
			},
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}

	return webrtc.Configuration{ICEServers: iceServers}
}
