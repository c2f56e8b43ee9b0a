// Package logging configures the process-wide slog logger shared by the
// screenbeam CLI and registryd.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs a text handler on stderr filtered to the level named by the
// LOG_LEVEL environment variable. The CLI keeps quiet by default so log lines
// do not tear through the terminal UI; set LOG_LEVEL=debug to see everything.
func Init() {
	slog.SetDefault(slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: levelFromEnv(os.Getenv("LOG_LEVEL")),
		}),
	))
}

func levelFromEnv(name string) slog.Level {
	switch strings.ToLower(name) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		// Unset and unrecognized values stay at error, the quietest level.
		return slog.LevelError
	}
}
