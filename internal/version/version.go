package version

// Version is the current version of the screenbeam CLI.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/screenbeam/screenbeam/internal/version.Version=v1.0.0'"
var Version = "dev"
