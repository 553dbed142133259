// Package version holds build metadata injected via -ldflags.
package version

// Set at build time:
//
//	go build -ldflags "-X github.com/sydlexius/soundcheck/internal/version.Version=v1.2.3 -X github.com/sydlexius/soundcheck/internal/version.Commit=abc123"
var (
	Version = "dev"
	Commit  = "none"
)
