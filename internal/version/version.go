// Package version holds build metadata for ppde.
package version

import (
	"runtime"
	"runtime/debug"
)

// Overridden at build time:
// go build -ldflags "-X ppde/internal/version.Version=0.3.0 -X ppde/internal/version.Commit=abc123"
var (
	Version   = "0.1.0-dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// commit returns Commit, falling back to the VCS revision the Go toolchain
// stamped into the binary.
func commit() string {
	if Commit != "unknown" {
		return Commit
	}
	info, ok := readBuildInfo()
	if !ok {
		return Commit
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return Commit
}

// Info returns "VERSION" or "VERSION (abcdef1)".
func Info() string {
	c := commit()
	if c != "unknown" && len(c) > 7 {
		return Version + " (" + c[:7] + ")"
	}
	return Version
}

// Full returns the multi-line text printed by `ppde version`.
func Full() string {
	return "ppde version " + Version + "\n" +
		"Commit: " + commit() + "\n" +
		"Built: " + BuildDate + "\n" +
		"Go: " + runtime.Version()
}
