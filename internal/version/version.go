// Package version exposes build metadata injected via -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/HerbHall/cnmwatch/internal/version.Version=v0.2.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a single-line human readable description of the build.
func Info() string {
	return fmt.Sprintf("cnmwatch %s (commit %s, built %s, %s)", Version, GitCommit, BuildDate, runtime.Version())
}

// Map returns build metadata as key/value pairs for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}
