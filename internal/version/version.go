// Package version holds build metadata injected at link time:
//
//	go build -ldflags "-X github.com/fieldcast/fieldcast/internal/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime"

	"golang.org/x/mod/semver"
)

// Set via -ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a single human-readable line.
func Info() string {
	return fmt.Sprintf("fieldcast %s (commit %s, built %s, %s)", Version, GitCommit, BuildDate, runtime.Version())
}

// Map returns the build metadata for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}

// IsRelease reports whether Version is a valid semantic version.
func IsRelease() bool {
	return semver.IsValid(Version)
}
