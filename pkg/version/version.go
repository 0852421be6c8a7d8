// Package version exposes the build identity stamped in at link time.
// It lives under pkg/ so exported snapshots can record the tool version
// without importing internal packages.
package version

import "fmt"

// Set via -ldflags at release build time; the zero values identify a
// source build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns the full human-readable version line.
func String() string {
	return fmt.Sprintf("weft %s (commit %s, built %s)", Version, Commit, Date)
}

// Short returns just the semantic version.
func Short() string {
	return Version
}
