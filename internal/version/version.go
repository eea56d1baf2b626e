// Package version reports the everwatch build, set at link time with
// -ldflags "-X github.com/hazz-dev/everwatch/internal/version.Version=...".
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the build information for humans.
func String() string {
	return fmt.Sprintf("everwatch %s (commit %s, built %s)", Version, Commit, Date)
}
