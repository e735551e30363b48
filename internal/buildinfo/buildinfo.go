// Package buildinfo holds version metadata injected at link time:
//
//	go build -ldflags "-X github.com/ZanzyTHEbar/medkg-libsql-go/internal/buildinfo.Version=v0.3.0"
package buildinfo

import "fmt"

var (
	Version   = "dev"
	Revision  = "unknown"
	BuildDate = "unknown"
)

// String renders the version line printed by the CLI and reported by health checks.
func String() string {
	return fmt.Sprintf("%s (rev %s, built %s)", Version, Revision, BuildDate)
}
