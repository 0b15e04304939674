// Package version reports the build version of the migrate tools.
package version

// Version and Commit are set at build time:
//
//	go build -ldflags "-X github.com/getpup/schemamigrate/pkg/version.Version=v1.2.0 -X github.com/getpup/schemamigrate/pkg/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "dev"
	Commit  = "none"
)

// String returns "<version> (<commit>)".
func String() string {
	return Version + " (" + Commit + ")"
}
