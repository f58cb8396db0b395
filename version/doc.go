// Package version reports the build of a persist binary.
//
// Version, commit and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/persist/version.Version=1.2.0 \
//	    -X github.com/kbukum/persist/version.BuildTime=2026-01-02T15:04:05Z" ./cmd/persistctl
//
// Anything left unset is filled from the module build info when possible.
package version
