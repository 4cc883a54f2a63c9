// Package version reports the fwaudio build version.
//
// Version, commit and build time are set at link time and fall back to the
// VCS settings the Go toolchain embeds:
//
//	go build -ldflags "-X github.com/kbukum/fwaudio/version.Version=1.2.0" ./cmd/fwaudio
package version
