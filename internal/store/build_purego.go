//go:build !cgo_sqlite
// +build !cgo_sqlite

package store

// Compiled by default: pure Go SQLite, no C compiler required, suitable
// for cross-compilation and development.
//
// Build command:
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
