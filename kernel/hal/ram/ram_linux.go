//go:build linux

package ram

import "golang.org/x/sys/unix"

// Emulated windows can be far larger than the memory a test touches; let
// the host fault pages in lazily without committing swap for them.
const mmapExtraFlags = unix.MAP_NORESERVE
