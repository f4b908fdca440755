//go:build !unix

package ram

import (
	"unsafe"

	"physframe/kernel/mem"
)

// reserve uses the Go heap when mmap is not available. The allocator never
// stores Go pointers inside emulated memory so the GC can ignore its
// contents.
func reserve(size mem.Size) ([]byte, func([]byte) error, error) {
	return make([]byte, size), func([]byte) error { return nil }, nil
}

func (b *Bank) virtBase() uintptr {
	return uintptr(unsafe.Pointer(&b.backing[0]))
}
