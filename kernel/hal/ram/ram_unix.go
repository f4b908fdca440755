//go:build unix

package ram

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"physframe/kernel/mem"
)

func reserve(size mem.Size) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE|mmapExtraFlags)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

func (b *Bank) virtBase() uintptr {
	return uintptr(unsafe.Pointer(&b.backing[0]))
}
