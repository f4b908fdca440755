package mem

import "unsafe"

// Memset sets size bytes at the given virtual address to the supplied value.
// Instead of a byte loop it issues log2(size) copy calls, which is
// considerably faster for page-sized blocks.
func Memset(addr uintptr, value byte, size Size) {
	if size == 0 {
		return
	}

	target := overlay(addr, size)
	target[0] = value
	for filled := Size(1); filled < size; filled *= 2 {
		copy(target[filled:], target[:filled])
	}
}

// Memcopy copies size bytes from the virtual address src to dst. The two
// ranges must not overlap.
func Memcopy(src, dst uintptr, size Size) {
	if size == 0 {
		return
	}

	copy(overlay(dst, size), overlay(src, size))
}

// IsZero returns true if all size bytes at addr are zero.
func IsZero(addr uintptr, size Size) bool {
	for _, b := range overlay(addr, size) {
		if b != 0 {
			return false
		}
	}
	return true
}

// overlay returns a byte slice backed by the memory at addr.
func overlay(addr uintptr, size Size) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
}
