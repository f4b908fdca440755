// Package mem defines the memory units, address helpers and boot memory
// descriptions shared by the memory management subsystems.
package mem

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

const (
	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = 12

	// PageSize defines the size of the smallest physical frame in bytes.
	PageSize = Size(1 << PageShift)
)

// Pages returns the number of pages that are required for storing this size.
func (s Size) Pages() uint64 {
	return uint64((s + PageSize - 1) >> PageShift)
}

// Layout describes the size and alignment requirements of a physical memory
// request. Align must be a power of two.
type Layout struct {
	Size  Size
	Align Size
}

// PageLayout returns a Layout covering count base pages aligned to PageSize.
func PageLayout(count uint64) Layout {
	return Layout{Size: Size(count) * PageSize, Align: PageSize}
}

// Valid returns true if the layout has a non-zero size and a power-of-two
// alignment.
func (l Layout) Valid() bool {
	return l.Size != 0 && l.Align != 0 && l.Align&(l.Align-1) == 0
}

// AlignUp rounds addr up to the next multiple of align, which must be a power
// of two.
func AlignUp(addr uintptr, align Size) uintptr {
	mask := uintptr(align - 1)
	return (addr + mask) &^ mask
}

// AlignDown rounds addr down to a multiple of align, which must be a power of
// two.
func AlignDown(addr uintptr, align Size) uintptr {
	return addr &^ uintptr(align-1)
}

// IsAligned returns true if addr is a multiple of align.
func IsAligned(addr uintptr, align Size) bool {
	return addr&uintptr(align-1) == 0
}
