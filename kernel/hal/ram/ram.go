// Package ram emulates a window of physical memory on a hosted system so the
// physical frame allocator can run outside of the kernel image (tests and
// the pmmsim tool). The emulated window is installed as the kernel direct
// map, so mem.PhysToVirt resolves physical addresses inside it.
package ram

import (
	"fmt"

	"physframe/kernel/mem"
)

// Bank is a window of emulated physical memory covering the physical range
// [PhysBase(), PhysBase()+Size()).
type Bank struct {
	physBase uintptr
	backing  []byte
	unmap    func([]byte) error
}

// Map reserves size bytes of host memory to back the physical range starting
// at physBase and makes it the active direct map. Only one Bank should be
// active at a time.
func Map(physBase uintptr, size mem.Size) (*Bank, error) {
	if size == 0 || !mem.IsAligned(physBase, mem.PageSize) || !mem.IsAligned(uintptr(size), mem.PageSize) {
		return nil, fmt.Errorf("ram: invalid window 0x%x+0x%x: base and size must be non-zero multiples of the page size", physBase, uint64(size))
	}

	backing, unmap, err := reserve(size)
	if err != nil {
		return nil, fmt.Errorf("ram: reserving %d bytes: %w", uint64(size), err)
	}

	b := &Bank{physBase: physBase, backing: backing, unmap: unmap}
	mem.SetDirectMapBase(b.virtBase() - physBase)
	return b, nil
}

// PhysBase returns the first emulated physical address.
func (b *Bank) PhysBase() uintptr { return b.physBase }

// Size returns the size of the emulated window.
func (b *Bank) Size() mem.Size { return mem.Size(len(b.backing)) }

// Contains returns true if the physical range [pa, pa+size) is backed by b.
func (b *Bank) Contains(pa uintptr, size mem.Size) bool {
	return pa >= b.physBase && pa+uintptr(size) <= b.physBase+uintptr(len(b.backing)) && pa+uintptr(size) >= pa
}

// Bytes returns the emulated memory backing the physical range
// [pa, pa+size). It panics if the range is not inside the bank.
func (b *Bank) Bytes(pa uintptr, size mem.Size) []byte {
	if !b.Contains(pa, size) {
		panic(fmt.Sprintf("ram: range 0x%x+0x%x outside of bank", pa, uint64(size)))
	}
	off := pa - b.physBase
	return b.backing[off : off+uintptr(size)]
}

// Close releases the host memory and clears the direct map. Frames that
// point into the bank must not be used afterwards.
func (b *Bank) Close() error {
	if b.backing == nil {
		return nil
	}

	backing := b.backing
	b.backing = nil
	mem.SetDirectMapBase(0)
	return b.unmap(backing)
}
