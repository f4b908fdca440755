package pmm

import (
	"testing"

	"physframe/kernel/hal/ram"
	"physframe/kernel/mem"

	"github.com/stretchr/testify/require"
)

// mockPanic turns fatal allocator errors into Go panics carrying the
// *kernel.Error so tests can assert on them.
func mockPanic(t *testing.T) {
	t.Helper()

	orig := panicFn
	panicFn = func(e interface{}) { panic(e) }
	t.Cleanup(func() { panicFn = orig })
}

// mapRAM emulates the physical range [base, base+size) for the duration of
// the test.
func mapRAM(t *testing.T, base uintptr, size mem.Size) *ram.Bank {
	t.Helper()

	bank, err := ram.Map(base, size)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, bank.Close()) })
	return bank
}

func usable(start uintptr, length mem.Size) mem.MemoryRegion {
	return mem.MemoryRegion{Start: start, Length: length, Kind: mem.MemUsableRAM}
}

func newTestRegion(t *testing.T, start uintptr, length mem.Size) *allocationRegion {
	t.Helper()

	r := new(allocationRegion)
	require.True(t, r.init(usable(start, length)))
	return r
}

func newTestAllocator(memoryMap ...mem.MemoryRegion) *PhysicalFrameAllocator {
	alloc := new(PhysicalFrameAllocator)
	alloc.init(memoryMap)
	return alloc
}

// listFrames walks l from head to tail.
func listFrames(ix *frameIndexer, l *frameList) []*Frame {
	var frames []*Frame
	for slot := l.head; slot != 0; {
		f := ix.frameForSlot(slot)
		frames = append(frames, f)
		slot = f.link.next
	}
	return frames
}

// checkRegion verifies the free list bookkeeping of every level in r and
// returns the number of bytes held by free frames.
func checkRegion(t *testing.T, r *allocationRegion) mem.Size {
	t.Helper()

	var freeBytes mem.Size
	for level := range r.levels {
		lvl := &r.levels[level]
		zeroed := listFrames(&r.indexer, &lvl.zeroed)
		nonZeroed := listFrames(&r.indexer, &lvl.nonZeroed)

		require.Equal(t, int(lvl.zeroed.len), len(zeroed), "level %d zeroed list length", level)
		require.Equal(t, int(lvl.nonZeroed.len), len(nonZeroed), "level %d non-zeroed list length", level)
		require.Equal(t, lvl.freeCount, lvl.zeroed.len+lvl.nonZeroed.len, "level %d free count", level)

		for _, f := range append(zeroed, nonZeroed...) {
			require.Equal(t, level, f.Level(), "frame 0x%x", f.Address())
			require.True(t, mem.IsAligned(f.Address(), lvl.align), "frame 0x%x not aligned to level %d", f.Address(), level)
			require.NotZero(t, f.Flags()&FlagAdmitted, "frame 0x%x not admitted", f.Address())
			require.Zero(t, f.Flags()&FlagAllocated, "free frame 0x%x marked allocated", f.Address())
			freeBytes += f.Size()
		}

		for _, f := range zeroed {
			require.True(t, f.IsZeroed(), "frame 0x%x on zeroed list without zeroed mark", f.Address())
		}
	}

	return freeBytes
}

func isZeroMem(f *Frame) bool {
	return mem.IsZero(mem.PhysToVirt(f.Address()), f.Size())
}

func fill(f *Frame, value byte) {
	mem.Memset(mem.PhysToVirt(f.Address()), value, f.Size())
}
