package pmm

import (
	"physframe/kernel"
	"physframe/kernel/kfmt"
	"physframe/kernel/mem"
)

// MaxRegions is the maximum number of memory regions that the allocator can
// manage. The region table is a fixed-size array so that building the
// allocator does not require dynamic memory.
const MaxRegions = 64

var (
	// ErrOutOfMemory is returned when no region can satisfy a request.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

	errUnknownFrame = &kernel.Error{Module: "pmm", Message: "frame does not belong to any region"}
)

// PhysicalFrameAllocator tracks all frames across the usable memory regions
// reported at boot. It performs no locking of its own; the package-level
// functions serialize access with a spinlock.
type PhysicalFrameAllocator struct {
	regions     [MaxRegions]allocationRegion
	regionCount int
}

// init builds a region for every usable RAM entry in memoryMap, in the order
// they are reported. Entries that are too small to host their own frame
// records are skipped.
func (alloc *PhysicalFrameAllocator) init(memoryMap []mem.MemoryRegion) {
	alloc.regionCount = 0

	for _, mr := range memoryMap {
		if mr.Kind != mem.MemUsableRAM {
			continue
		}

		if alloc.regionCount == MaxRegions {
			kfmt.Printf("[pmm] warning: ignoring region [0x%x - 0x%x]: region table full\n", mr.Start, mr.End())
			continue
		}

		region := &alloc.regions[alloc.regionCount]
		if !region.init(mr) {
			kfmt.Printf("[pmm] skipping region [0x%x - 0x%x]: too small\n", mr.Start, mr.End())
			continue
		}

		alloc.regionCount++
	}
}

// AllocFrame reserves a frame that satisfies layout. Passing FlagZeroed
// requests a frame whose memory is zeroed; FlagKernel marks the frame as
// kernel-owned. Other flags are ignored.
//
// Regions are scanned twice. The first pass never hands a zeroed frame to a
// caller that did not ask for one; only when no region has a suitable frame
// does the second pass fall back to zeroed frames. This keeps pre-zeroed
// frames for the callers that need them for as long as possible.
func (alloc *PhysicalFrameAllocator) AllocFrame(flags FrameFlag, layout mem.Layout) (*Frame, *kernel.Error) {
	f := alloc.doAlloc(flags, layout)
	if f == nil {
		return nil, ErrOutOfMemory
	}

	if flags&FlagZeroed != 0 && !f.IsZeroed() {
		f.Zero()
	}

	f.SetKernel(flags&FlagKernel != 0)
	return f, nil
}

func (alloc *PhysicalFrameAllocator) doAlloc(flags FrameFlag, layout mem.Layout) *Frame {
	needsZero := flags&FlagZeroed != 0

	for i := 0; i < alloc.regionCount; i++ {
		if f := alloc.regions[i].allocate(false, needsZero, layout); f != nil {
			return f
		}
	}

	for i := 0; i < alloc.regionCount; i++ {
		if f := alloc.regions[i].allocate(true, false, layout); f != nil {
			return f
		}
	}

	return nil
}

// FreeFrame returns an allocated frame to the region that owns it.
func (alloc *PhysicalFrameAllocator) FreeFrame(f *Frame) {
	for i := 0; i < alloc.regionCount; i++ {
		if alloc.regions[i].contains(f.pa) {
			alloc.regions[i].free(f)
			return
		}
	}

	panicFn(errUnknownFrame)
}

// LookupFrame returns the live frame that contains the physical address pa
// or nil if pa is not managed by the allocator. The region indexers never
// change after init so the lookup does not need the allocator lock.
func (alloc *PhysicalFrameAllocator) LookupFrame(pa uintptr) *Frame {
	for i := 0; i < alloc.regionCount; i++ {
		if alloc.regions[i].contains(pa) {
			return alloc.regions[i].frameContaining(pa)
		}
	}

	return nil
}

// Stats describes the allocator state.
type Stats struct {
	// Regions is the number of managed regions.
	Regions int

	// TotalPages counts the base-size pages of all regions, including the
	// pages that hold frame metadata.
	TotalPages uint64

	// MetadataPages counts the pages reserved for frame records.
	MetadataPages uint64

	// FreePages counts the free base-size pages across all levels.
	FreePages uint64

	// FreeFrames and ZeroedFrames count the free frames (and the subset
	// on the zeroed lists) at each level.
	FreeFrames   [NumLevels]uint64
	ZeroedFrames [NumLevels]uint64
}

// Stats returns a snapshot of the allocator state.
func (alloc *PhysicalFrameAllocator) Stats() Stats {
	st := Stats{Regions: alloc.regionCount}

	for i := 0; i < alloc.regionCount; i++ {
		r := &alloc.regions[i]
		st.TotalPages += r.pageCount
		st.MetadataPages += r.metaPages
		st.FreePages += r.freePages()
		for level := range r.levels {
			st.FreeFrames[level] += uint64(r.levels[level].freeCount)
			st.ZeroedFrames[level] += uint64(r.levels[level].zeroed.len)
		}
	}

	return st
}

// printRegions logs the managed regions and their free frames.
func (alloc *PhysicalFrameAllocator) printRegions() {
	for i := 0; i < alloc.regionCount; i++ {
		r := &alloc.regions[i]
		kfmt.Printf("[pmm] region %d: [0x%16x - 0x%16x] pages: %d, metadata pages: %d\n",
			i, r.indexer.start, r.indexer.start+uintptr(r.indexer.length), r.pageCount, r.metaPages)
		for level := range r.levels {
			kfmt.Printf("[pmm]   %10dKb frames: %d free (%d zeroed)\n",
				uint64(r.levels[level].allocSize/mem.Kb), r.levels[level].freeCount, r.levels[level].zeroed.len)
		}
	}
}
