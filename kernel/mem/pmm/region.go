package pmm

import (
	"physframe/kernel"
	"physframe/kernel/kfmt"
	"physframe/kernel/mem"
)

var (
	errDoubleAllocation = &kernel.Error{Module: "pmm", Message: "free list returned an allocated frame"}
	errDoubleFree       = &kernel.Error{Module: "pmm", Message: "freeing a frame that is not allocated"}
	errForeignFrame     = &kernel.Error{Module: "pmm", Message: "frame does not belong to this region"}
	errSplitBaseFrame   = &kernel.Error{Module: "pmm", Message: "cannot split a base-size frame"}
)

// allocationRegion manages the frames of one contiguous usable memory region.
type allocationRegion struct {
	indexer frameIndexer

	// pageCount is the number of base-size pages in the region, including
	// the pages that hold the frame metadata array.
	pageCount uint64

	// metaPages is the number of pages reserved for the frame records.
	metaPages uint64

	levels [NumLevels]regionLevel
}

// init sets up the region for the memory range described by mr. The first
// pages of the range are reserved for the frame records and the remainder
// is carved into the largest frames that its alignment allows. init returns
// false if the range is too small to hold its own metadata.
func (r *allocationRegion) init(mr mem.MemoryRegion) bool {
	start := mem.AlignUp(mr.Start, mem.PageSize)
	if start < mr.Start || mem.Size(start-mr.Start) >= mr.Length {
		return false
	}

	length := mr.Length - mem.Size(start-mr.Start)
	pageCount := uint64(length >> mem.PageShift)
	if pageCount <= 1 {
		return false
	}

	metaPages := mem.Size(uint64(sizeofFrame) * pageCount).Pages()
	if metaPages >= pageCount {
		return false
	}

	var (
		managedStart = start + uintptr(metaPages)<<mem.PageShift
		managedLen   = mem.Size(pageCount-metaPages) << mem.PageShift
		arrayAddr    = mem.PhysToVirt(start)
	)

	// Clear the records that will be used so that no stale record looks
	// admitted.
	mem.Memset(arrayAddr, 0, mem.Size(uint64(sizeofFrame)*(pageCount-metaPages)))

	r.indexer = newFrameIndexer(managedStart, managedLen, arrayAddr)
	r.pageCount = pageCount
	r.metaPages = metaPages
	for level := range r.levels {
		r.levels[level] = newRegionLevel(LevelLayouts[level])
	}

	// Walk the range in address order, each time admitting the largest
	// frame that is aligned at the cursor and fits in what is left.
	end := managedStart + uintptr(managedLen)
	for cursor := managedStart; cursor < end; {
		remaining := mem.Size(end - cursor)

		level := NumLevels - 1
		for ; level > 0; level-- {
			if mem.IsAligned(cursor, r.levels[level].align) && remaining >= r.levels[level].allocSize {
				break
			}
		}

		r.levels[level].admitOne(&r.indexer, r.indexer.frameAt(cursor), cursor, level, 0)
		cursor += uintptr(r.levels[level].allocSize)
	}

	return true
}

// contains returns true if pa is managed by this region.
func (r *allocationRegion) contains(pa uintptr) bool {
	return r.indexer.contains(pa)
}

// frameContaining returns the live frame whose memory contains pa or nil if
// pa is outside the region.
func (r *allocationRegion) frameContaining(pa uintptr) *Frame {
	for level := 0; level < NumLevels; level++ {
		candidate := mem.AlignDown(pa, r.levels[level].align)
		f := r.indexer.frameAt(candidate)
		if f == nil {
			// Larger levels round down even further.
			return nil
		}

		if f.Flags()&FlagAdmitted != 0 && candidate+uintptr(f.Size()) > pa {
			return f
		}
	}

	return nil
}

// findLevel returns the smallest level whose frames satisfy layout or -1 if
// no level is large enough.
func (r *allocationRegion) findLevel(layout mem.Layout) int {
	if layout.Align&(layout.Align-1) != 0 {
		return -1
	}

	for level := range r.levels {
		if r.levels[level].allocSize >= layout.Size && r.levels[level].align >= layout.Align {
			return level
		}
	}

	return -1
}

// doAllocate returns a free frame at the requested level. If the level has
// no suitable frame, the first larger level that has one gives up a frame
// which is split down one level at a time.
func (r *allocationRegion) doAllocate(tryZero, onlyZero bool, level int) *Frame {
	var (
		f      *Frame
		source = level
	)

	for ; source < NumLevels; source++ {
		if f = r.levels[source].allocate(&r.indexer, tryZero, onlyZero); f != nil {
			break
		}
	}

	for ; f != nil && source > level; source-- {
		r.split(f)
		f = r.levels[source-1].allocate(&r.indexer, tryZero, onlyZero)
	}

	return f
}

// allocate reserves a frame that satisfies layout.
func (r *allocationRegion) allocate(tryZero, onlyZero bool, layout mem.Layout) *Frame {
	level := r.findLevel(layout)
	if level < 0 {
		return nil
	}

	f := r.doAllocate(tryZero, onlyZero, level)
	if f == nil {
		return nil
	}

	if f.Flags()&FlagAllocated != 0 {
		panicFn(errDoubleAllocation)
		return nil
	}

	f.setAllocated()
	return f
}

// split turns the free, unlisted frame f at level L into 512 free frames at
// level L-1. Only metadata is touched, so every child inherits the zeroed
// mark of f. The record of f itself becomes the first child.
func (r *allocationRegion) split(f *Frame) {
	if !r.contains(f.pa) {
		kfmt.Printf("[pmm] warning: refusing to split frame 0x%x that belongs to another region\n", f.pa)
		return
	}

	level := f.Level()
	if level == 0 {
		panicFn(errSplitBaseFrame)
		return
	}

	var (
		childLevel = level - 1
		childSize  = uintptr(r.levels[childLevel].allocSize)
		childCount = uintptr(f.Size()) / childSize
		zeroFlag   = f.Flags() & FlagZeroed
	)

	// Admit the tail children first; f is re-admitted last so it ends up
	// at the back of the list.
	for child := uintptr(1); child < childCount; child++ {
		pa := f.pa + child*childSize
		r.levels[childLevel].admitOne(&r.indexer, r.indexer.frameAt(pa), pa, childLevel, zeroFlag)
	}
	r.levels[childLevel].admitOne(&r.indexer, f, f.pa, childLevel, zeroFlag)
}

// free returns an allocated frame to the free list of its level.
func (r *allocationRegion) free(f *Frame) {
	if !r.contains(f.pa) {
		panicFn(errForeignFrame)
		return
	}

	if f.Flags()&FlagAllocated == 0 {
		panicFn(errDoubleFree)
		return
	}

	level := f.Level()
	if level >= NumLevels {
		panicFn(errInvalidLevel)
		return
	}

	f.setFree()
	r.levels[level].release(&r.indexer, f)
}

// freePages returns the number of free base-size pages in the region.
func (r *allocationRegion) freePages() uint64 {
	var total uint64
	for level := range r.levels {
		total += uint64(r.levels[level].freeCount) * uint64(r.levels[level].allocSize>>mem.PageShift)
	}
	return total
}
