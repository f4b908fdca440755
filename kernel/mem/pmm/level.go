package pmm

import "physframe/kernel/mem"

// regionLevel tracks the free frames of one size class inside a region.
// freeCount always equals zeroed.len + nonZeroed.len.
type regionLevel struct {
	allocSize mem.Size
	align     mem.Size
	freeCount uint32

	zeroed    frameList
	nonZeroed frameList
}

func newRegionLevel(layout mem.Layout) regionLevel {
	return regionLevel{allocSize: layout.Size, align: layout.Align}
}

// allocate pops a free frame. With onlyZero set, only zeroed frames are
// considered. Otherwise non-zeroed frames are preferred so that zeroed frames
// stay available for callers that need them; zeroed frames are used only if
// tryZero is set.
func (l *regionLevel) allocate(ix *frameIndexer, tryZero, onlyZero bool) *Frame {
	var f *Frame

	switch {
	case onlyZero:
		f = l.zeroed.popBack(ix)
	default:
		if f = l.nonZeroed.popBack(ix); f == nil && tryZero {
			f = l.zeroed.popBack(ix)
		}
	}

	if f != nil {
		l.freeCount--
	}
	return f
}

// release returns f to the free list that matches its zeroed mark.
func (l *regionLevel) release(ix *frameIndexer, f *Frame) {
	if f.IsZeroed() {
		l.zeroed.pushBack(ix, f)
	} else {
		l.nonZeroed.pushBack(ix, f)
	}
	l.freeCount++
}

// admitOne (re)initializes the record f for a free frame at pa and adds it to
// the non-zeroed list. The FlagZeroed bit in initFlags is kept on the frame
// but does not affect which list it joins.
func (l *regionLevel) admitOne(ix *frameIndexer, f *Frame, pa uintptr, level int, initFlags FrameFlag) bool {
	f.reset(pa, level, initFlags&^FlagAllocated)
	l.nonZeroed.pushBack(ix, f)
	l.freeCount++
	return true
}
