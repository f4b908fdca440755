package pmm

import (
	"unsafe"

	"physframe/kernel"
	"physframe/kernel/mem"
)

var errIndexOutOfRange = &kernel.Error{Module: "pmm", Message: "frame index outside of metadata array"}

// sizeofFrame is the number of metadata bytes reserved per base-size page.
const sizeofFrame = unsafe.Sizeof(Frame{})

// frameIndexer maps physical addresses in [start, start+length) to their
// Frame records and back. The record array is overlaid on memory that the
// owning region reserved for it and is never resized.
type frameIndexer struct {
	start  uintptr
	length mem.Size
	frames []Frame
}

// newFrameIndexer builds an indexer for the physical range [start,
// start+length) whose records are stored at the virtual address arrayAddr.
func newFrameIndexer(start uintptr, length mem.Size, arrayAddr uintptr) frameIndexer {
	count := int(length >> mem.PageShift)
	return frameIndexer{
		start:  start,
		length: length,
		frames: unsafe.Slice((*Frame)(unsafe.Pointer(arrayAddr)), count),
	}
}

// contains returns true if pa belongs to the indexed range.
func (ix *frameIndexer) contains(pa uintptr) bool {
	return pa >= ix.start && pa-ix.start < uintptr(ix.length)
}

// frameAt returns the record for the base-size page containing pa or nil if
// pa is outside the indexed range. The record may not be admitted yet.
func (ix *frameIndexer) frameAt(pa uintptr) *Frame {
	if !ix.contains(pa) {
		return nil
	}

	index := (pa - ix.start) >> mem.PageShift
	if index >= uintptr(len(ix.frames)) {
		panicFn(errIndexOutOfRange)
		return nil
	}
	return &ix.frames[index]
}

// slotOf returns the list slot of a record that belongs to this indexer.
func (ix *frameIndexer) slotOf(f *Frame) uint32 {
	return uint32((f.pa-ix.start)>>mem.PageShift) + 1
}

// frameForSlot is the inverse of slotOf.
func (ix *frameIndexer) frameForSlot(slot uint32) *Frame {
	return &ix.frames[slot-1]
}
