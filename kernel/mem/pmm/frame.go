// Package pmm manages physical memory frames.
//
// Every usable memory region reported at boot is carved into frames of one of
// NumLevels architecturally defined sizes (4K, 2M and 1G). Each base-size
// page in a region has a Frame metadata record; the records live in the
// first pages of the region itself, so the allocator never needs memory from
// anywhere else. Free frames are kept on intrusive lists threaded through
// the records, split into zeroed and non-zeroed lists per size class.
package pmm

import (
	"sync/atomic"

	"physframe/kernel"
	"physframe/kernel/kfmt"
	"physframe/kernel/mem"
	"physframe/kernel/sync"
)

// NumLevels is the number of frame size classes.
const NumLevels = 3

// levelShift is log2 of the size ratio between two consecutive levels.
const levelShift = 9

// LevelLayouts lists the size and alignment of each frame size class,
// smallest first.
var LevelLayouts = [NumLevels]mem.Layout{
	{Size: mem.PageSize, Align: mem.PageSize},
	{Size: mem.PageSize << levelShift, Align: mem.PageSize << levelShift},
	{Size: mem.PageSize << (2 * levelShift), Align: mem.PageSize << (2 * levelShift)},
}

var (
	// panicFn is mocked by tests.
	panicFn = kfmt.Panic

	errCopyOutOfRange = &kernel.Error{Module: "pmm", Message: "frame copy exceeds frame bounds"}
	errInvalidLevel   = &kernel.Error{Module: "pmm", Message: "frame level out of range"}
)

// FrameFlag describes the state of a physical frame. The same flags are
// passed to the allocation functions to describe the requested frame.
type FrameFlag uint32

const (
	// FlagZeroed marks a frame whose memory is known to contain only
	// zeroes. When passed to an allocation function it requests a zeroed
	// frame.
	FlagZeroed FrameFlag = 1 << iota

	// FlagAllocated marks a frame that has been handed out.
	FlagAllocated

	// FlagAdmitted marks a frame record that describes a live frame. It is
	// set the first time an address is registered and never cleared.
	FlagAdmitted

	// FlagKernel marks a frame owned by the kernel.
	FlagKernel
)

// frameLink threads a Frame into a frameList. Links hold frame slots
// (index+1) within the owning region so that a zeroed record is unlinked.
type frameLink struct {
	prev, next uint32
}

// Frame is the metadata record of a physical frame. Frame records are
// immortal: a *Frame stays valid, and keeps referring to the same physical
// address, for the lifetime of the system.
//
// A Frame holds no Go pointers since it lives inside the physical memory it
// describes. Its list link is guarded by its own spinlock so that holders of
// a *Frame can zero or copy its memory without taking the allocator lock.
type Frame struct {
	pa    uintptr
	flags uint32
	level uint32
	lock  sync.Spinlock
	link  frameLink
}

// reset reinitializes the record for a frame at pa. Only the allocator may
// call it while it has exclusive access to the record.
func (f *Frame) reset(pa uintptr, level int, initFlags FrameFlag) {
	f.lock.Reset()
	f.link = frameLink{}
	f.pa = pa
	atomic.StoreUint32(&f.level, uint32(level))
	atomic.StoreUint32(&f.flags, uint32(initFlags|FlagAdmitted))
}

// withLink invokes fn with exclusive access to the frame's list link.
func (f *Frame) withLink(fn func(*frameLink)) {
	f.lock.Acquire()
	fn(&f.link)
	f.lock.Release()
}

// Address returns the physical address of the first byte of the frame.
func (f *Frame) Address() uintptr {
	return f.pa
}

// Level returns the size class of the frame.
func (f *Frame) Level() int {
	return int(atomic.LoadUint32(&f.level))
}

// Size returns the size of the frame in bytes.
func (f *Frame) Size() mem.Size {
	level := f.Level()
	if level >= NumLevels {
		panicFn(errInvalidLevel)
		return 0
	}
	return LevelLayouts[level].Size
}

// Flags returns the current frame flags.
func (f *Frame) Flags() FrameFlag {
	return FrameFlag(atomic.LoadUint32(&f.flags))
}

// IsZeroed returns true if the frame is marked as zeroed. The frame memory
// itself is not inspected.
func (f *Frame) IsZeroed() bool {
	return f.Flags()&FlagZeroed != 0
}

// Zero clears the frame memory and marks the frame as zeroed.
func (f *Frame) Zero() {
	f.lock.Acquire()
	mem.Memset(mem.PhysToVirt(f.pa), 0, f.Size())
	f.setFlags(FlagZeroed)
	f.lock.Release()
}

// SetNotZero clears the zeroed mark without touching the frame memory. It is
// used when the memory is about to be overwritten.
func (f *Frame) SetNotZero() {
	f.lock.Acquire()
	f.clearFlags(FlagZeroed)
	f.lock.Release()
}

// SetKernel sets or clears the kernel ownership mark.
func (f *Frame) SetKernel(owned bool) {
	if owned {
		f.setFlags(FlagKernel)
		return
	}
	f.clearFlags(FlagKernel)
}

// IsKernel returns true if the frame is owned by the kernel.
func (f *Frame) IsKernel() bool {
	return f.Flags()&FlagKernel != 0
}

// CopyContentsFrom replaces the contents of f with the contents of other. If
// other is marked as zeroed, f is zeroed instead and other is never read.
// When the frames differ in size only the common prefix is written.
func (f *Frame) CopyContentsFrom(other *Frame) {
	length := f.Size()
	if otherSize := other.Size(); otherSize < length {
		length = otherSize
	}
	f.CopyRangeFrom(other, 0, 0, length)
}

// CopyRangeFrom copies length bytes starting at srcOff inside other to
// dstOff inside f. If other is marked as zeroed the destination range is
// zero-filled instead; f is marked as zeroed only when the range covers the
// whole frame. other is not locked: a copy racing with writes to other may
// observe them or not.
func (f *Frame) CopyRangeFrom(other *Frame, dstOff, srcOff uintptr, length mem.Size) {
	if !rangeFits(dstOff, length, f.Size()) || !rangeFits(srcOff, length, other.Size()) {
		panicFn(errCopyOutOfRange)
		return
	}

	f.lock.Acquire()
	defer f.lock.Release()

	if other.IsZeroed() {
		if f.IsZeroed() {
			return
		}

		mem.Memset(mem.PhysToVirt(f.pa+dstOff), 0, length)
		if dstOff == 0 && length == f.Size() {
			f.setFlags(FlagZeroed)
		}
		return
	}

	f.clearFlags(FlagZeroed)
	mem.Memcopy(mem.PhysToVirt(other.pa+srcOff), mem.PhysToVirt(f.pa+dstOff), length)
}

// CopyContentsFromPhysAddr copies length bytes from the physical address src
// to dstOff inside f. The source is typically memory that is not tracked by
// the allocator, such as device memory.
func (f *Frame) CopyContentsFromPhysAddr(dstOff, src uintptr, length mem.Size) {
	if !rangeFits(dstOff, length, f.Size()) {
		panicFn(errCopyOutOfRange)
		return
	}

	f.lock.Acquire()
	f.clearFlags(FlagZeroed)
	mem.Memcopy(mem.PhysToVirt(src), mem.PhysToVirt(f.pa+dstOff), length)
	f.lock.Release()
}

// rangeFits returns true if [off, off+length) lies inside a frame of the
// given size. The end of the range is never computed so a huge offset cannot
// wrap around.
func rangeFits(off uintptr, length, size mem.Size) bool {
	return off <= uintptr(size) && uintptr(length) <= uintptr(size)-off
}

func (f *Frame) setAllocated() { f.setFlags(FlagAllocated) }
func (f *Frame) setFree()      { f.clearFlags(FlagAllocated) }

func (f *Frame) setFlags(flags FrameFlag) {
	atomic.OrUint32(&f.flags, uint32(flags))
}

func (f *Frame) clearFlags(flags FrameFlag) {
	atomic.AndUint32(&f.flags, ^uint32(flags))
}
