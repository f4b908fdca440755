package pmm

import (
	"physframe/kernel"
	"physframe/kernel/kfmt"
	"physframe/kernel/mem"
	"physframe/kernel/sync"
)

var (
	// frameAllocator is the allocator instance shared by the whole kernel.
	// It lives in static storage and is guarded by allocatorLock.
	frameAllocator PhysicalFrameAllocator
	allocatorLock  sync.Spinlock
	initOnce       sync.Once

	errNotInitialized    = &kernel.Error{Module: "pmm", Message: "frame allocator used before Init"}
	errFrameNotZeroed    = &kernel.Error{Module: "pmm", Message: "allocated frame is not zeroed"}
	errFrameNotAdmitted  = &kernel.Error{Module: "pmm", Message: "frame is not admitted"}
	errFrameNotAllocated = &kernel.Error{Module: "pmm", Message: "frame is not allocated"}
)

// Init builds the kernel frame allocator from the memory map reported by the
// boot loader. Only the first call has any effect; Init must complete before
// any other function in this package is used.
func Init(memoryMap []mem.MemoryRegion) {
	if !initOnce.Do(func() {
		frameAllocator.init(memoryMap)
	}) {
		kfmt.Printf("[pmm] warning: ignoring repeated Init call\n")
		return
	}

	st := frameAllocator.Stats()
	kfmt.Printf("[pmm] managing %d regions, %d pages (%d free, %d metadata)\n",
		st.Regions, st.TotalPages, st.FreePages, st.MetadataPages)
}

// AllocFrame reserves a frame that satisfies layout. If flags contains
// FlagZeroed the frame memory is all zeroes when AllocFrame returns. The
// returned frame is not marked as zeroed since the caller is expected to
// write to it.
//
// AllocFrame returns ErrOutOfMemory if no frame is available; it never waits
// for frames to be freed.
func AllocFrame(flags FrameFlag, layout mem.Layout) (*Frame, *kernel.Error) {
	if !initOnce.Done() {
		panicFn(errNotInitialized)
		return nil, errNotInitialized
	}

	allocatorLock.Acquire()
	f, err := frameAllocator.AllocFrame(flags, layout)
	allocatorLock.Release()

	if err != nil {
		return nil, err
	}

	if flags&FlagZeroed != 0 && !f.IsZeroed() {
		panicFn(errFrameNotZeroed)
	}

	f.SetNotZero()

	switch {
	case f.Flags()&FlagAdmitted == 0:
		panicFn(errFrameNotAdmitted)
	case f.Flags()&FlagAllocated == 0:
		panicFn(errFrameNotAllocated)
	}

	return f, nil
}

// FreeFrame returns a frame obtained from AllocFrame. Freeing a frame twice
// or freeing a frame that the allocator does not manage halts the kernel.
func FreeFrame(f *Frame) {
	if !initOnce.Done() {
		panicFn(errNotInitialized)
		return
	}

	switch {
	case f.Flags()&FlagAdmitted == 0:
		panicFn(errFrameNotAdmitted)
		return
	case f.Flags()&FlagAllocated == 0:
		panicFn(errDoubleFree)
		return
	}

	allocatorLock.Acquire()
	frameAllocator.FreeFrame(f)
	allocatorLock.Release()
}

// GetFrame returns the frame that contains the physical address pa or nil if
// the address is not managed by the allocator. The returned pointer is the
// same record that AllocFrame handed out for that frame.
func GetFrame(pa uintptr) *Frame {
	if !initOnce.Done() {
		panicFn(errNotInitialized)
		return nil
	}

	return frameAllocator.LookupFrame(pa)
}

// AllocatorStats returns a snapshot of the kernel frame allocator state.
func AllocatorStats() Stats {
	if !initOnce.Done() {
		return Stats{}
	}

	allocatorLock.Acquire()
	defer allocatorLock.Release()
	return frameAllocator.Stats()
}

// PrintRegions logs every managed region together with its free frames.
func PrintRegions() {
	if !initOnce.Done() {
		return
	}

	allocatorLock.Acquire()
	frameAllocator.printRegions()
	allocatorLock.Release()
}
