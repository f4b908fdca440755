// Package multiboot reads the information block that a multiboot2 compliant
// boot loader passes to the kernel. Only the tags needed to bring up physical
// memory management are decoded: the memory map and the boot command line.
//
// None of the functions in this package allocate memory.
package multiboot

import (
	"strings"
	"unsafe"

	"physframe/kernel/kfmt"
	"physframe/kernel/mem"
)

var infoData uintptr

type tagType uint32

// nolint
const (
	tagMbSectionEnd tagType = iota
	tagBootCmdLine
	tagBootLoaderName
	tagModules
	tagBasicMemoryInfo
	tagBiosBootDevice
	tagMemoryMap
)

// tagHeader describes the header that precedes each tag.
type tagHeader struct {
	tagType tagType

	// The size of the tag including the header but not including any
	// padding. Each tag starts at an 8-byte aligned address.
	size uint32
}

// mmapHeader describes the header of the memory map tag.
type mmapHeader struct {
	entrySize    uint32
	entryVersion uint32
}

// MemoryEntryType defines the type of a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved

	// MemAcpiReclaimable indicates a memory region that holds ACPI info that
	// can be reused by the OS.
	MemAcpiReclaimable

	// MemNvs indicates memory that must be preserved when hibernating.
	MemNvs

	// Any value >= memUnknown is reported as MemReserved.
	memUnknown
)

// MemoryMapEntry describes a memory region entry, namely its physical address,
// its length and its type.
type MemoryMapEntry struct {
	PhysAddress uint64
	Length      uint64
	Type        MemoryEntryType
}

// MemRegionVisitor is invoked by VisitMemRegions for each memory region
// provided by the boot loader. The visitor returns false to abort the scan.
type MemRegionVisitor func(*MemoryMapEntry) bool

// SetInfoPtr updates the internal multiboot information pointer to the given
// value. This function must be invoked before invoking any other function
// exported by this package.
func SetInfoPtr(ptr uintptr) {
	infoData = ptr
}

// VisitMemRegions invokes visitor for each memory region in the memory map
// that the boot loader provided. Entries with an unknown type are reported as
// MemReserved. A memory map that declares a zero entry size is ignored. The
// boot information itself is never modified.
func VisitMemRegions(visitor MemRegionVisitor) {
	curPtr, size := findTagByType(tagMemoryMap)
	if size == 0 {
		return
	}

	// curPtr points to the memory map header (2 dwords long)
	entrySize := uintptr((*mmapHeader)(unsafe.Pointer(curPtr)).entrySize)
	if entrySize == 0 {
		return
	}

	endPtr := curPtr + uintptr(size)
	curPtr += 8

	// A trailing entry that is cut short by the tag end is skipped.
	var entry MemoryMapEntry
	for ; curPtr+entrySize <= endPtr; curPtr += entrySize {
		entry = *(*MemoryMapEntry)(unsafe.Pointer(curPtr))
		if entry.Type == 0 || entry.Type >= memUnknown {
			entry.Type = MemReserved
		}

		if !visitor(&entry) {
			return
		}
	}
}

// MemoryRegions converts the boot memory map into dst and returns the number
// of entries written. Entries that do not fit in dst are dropped with a
// warning.
func MemoryRegions(dst []mem.MemoryRegion) int {
	var count int

	VisitMemRegions(func(entry *MemoryMapEntry) bool {
		if count == len(dst) {
			kfmt.Printf("[multiboot] warning: dropping memory map entries starting at 0x%x\n", entry.PhysAddress)
			return false
		}

		dst[count] = mem.MemoryRegion{
			Start:  uintptr(entry.PhysAddress),
			Length: mem.Size(entry.Length),
			Kind:   mem.MemoryRegionKind(entry.Type),
		}
		count++
		return true
	})

	return count
}

// CmdLine returns the raw boot command line. The returned string points into
// the boot information block.
func CmdLine() string {
	curPtr, size := findTagByType(tagBootCmdLine)
	if size == 0 {
		return ""
	}

	// The command line is a C-style NULL-terminated string
	cmdLine := unsafe.String((*byte)(unsafe.Pointer(curPtr)), int(size))
	if end := strings.IndexByte(cmdLine, 0); end != -1 {
		cmdLine = cmdLine[:end]
	}
	return cmdLine
}

// CmdLineValue looks up key in the boot command line. Arguments have the form
// "key=value"; a bare "key" argument has itself as its value. Arguments with
// more than one '=' are ignored.
func CmdLineValue(key string) (string, bool) {
	cmdLine := CmdLine()

	for len(cmdLine) != 0 {
		var arg string
		cmdLine = strings.TrimLeft(cmdLine, " \t")
		if end := strings.IndexAny(cmdLine, " \t"); end != -1 {
			arg, cmdLine = cmdLine[:end], cmdLine[end:]
		} else {
			arg, cmdLine = cmdLine, ""
		}

		switch strings.Count(arg, "=") {
		case 0: // nofoo
			if arg == key {
				return arg, true
			}
		case 1: // foo=bar
			sep := strings.IndexByte(arg, '=')
			if arg[:sep] == key {
				return arg[sep+1:], true
			}
		}
	}

	return "", false
}

// findTagByType scans the multiboot info data looking for the start of the
// specified type. It returns a pointer to the tag contents and the content
// length excluding the tag header, or (0, 0) if the tag is not present.
func findTagByType(tagType tagType) (uintptr, uint32) {
	var ptrTagHeader *tagHeader

	curPtr := infoData + 8
	for ptrTagHeader = (*tagHeader)(unsafe.Pointer(curPtr)); ptrTagHeader.tagType != tagMbSectionEnd; ptrTagHeader = (*tagHeader)(unsafe.Pointer(curPtr)) {
		if ptrTagHeader.tagType == tagType {
			return curPtr + 8, ptrTagHeader.size - 8
		}

		// Tags are aligned at 8-byte aligned addresses
		curPtr += uintptr(int32(ptrTagHeader.size+7) & ^7)
	}

	return 0, 0
}
