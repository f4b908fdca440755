package kmain

import (
	"physframe/kernel"
	"physframe/kernel/kfmt"
	"physframe/kernel/mem"
	"physframe/kernel/mem/pmm"
	"physframe/kernel/multiboot"
)

// maxMemoryMapEntries bounds the number of boot memory map entries that are
// handed to the frame allocator.
const maxMemoryMapEntries = 128

var (
	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

	// bootMemoryMap lives in static storage; nothing can be allocated
	// until the frame allocator is up.
	bootMemoryMap [maxMemoryMapEntries]mem.MemoryRegion
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. The rt0 code passes the address of the multiboot info
// payload provided by the boot loader and the virtual address at which all
// physical memory is mapped.
//
// The following boot command line arguments are recognized:
//
//	pmm.memmap   log the memory map reported by the boot loader
//	pmm.regions  log the regions managed by the frame allocator
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, directMapBase uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)
	mem.SetDirectMapBase(directMapBase)

	count := multiboot.MemoryRegions(bootMemoryMap[:])
	if _, enabled := multiboot.CmdLineValue("pmm.memmap"); enabled {
		printMemoryMap(bootMemoryMap[:count])
	}

	pmm.Init(bootMemoryMap[:count])
	if _, enabled := multiboot.CmdLineValue("pmm.regions"); enabled {
		pmm.PrintRegions()
	}

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	kfmt.Panic(errKmainReturned)
}

func printMemoryMap(memoryMap []mem.MemoryRegion) {
	var total uint64

	for _, mr := range memoryMap {
		kfmt.Printf("[kmain] memory map entry: [0x%16x - 0x%16x], size: %10d, type: %s\n",
			mr.Start, mr.End(), uint64(mr.Length), mr.Kind.String())

		if mr.Kind == mem.MemUsableRAM {
			total += uint64(mr.Length)
		}
	}

	kfmt.Printf("[kmain] available memory: %dKb\n", total/uint64(mem.Kb))
}
