package mem

// MemoryRegionKind classifies a physical memory range reported at boot.
type MemoryRegionKind uint32

const (
	// MemUsableRAM marks memory that the kernel may allocate.
	MemUsableRAM MemoryRegionKind = iota + 1

	// MemReserved marks memory that must not be touched.
	MemReserved

	// MemACPIReclaimable marks memory holding ACPI tables that can be
	// reclaimed once they have been parsed.
	MemACPIReclaimable

	// MemNVS marks memory that must be preserved across hibernation.
	MemNVS
)

// String implements fmt.Stringer for MemoryRegionKind.
func (k MemoryRegionKind) String() string {
	switch k {
	case MemUsableRAM:
		return "available"
	case MemReserved:
		return "reserved"
	case MemACPIReclaimable:
		return "ACPI (reclaimable)"
	case MemNVS:
		return "NVS"
	default:
		return "unknown"
	}
}

// MemoryRegion describes a contiguous physical memory range discovered at
// boot.
type MemoryRegion struct {
	Start  uintptr
	Length Size
	Kind   MemoryRegionKind
}

// End returns the first physical address past the region.
func (r MemoryRegion) End() uintptr {
	return r.Start + uintptr(r.Length)
}
