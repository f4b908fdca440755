package mem

// directMapBase is the virtual address at which physical address 0 appears.
// The kernel maps all physical memory at a fixed offset; the value is
// installed once by the boot code (or a host emulation of physical RAM).
var directMapBase uintptr

// SetDirectMapBase installs the virtual address that physical address 0 is
// mapped to. Wrap-around is allowed, so a RAM emulation can map a physical
// range that starts above its host virtual address.
func SetDirectMapBase(virtBase uintptr) {
	directMapBase = virtBase
}

// PhysToVirt returns the virtual address through which the physical address
// pa can be accessed.
func PhysToVirt(pa uintptr) uintptr {
	return directMapBase + pa
}

// VirtToPhys is the inverse of PhysToVirt for addresses inside the direct map.
func VirtToPhys(va uintptr) uintptr {
	return va - directMapBase
}
