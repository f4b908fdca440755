package mem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeToPages(t *testing.T) {
	specs := []struct {
		size     Size
		expPages uint64
	}{
		{1023 * Kb, 256},
		{1024 * Kb, 256},
		{1 * Byte, 1},
		{0, 0},
		{2 * Mb, 512},
	}

	for specIndex, spec := range specs {
		assert.Equal(t, spec.expPages, spec.size.Pages(), "[spec %d]", specIndex)
	}
}

func TestLayout(t *testing.T) {
	specs := []struct {
		layout Layout
		valid  bool
	}{
		{PageLayout(1), true},
		{Layout{Size: 100, Align: 8}, true},
		{Layout{Size: 0, Align: 8}, false},
		{Layout{Size: 100, Align: 0}, false},
		{Layout{Size: 100, Align: 12}, false},
	}

	for specIndex, spec := range specs {
		assert.Equal(t, spec.valid, spec.layout.Valid(), "[spec %d]", specIndex)
	}

	require.Equal(t, Layout{Size: 4 * PageSize, Align: PageSize}, PageLayout(4))
}

func TestAlignment(t *testing.T) {
	specs := []struct {
		addr     uintptr
		align    Size
		expUp    uintptr
		expDown  uintptr
		expAlign bool
	}{
		{0, PageSize, 0, 0, true},
		{1, PageSize, 0x1000, 0, false},
		{0x1000, PageSize, 0x1000, 0x1000, true},
		{0x1fff, PageSize, 0x2000, 0x1000, false},
		{0x200123, 2 * Mb, 0x400000, 0x200000, false},
	}

	for specIndex, spec := range specs {
		assert.Equal(t, spec.expUp, AlignUp(spec.addr, spec.align), "[spec %d] AlignUp", specIndex)
		assert.Equal(t, spec.expDown, AlignDown(spec.addr, spec.align), "[spec %d] AlignDown", specIndex)
		assert.Equal(t, spec.expAlign, IsAligned(spec.addr, spec.align), "[spec %d] IsAligned", specIndex)
	}
}

func TestMemsetAndMemcopy(t *testing.T) {
	// memset with a 0 size should be a no-op
	Memset(uintptr(0), 0x00, 0)
	Memcopy(0, 0, 0)

	for pageCount := uint32(1); pageCount <= 6; pageCount++ {
		buf := make([]byte, PageSize<<pageCount)
		addr := uintptr(unsafe.Pointer(&buf[0]))

		Memset(addr, 0xFE, Size(len(buf)))
		for i, b := range buf {
			if b != 0xFE {
				t.Fatalf("[block with %d pages] expected byte %d to be 0xfe; got 0x%x", pageCount, i, b)
			}
		}
		require.False(t, IsZero(addr, Size(len(buf))))

		dst := make([]byte, len(buf))
		Memcopy(addr, uintptr(unsafe.Pointer(&dst[0])), Size(len(buf)))
		require.Equal(t, buf, dst)

		Memset(addr, 0, Size(len(buf)))
		require.True(t, IsZero(addr, Size(len(buf))))
	}
}

func TestDirectMap(t *testing.T) {
	defer SetDirectMapBase(0)

	SetDirectMapBase(0xffff800000000000)
	require.Equal(t, uintptr(0xffff800000001000), PhysToVirt(0x1000))
	require.Equal(t, uintptr(0x1000), VirtToPhys(0xffff800000001000))

	// A base below the physical address still round-trips.
	virt, phys := uintptr(0x1000), uintptr(0x100000)
	SetDirectMapBase(virt - phys)
	require.Equal(t, uintptr(0x1000), PhysToVirt(0x100000))
	require.Equal(t, uintptr(0x100000), VirtToPhys(0x1000))
}

func TestMemoryRegion(t *testing.T) {
	r := MemoryRegion{Start: 0x100000, Length: 4 * Mb, Kind: MemUsableRAM}
	require.Equal(t, uintptr(0x500000), r.End())

	specs := []struct {
		kind MemoryRegionKind
		exp  string
	}{
		{MemUsableRAM, "available"},
		{MemReserved, "reserved"},
		{MemACPIReclaimable, "ACPI (reclaimable)"},
		{MemNVS, "NVS"},
		{MemoryRegionKind(0), "unknown"},
	}
	for specIndex, spec := range specs {
		assert.Equal(t, spec.exp, spec.kind.String(), "[spec %d]", specIndex)
	}
}
