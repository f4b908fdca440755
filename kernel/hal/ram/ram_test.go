package ram

import (
	"testing"

	"physframe/kernel/mem"

	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	bank, err := Map(0x100000, 4*mem.Mb)
	require.NoError(t, err)
	defer func() { require.NoError(t, bank.Close()) }()

	require.Equal(t, uintptr(0x100000), bank.PhysBase())
	require.Equal(t, 4*mem.Mb, bank.Size())

	// Writes through the direct map must be visible through the bank.
	mem.Memset(mem.PhysToVirt(0x101000), 0xAB, mem.PageSize)
	page := bank.Bytes(0x101000, mem.PageSize)
	for i, b := range page {
		if b != 0xAB {
			t.Fatalf("expected byte %d to be 0xab; got 0x%x", i, b)
		}
	}

	// Fresh anonymous memory reads as zero.
	require.True(t, mem.IsZero(mem.PhysToVirt(0x100000), mem.PageSize))
}

func TestContains(t *testing.T) {
	bank, err := Map(0x200000, 2*mem.Mb)
	require.NoError(t, err)
	defer func() { require.NoError(t, bank.Close()) }()

	specs := []struct {
		pa   uintptr
		size mem.Size
		exp  bool
	}{
		{0x200000, mem.PageSize, true},
		{0x3ff000, mem.PageSize, true},
		{0x3ff000, 2 * mem.PageSize, false},
		{0x1ff000, mem.PageSize, false},
		{0x400000, 0, true},
	}

	for specIndex, spec := range specs {
		require.Equal(t, spec.exp, bank.Contains(spec.pa, spec.size), "[spec %d]", specIndex)
	}

	require.Panics(t, func() { bank.Bytes(0x400000, mem.PageSize) })
}

func TestMapErrors(t *testing.T) {
	specs := []struct {
		base uintptr
		size mem.Size
	}{
		{0x1000, 0},
		{0x1001, mem.PageSize},
		{0x1000, mem.PageSize + 1},
	}

	for specIndex, spec := range specs {
		_, err := Map(spec.base, spec.size)
		require.Error(t, err, "[spec %d]", specIndex)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	bank, err := Map(0, mem.PageSize)
	require.NoError(t, err)
	require.NoError(t, bank.Close())
	require.NoError(t, bank.Close())
}
