package kmain

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unsafe"

	"physframe/kernel/hal/ram"
	"physframe/kernel/kfmt"
	"physframe/kernel/mem"
	"physframe/kernel/mem/pmm"

	"github.com/stretchr/testify/require"
)

// infoBuilder assembles a multiboot information block.
type infoBuilder struct {
	buf bytes.Buffer
}

func (b *infoBuilder) tag(tagType uint32, payload []byte) {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], tagType)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(8+len(payload)))
	b.buf.Write(hdr[:])
	b.buf.Write(payload)
	for b.buf.Len()%8 != 0 {
		b.buf.WriteByte(0)
	}
}

func (b *infoBuilder) memoryMap(entries ...[3]uint64) {
	var payload bytes.Buffer
	_ = binary.Write(&payload, binary.LittleEndian, [2]uint32{24, 0})
	for _, entry := range entries {
		_ = binary.Write(&payload, binary.LittleEndian, struct {
			Addr, Len uint64
			Type      uint32
			Reserved  uint32
		}{entry[0], entry[1], uint32(entry[2]), 0})
	}
	b.tag(6, payload.Bytes())
}

func (b *infoBuilder) bytes() []byte {
	b.tag(0, nil)
	data := append(make([]byte, 8), b.buf.Bytes()...)
	binary.LittleEndian.PutUint32(data, uint32(len(data)))
	return data
}

func TestKmain(t *testing.T) {
	bank, err := ram.Map(0x100000, 8*mem.Mb)
	require.NoError(t, err)
	defer func() { require.NoError(t, bank.Close()) }()

	var ib infoBuilder
	ib.tag(1, []byte("pmm.memmap pmm.regions\x00"))
	ib.memoryMap(
		[3]uint64{0, 0x9fc00, 2},
		[3]uint64{0x9fc00, 0x400, 2},
		[3]uint64{0x100000, uint64(8 * mem.Mb), 1},
		[3]uint64{0xfffc0000, 0x40000, 2},
	)
	info := ib.bytes()

	var out bytes.Buffer
	kfmt.SetOutputSink(&out)
	defer kfmt.SetOutputSink(nil)

	halted := false
	kfmt.SetHaltFn(func() { halted = true })
	defer kfmt.SetHaltFn(nil)

	Kmain(uintptr(unsafe.Pointer(&info[0])), mem.PhysToVirt(0))

	require.True(t, halted)
	require.Equal(t, 1, pmm.AllocatorStats().Regions)

	logged := out.String()
	require.Contains(t, logged, "[kmain] memory map entry: [0x0000000000100000 - 0x0000000000900000], size:    8388608, type: available")
	require.Contains(t, logged, "[kmain] memory map entry: [0x00000000fffc0000 - 0x0000000100000000], size:     262144, type: reserved")
	require.Contains(t, logged, "[kmain] available memory: 8192Kb")
	require.Contains(t, logged, "[pmm] region 0: [0x0000000000110000 - 0x0000000000900000]")
	require.Contains(t, logged, "[kmain] unrecoverable error: Kmain returned")

	f, kerr := pmm.AllocFrame(pmm.FlagZeroed, mem.PageLayout(1))
	require.Nil(t, kerr)
	require.Same(t, f, pmm.GetFrame(f.Address()))
	pmm.FreeFrame(f)
}
