package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"physframe/kernel/hal/ram"
	"physframe/kernel/kfmt"
	"physframe/kernel/mem"
	"physframe/kernel/mem/pmm"
	ksync "physframe/kernel/sync"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// firmwareHole is the amount of reserved memory placed in front of every
// usable region except the first.
const firmwareHole = 64 * mem.Kb

// machineConfig describes the emulated machine.
type machineConfig struct {
	base    uint64
	ram     sizeValue
	regions int
	verbose bool
}

func newRootCmd() *cobra.Command {
	cfg := &machineConfig{
		base:    0x100000,
		ram:     sizeValue(64 * mem.Mb),
		regions: 1,
	}

	cmd := &cobra.Command{
		Use:   "pmmsim",
		Short: "Run the physical frame allocator against emulated RAM",
		Long: `pmmsim maps a window of host memory as emulated physical RAM, builds a
boot memory map for it and initializes the kernel frame allocator on top.

Example:
  pmmsim layout --ram 256M --regions 3
  pmmsim stress --ops 100000 --workers 4`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.Uint64Var(&cfg.base, "base", cfg.base, "Physical address of the first emulated byte")
	flags.Var(&cfg.ram, "ram", "Amount of emulated RAM (e.g. 64M, 2G)")
	flags.IntVar(&cfg.regions, "regions", cfg.regions, "Number of usable regions the RAM is split into")
	flags.BoolVarP(&cfg.verbose, "verbose", "v", false, "Print allocator log messages")

	cmd.AddCommand(newLayoutCmd(cfg), newStressCmd(cfg))
	return cmd
}

// memoryMap splits the emulated RAM into cfg.regions usable regions. Every
// region after the first is preceded by a reserved hole.
func (cfg *machineConfig) memoryMap() ([]mem.MemoryRegion, error) {
	if cfg.regions < 1 || cfg.regions > pmm.MaxRegions {
		return nil, fmt.Errorf("regions must be between 1 and %d", pmm.MaxRegions)
	}

	chunk := mem.Size(mem.AlignDown(uintptr(cfg.ram)/uintptr(cfg.regions), mem.PageSize))
	if chunk <= 2*firmwareHole {
		return nil, fmt.Errorf("%s of RAM is too small for %d regions", cfg.ram.String(), cfg.regions)
	}

	var memoryMap []mem.MemoryRegion
	for i := 0; i < cfg.regions; i++ {
		start, length := uintptr(cfg.base)+uintptr(i)*uintptr(chunk), chunk
		if i > 0 {
			memoryMap = append(memoryMap, mem.MemoryRegion{Start: start, Length: firmwareHole, Kind: mem.MemReserved})
			start += uintptr(firmwareHole)
			length -= firmwareHole
		}
		memoryMap = append(memoryMap, mem.MemoryRegion{Start: start, Length: length, Kind: mem.MemUsableRAM})
	}

	return memoryMap, nil
}

// boot maps the emulated RAM and initializes the kernel frame allocator. In
// verbose mode the allocator log is written to w with a prefix. A kernel
// panic terminates the process.
func (cfg *machineConfig) boot(w io.Writer) (*ram.Bank, []mem.MemoryRegion, error) {
	memoryMap, err := cfg.memoryMap()
	if err != nil {
		return nil, nil, err
	}

	bank, err := ram.Map(uintptr(cfg.base), mem.Size(cfg.ram))
	if err != nil {
		return nil, nil, err
	}

	if cfg.verbose {
		kfmt.SetOutputSink(&kfmt.PrefixWriter{Sink: w, Prefix: []byte("kernel| ")})
	} else {
		kfmt.SetOutputSink(io.Discard)
	}
	ksync.SetYieldFn(runtime.Gosched)
	kfmt.SetHaltFn(func() {
		fmt.Fprintln(os.Stderr, "pmmsim: allocator halted")
		os.Exit(2)
	})

	pmm.Init(memoryMap)
	return bank, memoryMap, nil
}

func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}

// humanSize renders size with a binary unit suffix.
func humanSize(p *message.Printer, size mem.Size) string {
	const units = "KMGTPE"

	if size < mem.Kb {
		return p.Sprintf("%d B", uint64(size))
	}

	div, exp := mem.Kb, 0
	for n := size / mem.Kb; n >= mem.Kb && exp < len(units)-1; n /= mem.Kb {
		div *= mem.Kb
		exp++
	}
	return p.Sprintf("%.1f %ciB", float64(size)/float64(div), units[exp])
}

func printStats(p *message.Printer, w io.Writer, st pmm.Stats) {
	p.Fprintf(w, "Allocator:\n")
	p.Fprintf(w, "  regions:        %d\n", st.Regions)
	p.Fprintf(w, "  total pages:    %d (%s)\n", st.TotalPages, humanSize(p, mem.Size(st.TotalPages)*mem.PageSize))
	p.Fprintf(w, "  metadata pages: %d (%s)\n", st.MetadataPages, humanSize(p, mem.Size(st.MetadataPages)*mem.PageSize))
	p.Fprintf(w, "  free pages:     %d (%s)\n", st.FreePages, humanSize(p, mem.Size(st.FreePages)*mem.PageSize))
	for level, layout := range pmm.LevelLayouts {
		p.Fprintf(w, "  %-8s frames: %d free, %d zeroed\n",
			humanSize(p, layout.Size), st.FreeFrames[level], st.ZeroedFrames[level])
	}
}
