package main

import (
	"io"

	"physframe/kernel/kfmt"
	"physframe/kernel/mem"
	"physframe/kernel/mem/pmm"

	"github.com/spf13/cobra"
)

func newLayoutCmd(cfg *machineConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Show the regions and frames built for the emulated memory map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLayout(cfg, cmd.OutOrStdout())
		},
	}
}

func runLayout(cfg *machineConfig, w io.Writer) error {
	bank, memoryMap, err := cfg.boot(w)
	if err != nil {
		return err
	}
	defer bank.Close()

	p := newPrinter()
	p.Fprintf(w, "Memory map:\n")
	for _, mr := range memoryMap {
		p.Fprintf(w, "  [0x%016x - 0x%016x] %-10s %s\n", mr.Start, mr.End(), mr.Kind.String(), humanSize(p, mr.Length))
	}
	p.Fprintf(w, "\nRegions:\n")

	kfmt.SetOutputSink(w)
	pmm.PrintRegions()
	p.Fprintf(w, "\n")

	printStats(p, w, pmm.AllocatorStats())
	p.Fprintf(w, "  usable:         %s of %s\n",
		humanSize(p, mem.Size(pmm.AllocatorStats().FreePages)*mem.PageSize), humanSize(p, bank.Size()))
	return nil
}
