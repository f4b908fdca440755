package main

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"physframe/kernel"
	"physframe/kernel/mem"
	"physframe/kernel/mem/pmm"

	"github.com/spf13/cobra"
)

// dirtyBytes is the number of bytes written to every allocated frame so that
// stale zeroed marks are detected.
const dirtyBytes = 64

type stressOptions struct {
	ops            int
	maxOutstanding int
	zeroedEvery    int
	zeroOnFree     int
	workers        int
	seed           int64
	frameSize      sizeValue
}

// stressResult aggregates the counters of all workers.
type stressResult struct {
	allocs, frees    uint64
	zeroedRequests   uint64
	explicitZeroes   uint64
	outOfMemory      uint64
	maxOutstanding   int
	elapsed          time.Duration
	leakedFreePages  int64
	finalStats       pmm.Stats
	initialFreePages uint64
}

func newStressCmd(cfg *machineConfig) *cobra.Command {
	opts := &stressOptions{
		ops:            100000,
		maxOutstanding: 1000,
		zeroedEvery:    3,
		zeroOnFree:     5,
		workers:        1,
		seed:           1,
		frameSize:      sizeValue(mem.PageSize),
	}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a randomized allocate/free workload",
		Long: `The stress command runs a random sequence of allocations and frees
against the frame allocator and checks that no frame is handed out twice,
that zeroed requests return zeroed memory and that every page is accounted
for once all frames have been returned.

Example:
  pmmsim stress
  pmmsim stress --workers 8 --ops 1000000 --ram 1G
  pmmsim stress --frame-size 2M --max-outstanding 16`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStress(cfg, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.ops, "ops", opts.ops, "Operations per worker")
	flags.IntVar(&opts.maxOutstanding, "max-outstanding", opts.maxOutstanding, "Maximum frames held by a worker")
	flags.IntVar(&opts.zeroedEvery, "zeroed-every", opts.zeroedEvery, "Request a zeroed frame once every N allocations on average (0 disables)")
	flags.IntVar(&opts.zeroOnFree, "zero-on-free", opts.zeroOnFree, "Zero a frame before freeing it once every N frees on average (0 disables)")
	flags.IntVar(&opts.workers, "workers", opts.workers, "Number of concurrent workers")
	flags.Int64Var(&opts.seed, "seed", opts.seed, "Random seed")
	flags.Var(&opts.frameSize, "frame-size", "Size of the requested frames (4K, 2M or 1G)")
	return cmd
}

func (opts *stressOptions) validate() error {
	switch {
	case opts.ops < 0:
		return fmt.Errorf("ops must not be negative")
	case opts.maxOutstanding < 1:
		return fmt.Errorf("max-outstanding must be at least 1")
	case opts.workers < 1:
		return fmt.Errorf("workers must be at least 1")
	case opts.zeroedEvery < 0 || opts.zeroOnFree < 0:
		return fmt.Errorf("zeroed-every and zero-on-free must not be negative")
	}

	for _, layout := range pmm.LevelLayouts {
		if layout.Size == mem.Size(opts.frameSize) {
			return nil
		}
	}
	return fmt.Errorf("unsupported frame size %s", opts.frameSize.String())
}

func runStress(cfg *machineConfig, opts *stressOptions, w io.Writer) error {
	if err := opts.validate(); err != nil {
		return err
	}

	bank, _, err := cfg.boot(w)
	if err != nil {
		return err
	}
	defer bank.Close()

	res, err := stress(opts)
	if err != nil {
		return err
	}

	p := newPrinter()
	p.Fprintf(w, "Workload:\n")
	p.Fprintf(w, "  workers:          %d\n", opts.workers)
	p.Fprintf(w, "  frame size:       %s\n", humanSize(p, mem.Size(opts.frameSize)))
	p.Fprintf(w, "  allocations:      %d (%d zeroed)\n", res.allocs, res.zeroedRequests)
	p.Fprintf(w, "  frees:            %d (%d zeroed first)\n", res.frees, res.explicitZeroes)
	p.Fprintf(w, "  out of memory:    %d\n", res.outOfMemory)
	p.Fprintf(w, "  peak outstanding: %d\n", res.maxOutstanding)
	p.Fprintf(w, "  elapsed:          %s (%.0f ops/s)\n\n", res.elapsed.Round(time.Millisecond),
		float64(res.allocs+res.frees)/res.elapsed.Seconds())
	printStats(p, w, res.finalStats)

	if res.leakedFreePages != 0 {
		return fmt.Errorf("free page count changed by %d after returning all frames", res.leakedFreePages)
	}
	return nil
}

// stress runs the workload against the kernel frame allocator, which must
// already be initialized.
func stress(opts *stressOptions) (*stressResult, error) {
	var (
		wg      sync.WaitGroup
		owners  sync.Map
		results = make([]stressResult, opts.workers)
		errs    = make([]error, opts.workers)
		res     = &stressResult{initialFreePages: pmm.AllocatorStats().FreePages}
		layout  = mem.Layout{Size: mem.Size(opts.frameSize), Align: mem.Size(opts.frameSize)}
		start   = time.Now()
	)

	for worker := 0; worker < opts.workers; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(opts.seed + int64(worker)))
			errs[worker] = runWorker(rng, opts, layout, &owners, &results[worker])
		}(worker)
	}
	wg.Wait()
	res.elapsed = time.Since(start)

	for worker := range results {
		if errs[worker] != nil {
			return nil, workerError(worker, errs[worker])
		}

		wr := &results[worker]
		res.allocs += wr.allocs
		res.frees += wr.frees
		res.zeroedRequests += wr.zeroedRequests
		res.explicitZeroes += wr.explicitZeroes
		res.outOfMemory += wr.outOfMemory
		if wr.maxOutstanding > res.maxOutstanding {
			res.maxOutstanding = wr.maxOutstanding
		}
	}

	res.finalStats = pmm.AllocatorStats()
	res.leakedFreePages = int64(res.finalStats.FreePages) - int64(res.initialFreePages)
	return res, nil
}

// workerError tags err with the failing worker and, for errors raised by the
// kernel, the subsystem that raised them.
func workerError(worker int, err error) error {
	if module := kernel.ModuleOf(err); module != "" {
		return fmt.Errorf("worker %d: [%s] %w", worker, module, err)
	}
	return fmt.Errorf("worker %d: %w", worker, err)
}

func runWorker(rng *rand.Rand, opts *stressOptions, layout mem.Layout, owners *sync.Map, res *stressResult) error {
	var outstanding []*pmm.Frame

	release := func() {
		last := len(outstanding) - 1
		f := outstanding[last]
		outstanding = outstanding[:last]

		if opts.zeroOnFree > 0 && rng.Intn(opts.zeroOnFree) == 0 {
			f.Zero()
			res.explicitZeroes++
		}

		owners.Delete(f.Address())
		pmm.FreeFrame(f)
		res.frees++
	}
	defer func() {
		for len(outstanding) > 0 {
			release()
		}
	}()

	for op := 0; op < opts.ops; op++ {
		if len(outstanding) == opts.maxOutstanding || (len(outstanding) > 0 && rng.Intn(2) == 0) {
			release()
			continue
		}

		var flags pmm.FrameFlag
		if opts.zeroedEvery > 0 && rng.Intn(opts.zeroedEvery) == 0 {
			flags = pmm.FlagZeroed
			res.zeroedRequests++
		}

		f, err := pmm.AllocFrame(flags, layout)
		if err == pmm.ErrOutOfMemory {
			res.outOfMemory++
			if len(outstanding) > 0 {
				release()
			}
			continue
		} else if err != nil {
			return err
		}

		if _, taken := owners.LoadOrStore(f.Address(), f); taken {
			return fmt.Errorf("op %d: frame 0x%x handed out twice", op, f.Address())
		}
		outstanding = append(outstanding, f)
		res.allocs++

		addr := mem.PhysToVirt(f.Address())
		if flags&pmm.FlagZeroed != 0 && !mem.IsZero(addr, f.Size()) {
			return fmt.Errorf("op %d: zeroed frame 0x%x contains data", op, f.Address())
		}
		mem.Memset(addr, 0xff, dirtyBytes)

		if len(outstanding) > res.maxOutstanding {
			res.maxOutstanding = len(outstanding)
		}
	}

	return nil
}
