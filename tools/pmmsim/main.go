// Command pmmsim runs the physical frame allocator against emulated RAM on
// the host. It can print the region layout that the allocator builds for a
// memory map and run randomized allocation workloads against it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
