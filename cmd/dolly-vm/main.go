// Command dolly-vm is the batch emulator: it loads a DOLLY object, runs
// it from its `_start` TEXT section to completion, and optionally prints
// the CPU's final debug state.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dna65/dolly6502/host"
)

func main() {
	debug := flag.Bool("d", false, "print CPU debug state at halt")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: dolly-vm [-d] <input.bin>")
		os.Exit(1)
	}

	h := host.New()
	if err := h.RunFile(flag.Arg(0), *debug); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
