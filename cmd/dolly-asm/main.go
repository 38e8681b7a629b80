// Command dolly-asm is the batch cross-assembler: it reads a single 6502
// assembly source file and writes a DOLLY object file.
package main

import (
	"fmt"
	"os"

	"github.com/dna65/dolly6502/asmx"
)

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintln(os.Stderr, "usage: dolly-asm <input.s> [output.bin]")
		os.Exit(1)
	}

	input := os.Args[1]
	output := "out.bin"
	if len(os.Args) == 3 {
		output = os.Args[2]
	}

	src, err := os.Open(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	exe, _, errs := asmx.Assemble(input, src)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		fmt.Printf("%d errors generated.\n", len(errs))
		os.Exit(1)
	}

	out, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	if _, err := exe.WriteTo(out); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Assembled executable %s\n", output)
}
