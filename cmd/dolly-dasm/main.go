// Command dolly-dasm is the batch disassembler: it reads a DOLLY object
// file and prints a listing of its TEXT sections to stdout. DATA and
// STRING sections are listed by name and size only, matching the
// reference disassembler's behavior of skipping non-code payloads.
package main

import (
	"fmt"
	"os"

	"github.com/dna65/dolly6502/disasm"
	"github.com/dna65/dolly6502/object"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: dolly-dasm <input.bin>")
		os.Exit(1)
	}

	file, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	exe, err := object.ReadFrom(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	for _, s := range exe.Sections {
		fmt.Printf("== Section: %s ==\n", s.Name)
		switch s.Type {
		case object.SectionText:
			records := disasm.Disassemble(exe.SectionData(s))
			if err := disasm.Listing(os.Stdout, records, uint16(s.LoadAddress)); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
		default:
			fmt.Printf("%s (%d bytes)\n", s.Type, s.Size)
		}
	}
}
