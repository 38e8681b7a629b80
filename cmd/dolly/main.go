// Command dolly is the interactive shell: a REPL around the 6502 host
// environment, supporting inline assembly, loading and running DOLLY
// objects, breakpoints, and memory/register inspection.
package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/beevik/term"

	"github.com/dna65/dolly6502/host"
)

func main() {
	h := host.New()

	// Run commands contained in command-line files before starting the
	// interactive REPL, matching the reference shell's non-interactive
	// script-argument behavior.
	args := os.Args[1:]
	for _, filename := range args {
		file, err := os.Open(filename)
		if err != nil {
			exitOnError(err)
		}
		h.RunCommands(file, os.Stdout, false)
		file.Close()
	}

	// Break on Ctrl-C instead of letting the terminal kill the process,
	// so a running emulated program can be interrupted.
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRawInput(fd)
		if err == nil {
			defer term.Restore(fd, oldState)
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go handleInterrupt(h, c)

	h.RunCommands(os.Stdin, os.Stdout, true)
}

func handleInterrupt(h *host.Host, c chan os.Signal) {
	for {
		<-c
		h.Break()
	}
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
