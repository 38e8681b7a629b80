package host

import (
	"bufio"
	"bytes"
	"os"
	"testing"

	"github.com/dna65/dolly6502/object"
)

// buildPrintProgram assembles the scenario 5 program directly against the
// object format: a _start text section that prints a NUL-terminated
// string via the $FE/$FF zero-page pointer syscall, then halts.
func buildPrintProgram(t *testing.T) string {
	t.Helper()

	msg := uint16(0x0620)
	code := []byte{
		0xA9, 0x01, // LDA #$01       (syscall 1: print)
		0xA2, byte(msg), // LDX #<msg
		0x86, 0xFE, // STX $FE
		0xA2, byte(msg >> 8), // LDX #>msg
		0x86, 0xFF, // STX $FF
		0x00, 0x00, // BRK (print)
		0xA9, 0x00, // LDA #$00       (syscall 0: exit)
		0x00, 0x00, // BRK (exit)
	}

	exe := object.New()
	exe.AddSection("_start", object.SectionText, 0x0600, code)
	exe.AddSection("d", object.SectionString, uint32(msg), append([]byte("hi"), 0))

	dir := t.TempDir()
	path := dir + "/print.bin"
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := exe.WriteTo(f); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return path
}

func TestRunFilePrintsViaBrkSyscall(t *testing.T) {
	path := buildPrintProgram(t)

	var out bytes.Buffer
	h := New()
	h.output = bufio.NewWriter(&out)

	if err := h.RunFile(path, false); err != nil {
		t.Fatalf("RunFile: %v", err)
	}

	if out.String() != "hi" {
		t.Errorf("output = %q, want %q", out.String(), "hi")
	}
}

func TestRunFileRefusesMissingStartSection(t *testing.T) {
	exe := object.New()
	exe.AddSection("main", object.SectionText, 0x0600, []byte{0xEA, 0x00})

	dir := t.TempDir()
	path := dir + "/nostart.bin"
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := exe.WriteTo(f); err != nil {
		t.Fatal(err)
	}
	f.Close()

	h := New()
	if err := h.RunFile(path, false); err == nil {
		t.Error("expected an error for a missing _start section, got nil")
	}
}

func TestRunFileExitSyscallHalts(t *testing.T) {
	code := []byte{0xA9, 0x00, 0x00} // LDA #$00; BRK (syscall 0: exit)
	exe := object.New()
	exe.AddSection("_start", object.SectionText, 0x0600, code)

	dir := t.TempDir()
	path := dir + "/exit.bin"
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := exe.WriteTo(f); err != nil {
		t.Fatal(err)
	}
	f.Close()

	h := New()
	if err := h.RunFile(path, false); err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if h.cpu.Reg.A != 0 {
		t.Errorf("A = %#x, want 0", h.cpu.Reg.A)
	}
}
