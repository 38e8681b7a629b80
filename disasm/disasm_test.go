package disasm

import (
	"strings"
	"testing"

	"github.com/dna65/dolly6502/isa"
)

func TestDisassembleAccumulatorModeEmitsBareA(t *testing.T) {
	// ASL A: opcode $0A, accumulator addressing.
	records := Disassemble([]byte{0x0A})
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r.Opcode.Mode != isa.Accumulator {
		t.Fatalf("mode = %v, want Accumulator", r.Opcode.Mode)
	}
	if got := operandText(r); got != "A" {
		t.Errorf("operandText = %q, want %q", got, "A")
	}

	var buf strings.Builder
	if err := Listing(&buf, records, 0x0600); err != nil {
		t.Fatal(err)
	}
	want := "0x0600\t\tASL A\n"
	if buf.String() != want {
		t.Errorf("listing = %q, want %q", buf.String(), want)
	}
}

func TestDisassembleImplicitModeHasNoOperand(t *testing.T) {
	records := Disassemble([]byte{0xFA}) // NOP (this ISA resolves NOP to $FA, not the real 6502's $EA)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	var buf strings.Builder
	Listing(&buf, records, 0)
	if buf.String() != "0x0000\t\tNOP\n" {
		t.Errorf("listing = %q", buf.String())
	}
}

func TestDisassembleImmediateOperand(t *testing.T) {
	records := Disassemble([]byte{0xA9, 0x42}) // LDA #$42
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].OperandLen != 1 || records[0].Operand != 0x42 {
		t.Errorf("operand = %v, want 0x42 (len 1)", records[0])
	}
}

func TestDisassembleAbsoluteOperandLittleEndian(t *testing.T) {
	records := Disassemble([]byte{0x4C, 0x00, 0x06}) // JMP $0600
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Operand != 0x0600 {
		t.Errorf("operand = $%04x, want $0600", records[0].Operand)
	}
}

func TestDisassembleBranchSynthesizesLabel(t *testing.T) {
	// loop: DEX ($DA, this ISA's resolution rather than the real 6502's $CA) ; BNE loop ($D0 $FD -> -3)
	records := Disassemble([]byte{0xDA, 0xD0, 0xFD})
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Label != "LBL_0" {
		t.Errorf("target label = %q, want LBL_0", records[0].Label)
	}
	if records[1].BranchLabel != "LBL_0" {
		t.Errorf("branch label = %q, want LBL_0", records[1].BranchLabel)
	}

	var buf strings.Builder
	Listing(&buf, records, 0x0600)
	want := "0x0600\tLBL_0:\tDEX\n0x0601\t\tBNE LBL_0\n"
	if buf.String() != want {
		t.Errorf("listing =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestDisassembleBranchOutsidePayloadFallsBackToAddress(t *testing.T) {
	// A lone BNE with no target byte in this payload: no label is synthesized.
	records := Disassemble([]byte{0xD0, 0x05})
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].BranchLabel != "" {
		t.Errorf("branch label = %q, want none (target not in payload)", records[0].BranchLabel)
	}
	if got := operandText(records[0]); got != "$0007" {
		t.Errorf("operandText = %q, want $0007", got)
	}
}

func TestDisassembleInvalidByteAdvancesOne(t *testing.T) {
	// $12 decodes to the ASL family with an undocumented addressing-mode
	// cell, landing on the invalid sentinel.
	records := Disassemble([]byte{0x12, 0xEA})
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Opcode.Valid() {
		t.Error("expected first record to be invalid")
	}
	if records[1].Offset != 1 {
		t.Errorf("second record offset = %d, want 1 (invalid byte advances by exactly one)", records[1].Offset)
	}
}

func TestDisassembleIndexedIndirectModes(t *testing.T) {
	// LDA ($10,X) -> $A1, LDA ($10),Y -> $B1
	records := Disassemble([]byte{0xA1, 0x10, 0xB1, 0x10})
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Opcode.Mode != isa.IndirectX {
		t.Errorf("mode = %v, want IndirectX", records[0].Opcode.Mode)
	}
	if records[1].Opcode.Mode != isa.IndirectY {
		t.Errorf("mode = %v, want IndirectY", records[1].Opcode.Mode)
	}
	if got := operandText(records[0]); got != "($10,X)" {
		t.Errorf("operandText = %q, want ($10,X)", got)
	}
	if got := operandText(records[1]); got != "($10),Y" {
		t.Errorf("operandText = %q, want ($10),Y", got)
	}
}
