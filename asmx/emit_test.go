package asmx

import (
	"testing"

	"github.com/dna65/dolly6502/isa"

	"github.com/dna65/dolly6502/object"
)

func emitSrc(t *testing.T, src string) *object.Executable {
	t.Helper()
	toks, errs := Lex("t.s", []byte(src))
	if len(errs) != 0 {
		t.Fatalf("lex errors: %v", errs)
	}
	tree, errs := Parse("t.s", toks)
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	if errs := Analyze("t.s", tree); len(errs) != 0 {
		t.Fatalf("analyze errors: %v", errs)
	}
	exe, errs := Emit("t.s", tree)
	if len(errs) != 0 {
		t.Fatalf("emit errors: %v", errs)
	}
	return exe
}

func TestEmitSkipsEmptySections(t *testing.T) {
	// The default __default__ section opens with nothing in it before the
	// explicit .text directive takes over, so it should be dropped entirely.
	exe := emitSrc(t, `.text "main"`+"\n"+`.org $600`+"\n"+`NOP`)
	if len(exe.Sections) != 1 {
		t.Fatalf("got %d sections, want 1 (the empty default section should be dropped): %+v", len(exe.Sections), exe.Sections)
	}
	if exe.Sections[0].Name != "main" {
		t.Errorf("surviving section name = %q, want %q", exe.Sections[0].Name, "main")
	}
}

func TestEmitOpcodeAndImmediateOperand(t *testing.T) {
	exe := emitSrc(t, ".org $600\nLDA #$42")
	data := exe.SectionData(exe.Sections[0])
	if len(data) != 2 || data[0] != 0xA9 || data[1] != 0x42 {
		t.Errorf("payload = % x, want [a9 42]", data)
	}
}

func TestEmitBranchRelativeByte(t *testing.T) {
	exe := emitSrc(t, ".org $600\nloop: DEX\nBNE loop")
	data := exe.SectionData(exe.Sections[0])
	// DEX ($DA, this ISA's resolution rather than the real 6502's $CA),
	// BNE ($D0) rel=-3 (branches back to loop, 2 bytes before the operand end)
	want := []byte{0xDA, 0xD0, 0xFD}
	if len(data) != len(want) {
		t.Fatalf("payload = % x, want % x", data, want)
	}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("byte %d = %02x, want %02x", i, data[i], want[i])
		}
	}
}

func TestEmitStringNulTerminated(t *testing.T) {
	exe := emitSrc(t, `.org $600`+"\n"+`.string "hi"`)
	data := exe.SectionData(exe.Sections[0])
	want := []byte{'h', 'i', 0}
	if len(data) != len(want) {
		t.Fatalf("payload = % x, want % x", data, want)
	}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("byte %d = %02x, want %02x", i, data[i], want[i])
		}
	}
}

func TestEmitReportsUnencodableInstruction(t *testing.T) {
	// Analyze only accepts pairs from isa.Compatible, and every one of
	// those has an encoding, so after analysis the node's mode is replaced
	// with one no byte encodes: STX,Accumulator ($8A, its only bit-pattern
	// match, decodes as the group-5 TXA). Emit must report this rather
	// than emit a zero byte.
	src := ".org $600\nSTX $1234"
	toks, errs := Lex("t.s", []byte(src))
	if len(errs) != 0 {
		t.Fatalf("lex errors: %v", errs)
	}
	tree, errs := Parse("t.s", toks)
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	if errs := Analyze("t.s", tree); len(errs) != 0 {
		t.Fatalf("analyze errors: %v", errs)
	}
	instructionNode(tree, 0).Mode = isa.Accumulator
	exe, errs := Emit("t.s", tree)
	if len(errs) == 0 {
		t.Fatal("expected an emit error for STX,Accumulator, got none")
	}
	if exe != nil {
		t.Errorf("expected a nil executable alongside emit errors, got %+v", exe)
	}
}

func TestEmitByteData(t *testing.T) {
	exe := emitSrc(t, ".org $600\n.byte 1, 2, 3")
	data := exe.SectionData(exe.Sections[0])
	want := []byte{1, 2, 3}
	if len(data) != len(want) {
		t.Fatalf("payload = % x, want % x", data, want)
	}
}
