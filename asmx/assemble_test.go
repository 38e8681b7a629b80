package asmx

import (
	"strings"
	"testing"
)

func TestAssembleEndToEnd(t *testing.T) {
	src := `.org $0600
start:
	LDX #$00
loop:
	LDA message,X
	BEQ done
	INX
	BNE loop
done:
	BRK
message:
	.string "hi"
`
	exe, sm, errs := Assemble("prog.s", strings.NewReader(src))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(exe.Sections) != 1 {
		t.Fatalf("got %d sections, want 1: %+v", len(exe.Sections), exe.Sections)
	}
	sect := exe.Sections[0]
	if sect.LoadAddress != 0x0600 {
		t.Errorf("load address = $%04x, want $0600", sect.LoadAddress)
	}
	data := exe.SectionData(sect)
	if len(data) == 0 {
		t.Fatal("empty payload")
	}
	if data[0] != 0xA2 || data[1] != 0x00 { // LDX #$00
		t.Errorf("first two bytes = % x, want [a2 00]", data[:2])
	}

	if _, ok := sm.Export("message"); !ok {
		t.Error("expected message to be exported")
	}
	if _, _, err := sm.Find(int(sect.LoadAddress)); err != nil {
		t.Errorf("Find(origin) failed: %v", err)
	}
}

func TestAssembleLexErrorStopsPipeline(t *testing.T) {
	_, _, errs := Assemble("bad.s", strings.NewReader(`.org $0600` + "\n" + `"unterminated`))
	if len(errs) == 0 {
		t.Fatal("expected lex errors to surface")
	}
}

func TestAssembleIndirectIndexedBugFix(t *testing.T) {
	exe, _, errs := Assemble("t.s", strings.NewReader(".org $0600\nLDA ($10,X)"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	data := exe.SectionData(exe.Sections[0])
	// LDA (indexed indirect, X) is opcode $A1.
	if data[0] != 0xA1 {
		t.Errorf("opcode = $%02x, want $A1 (indexed-indirect LDA)", data[0])
	}
}
