package asmx

import (
	"testing"

	"github.com/dna65/dolly6502/isa"
)

func analyzeSrc(t *testing.T, src string) *SyntaxTree {
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
	return tree
}

func instructionNode(tree *SyntaxTree, i int) *Node {
	count := 0
	for j := range tree.Nodes {
		if tree.Nodes[j].Kind == NodeInstruction {
			if count == i {
				return &tree.Nodes[j]
			}
			count++
		}
	}
	return nil
}

func TestSemanticsZeroPageVsAbsolute(t *testing.T) {
	tree := analyzeSrc(t, "LDA $10\nLDA $1000")
	if m := instructionNode(tree, 0).Mode; m != isa.ZeroPage {
		t.Errorf("LDA $10 mode = %s, want zero-page", m)
	}
	if m := instructionNode(tree, 1).Mode; m != isa.Absolute {
		t.Errorf("LDA $1000 mode = %s, want absolute", m)
	}
}

func TestSemanticsIndexedIndirectResolvesToIndirectX(t *testing.T) {
	tree := analyzeSrc(t, "LDA ($10,X)")
	if m := instructionNode(tree, 0).Mode; m != isa.IndirectX {
		t.Errorf("LDA ($10,X) mode = %s, want indexed-indirect (X indirect)", m)
	}
}

func TestSemanticsIndirectIndexedResolvesToIndirectY(t *testing.T) {
	tree := analyzeSrc(t, "LDA ($10),Y")
	if m := instructionNode(tree, 0).Mode; m != isa.IndirectY {
		t.Errorf("LDA ($10),Y mode = %s, want indirect indexed (Y indirect)", m)
	}
}

func TestSemanticsLabelForcesAbsolute(t *testing.T) {
	tree := analyzeSrc(t, ".org $10\ntarget: NOP\nLDA target")
	inst := instructionNode(tree, 1)
	if inst.Mode != isa.Absolute {
		t.Errorf("LDA target mode = %s, want absolute (label operand always widens)", inst.Mode)
	}
}

func TestSemanticsIncompatibleModeErrors(t *testing.T) {
	toks, errs := Lex("t.s", []byte("STA #$10"))
	if len(errs) != 0 {
		t.Fatalf("lex errors: %v", errs)
	}
	tree, errs := Parse("t.s", toks)
	if len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	if errs := Analyze("t.s", tree); len(errs) == 0 {
		t.Fatal("expected an error: STA does not accept immediate addressing")
	}
}

func TestSemanticsOriginBackwardsErrors(t *testing.T) {
	toks, _ := Lex("t.s", []byte(".org $10\nNOP\nNOP\n.org $10"))
	tree, _ := Parse("t.s", toks)
	if errs := Analyze("t.s", tree); len(errs) == 0 {
		t.Fatal("expected an error: origin moved backwards past emitted bytes")
	}
}

func TestSemanticsBranchOutOfRangeErrors(t *testing.T) {
	src := ".org $0\nloop: NOP\n"
	for i := 0; i < 200; i++ {
		src += "NOP\n"
	}
	src += "BPL loop"
	toks, _ := Lex("t.s", []byte(src))
	tree, _ := Parse("t.s", toks)
	if errs := Analyze("t.s", tree); len(errs) == 0 {
		t.Fatal("expected a branch-out-of-range error")
	}
}

func TestSemanticsBranchInRange(t *testing.T) {
	tree := analyzeSrc(t, ".org $0\nloop: DEX\nBNE loop")
	bne := instructionNode(tree, 1)
	if bne.Mode != isa.Relative {
		t.Errorf("BNE loop mode = %s, want relative", bne.Mode)
	}
}
