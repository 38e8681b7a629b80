package asmx

import "testing"

func mustLex(t *testing.T, src string) []Token {
	t.Helper()
	toks, errs := Lex("t.s", []byte(src))
	if len(errs) != 0 {
		t.Fatalf("lex errors: %v", errs)
	}
	return toks
}

func TestParseDefaultSection(t *testing.T) {
	tree, errs := Parse("t.s", mustLex(t, "NOP"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if tree.Nodes[0].Kind != NodeSectionText || tree.Nodes[0].SectionName != DefaultSectionName {
		t.Fatalf("first node = %+v, want the default text section", tree.Nodes[0])
	}
}

func TestParseImplicitInstruction(t *testing.T) {
	tree, errs := Parse("t.s", mustLex(t, "NOP"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	inst := tree.Nodes[1]
	if inst.Kind != NodeInstruction || inst.Form != FormImplicit {
		t.Fatalf("got %+v, want an implicit NOP node", inst)
	}
}

func TestParseOperandForms(t *testing.T) {
	cases := []struct {
		src  string
		form OperandForm
	}{
		{"LDA #$10", FormImmediateInteger},
		{"LDA #label", FormImmediateIdentifier},
		{"ASL A", FormAccumulator},
		{"LDA $10", FormInteger},
		{"LDA label", FormIdentifier},
		{"LDA $10,X", FormIntegerX},
		{"LDA $10,Y", FormIntegerY},
		{"LDA label,X", FormIdentifierX},
		{"LDA label,Y", FormIdentifierY},
		{"BPL *label", FormRelativeIdentifier},
		{"BPL *-5", FormRelativeInteger},
		{"LDA ($10),Y", FormIndirectIntegerY},
		{"LDA (label),Y", FormIndirectIdentifierY},
		{"LDA ($10,X)", FormIndirectIntegerX},
		{"LDA (label,X)", FormIndirectIdentifierX},
		{"JMP ($1234)", FormIndirectInteger},
		{"JMP (label)", FormIndirectIdentifier},
	}
	for _, c := range cases {
		tree, errs := Parse("t.s", mustLex(t, c.src))
		if len(errs) != 0 {
			t.Fatalf("%s: unexpected errors: %v", c.src, errs)
		}
		var inst *Node
		for i := range tree.Nodes {
			if tree.Nodes[i].Kind == NodeInstruction {
				inst = &tree.Nodes[i]
			}
		}
		if inst == nil {
			t.Fatalf("%s: no instruction node produced", c.src)
		}
		if inst.Form != c.form {
			t.Errorf("%s: form = %d, want %d", c.src, inst.Form, c.form)
		}
	}
}

func TestParseLabelAndConstant(t *testing.T) {
	tree, errs := Parse("t.s", mustLex(t, "start: NOP\ncount = 5"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	label, ok := tree.Symbol("start")
	if !ok || label.Kind != NodeLabel {
		t.Fatalf("expected a label named start, got %+v, %v", label, ok)
	}
	cons, ok := tree.Symbol("count")
	if !ok || cons.Kind != NodeConstant || cons.ConstValue != 5 {
		t.Fatalf("expected a constant count=5, got %+v, %v", cons, ok)
	}
}

func TestParseDuplicateSymbolErrors(t *testing.T) {
	_, errs := Parse("t.s", mustLex(t, "start: NOP\nstart: NOP"))
	if len(errs) == 0 {
		t.Fatal("expected a duplicate-symbol error")
	}
}

func TestParseDuplicateSectionErrors(t *testing.T) {
	_, errs := Parse("t.s", mustLex(t, `.text "main"`+"\n"+`.text "main"`))
	if len(errs) == 0 {
		t.Fatal("expected a duplicate-section error")
	}
}

func TestParseUnmatchedOperandErrors(t *testing.T) {
	_, errs := Parse("t.s", mustLex(t, "LDA #"))
	if len(errs) == 0 {
		t.Fatal("expected an unmatched-operand error")
	}
}

func TestParseTrailingSentinel(t *testing.T) {
	tree, errs := Parse("t.s", mustLex(t, "NOP"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	last := tree.Nodes[len(tree.Nodes)-1]
	if last.Kind != NodeSentinel {
		t.Fatalf("last node = %+v, want the sentinel", last)
	}
}
