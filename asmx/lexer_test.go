package asmx

import "testing"

func TestLexPunctuationAndMnemonic(t *testing.T) {
	toks, errs := Lex("t.s", []byte("LDA #$10,X"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []TokenType{TokenInstruction, TokenHash, TokenInteger, TokenComma, TokenX}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("token %d type = %s, want %s", i, toks[i].Type, tt)
		}
	}
	if toks[2].Integer != 0x10 {
		t.Errorf("integer = $%02x, want $10", toks[2].Integer)
	}
}

func TestLexDirective(t *testing.T) {
	toks, errs := Lex("t.s", []byte(".org $0600"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if toks[0].Type != TokenDirective || toks[0].Directive != DirectiveOrigin {
		t.Errorf("got %+v, want ORIGIN directive", toks[0])
	}
	if toks[1].Integer != 0x0600 {
		t.Errorf("integer = $%04x, want $0600", toks[1].Integer)
	}
}

func TestLexUnknownDirectiveErrors(t *testing.T) {
	_, errs := Lex("t.s", []byte(".bogus 1"))
	if len(errs) == 0 {
		t.Fatal("expected an error for an unknown directive")
	}
}

func TestLexStringEscapes(t *testing.T) {
	toks, errs := Lex("t.s", []byte(`"a\nb\tc\\d\"e"`))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(toks) != 1 || toks[0].Type != TokenString {
		t.Fatalf("got %+v, want a single string token", toks)
	}
	want := "a\nb\tc\\d\"e"
	if toks[0].Text != want {
		t.Errorf("text = %q, want %q", toks[0].Text, want)
	}
}

func TestLexUnterminatedStringErrors(t *testing.T) {
	_, errs := Lex("t.s", []byte(`"abc`))
	if len(errs) == 0 {
		t.Fatal("expected an error for an unterminated string")
	}
}

func TestLexIntegerForms(t *testing.T) {
	cases := []struct {
		src  string
		want uint16
	}{
		{"$ff", 0x00ff},
		{"255", 255},
		{"-1", 0xffff},
		{"+5", 5},
	}
	for _, c := range cases {
		toks, errs := Lex("t.s", []byte(c.src))
		if len(errs) != 0 {
			t.Fatalf("%s: unexpected errors: %v", c.src, errs)
		}
		if len(toks) != 1 || toks[0].Integer != c.want {
			t.Errorf("%s: got %+v, want integer $%04x", c.src, toks, c.want)
		}
	}
}

func TestLexIntegerOutOfRangeErrors(t *testing.T) {
	_, errs := Lex("t.s", []byte("70000"))
	if len(errs) == 0 {
		t.Fatal("expected an error for an out-of-range decimal literal")
	}
}

func TestLexIdentifierAndRegisters(t *testing.T) {
	toks, errs := Lex("t.s", []byte("loop x Y a"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []TokenType{TokenIdentifier, TokenX, TokenY, TokenA}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("token %d type = %s, want %s", i, toks[i].Type, tt)
		}
	}
	if toks[0].Text != "loop" {
		t.Errorf("identifier text = %q, want loop", toks[0].Text)
	}
}

func TestLexCommentToEndOfLine(t *testing.T) {
	toks, errs := Lex("t.s", []byte("NOP ; this is a comment\nNOP"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2: %+v", len(toks), toks)
	}
}
