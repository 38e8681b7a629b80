package asmx

import (
	"io"

	"github.com/dna65/dolly6502/object"
)

// Assemble runs the full pipeline — lex, parse, analyze, emit — over the
// named source read from r. It stops and returns the accumulated errors
// from the first stage that reports any; later stages never run against
// a token or syntax tree a prior stage has already flagged as broken.
func Assemble(file string, r io.Reader) (*object.Executable, *SourceMap, Errors) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, Errors{newError(file, 0, 0, "%s", err)}
	}

	toks, errs := Lex(file, src)
	if len(errs) > 0 {
		return nil, nil, errs
	}

	tree, errs := Parse(file, toks)
	if len(errs) > 0 {
		return nil, nil, errs
	}

	if errs := Analyze(file, tree); len(errs) > 0 {
		return nil, nil, errs
	}

	exe, errs := Emit(file, tree)
	if len(errs) > 0 {
		return nil, nil, errs
	}
	sm := BuildSourceMap(file, tree)
	return exe, sm, nil
}
