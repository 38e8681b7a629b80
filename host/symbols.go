// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"strings"

	"github.com/beevik/prefixtree/v2"

	"github.com/dna65/dolly6502/asmx"
)

// symbolTable resolves an abbreviated label typed at the host prompt
// against the source map's exported addresses, using the same
// unambiguous-prefix matching cmd.Tree uses for command names: "dis"
// resolves to "display" if it's the only export with that prefix.
type symbolTable struct {
	tree *prefixtree.Tree[uint16]
}

func newSymbolTable() *symbolTable {
	return &symbolTable{tree: prefixtree.New[uint16]()}
}

func buildSymbolTable(exports []asmx.Export) *symbolTable {
	st := newSymbolTable()
	for _, e := range exports {
		st.tree.Add(strings.ToLower(e.Label), e.Address)
	}
	return st
}

// Resolve looks up name as an unambiguous prefix of an exported label.
func (st *symbolTable) Resolve(name string) (uint16, error) {
	return st.tree.FindValue(strings.ToLower(name))
}
