package asmx

import (
	"github.com/dna65/dolly6502/isa"
	"github.com/dna65/dolly6502/object"
)

// section is a surviving (non-empty) section discovered by the layout
// pass: its final zero-based index, its object-level identity, and the
// address range its nodes occupy.
type section struct {
	index       int
	name        string
	typ         object.SectionType
	loadAddress uint16
	size        uint16
}

// Emit runs the two-pass emitter over an already-analyzed tree: layout
// determines which sections survive (a section with no writable node is
// dropped) and renumbers the nodes that belong to each; encode then
// writes every node's bytes into its section's payload and assembles
// the result into an object.Executable. It reports an error for any
// instruction node whose (mnemonic, mode) pair has no encoding at all,
// rather than silently emitting a zero byte.
func Emit(file string, tree *SyntaxTree) (*object.Executable, Errors) {
	sections := layout(tree)

	exe := object.New()
	var errs Errors
	for _, s := range sections {
		data := make([]byte, s.size)
		errs = append(errs, encodeSection(file, tree, s, data)...)
		exe.AddSection(s.name, s.typ, uint32(s.loadAddress), data)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return exe, nil
}

// layout scans the node list for each section-start node's span (up to
// the next section-start or the trailing sentinel), skips spans with no
// writable node, and rewrites SectionIndex on every node in a surviving
// span to its fresh zero-based index.
func layout(tree *SyntaxTree) []section {
	var sections []section

	nodes := tree.Nodes
	for i := 0; i < len(nodes); i++ {
		n := &nodes[i]
		if n.Kind&NodeSection == 0 {
			continue
		}

		end := i + 1
		for end < len(nodes) && nodes[end].Kind&NodeSection == 0 && nodes[end].Kind != NodeSentinel {
			end++
		}

		firstIdx, lastIdx := -1, -1
		for j := i + 1; j < end; j++ {
			if nodes[j].Kind&NodeWritable == 0 {
				continue
			}
			if firstIdx == -1 {
				firstIdx = j
			}
			lastIdx = j
		}
		if firstIdx == -1 {
			continue
		}

		typ := object.SectionText
		if n.Kind == NodeSectionData {
			typ = object.SectionData
		}
		loadAddr := nodes[firstIdx].BinOffset
		size := nodes[lastIdx].BinOffset + uint16(nodes[lastIdx].Length()) - loadAddr

		freshIndex := len(sections)
		for j := i; j < end; j++ {
			nodes[j].SectionIndex = freshIndex
		}

		sections = append(sections, section{
			index:       freshIndex,
			name:        n.SectionName,
			typ:         typ,
			loadAddress: loadAddr,
			size:        size,
		})
	}

	return sections
}

func encodeSection(file string, tree *SyntaxTree, s section, data []byte) Errors {
	var errs Errors
	for i := range tree.Nodes {
		n := &tree.Nodes[i]
		if n.SectionIndex != s.index || n.Kind&NodeWritable == 0 {
			continue
		}
		pos := n.BinOffset - s.loadAddress

		switch n.Kind {
		case NodeByteData:
			copy(data[pos:], n.Bytes)

		case NodeString:
			copy(data[pos:], n.Str)
			data[int(pos)+len(n.Str)] = 0

		case NodeInstruction:
			op, ok := isa.Encode(isa.Opcode{Mnemonic: n.Mnemonic, Mode: n.Mode})
			if !ok {
				errs = append(errs, newError(file, n.Line, n.Column,
					"%s does not have an encoding in %s addressing mode", n.Mnemonic, n.Mode))
				continue
			}
			data[pos] = op
			copy(data[int(pos)+1:], operandBytes(tree, n))
		}
	}
	return errs
}

// operandBytes computes the little-endian operand bytes following an
// instruction's opcode: a signed relative displacement for a branch to a
// label, the label's absolute address for any other label reference, a
// constant's literal value, or the operand's own literal integer.
func operandBytes(tree *SyntaxTree, n *Node) []byte {
	size := isa.OperandSize(n.Mode)
	if size == 0 {
		return nil
	}

	if n.Mode == isa.Relative {
		if n.OperandIdent != "" {
			if sym, ok := tree.Symbol(n.OperandIdent); ok {
				rel := int(sym.BinOffset) - int(n.BinOffset) - 2
				return []byte{byte(int8(rel))}
			}
		}
		return []byte{byte(n.OperandInt)}
	}

	var value uint16
	if n.OperandIdent != "" {
		sym, _ := tree.Symbol(n.OperandIdent)
		if sym.Kind == NodeLabel {
			value = sym.BinOffset
		} else {
			value = sym.ConstValue
		}
	} else {
		value = n.OperandInt
	}

	if size == 1 {
		return []byte{byte(value)}
	}
	return []byte{byte(value), byte(value >> 8)}
}
