package asmx

import "github.com/dna65/dolly6502/isa"

// Analyze runs the two-pass semantic analyzer over tree: pass A assigns
// binary offsets and selects each instruction's final addressing mode;
// pass B validates that every branch to a label stays within the
// relative-operand's signed-byte range. Errors from both passes are
// accumulated and returned together.
func Analyze(file string, tree *SyntaxTree) Errors {
	var errs Errors
	errs = append(errs, passA(file, tree)...)
	errs = append(errs, passB(file, tree)...)
	return errs
}

func passA(file string, tree *SyntaxTree) Errors {
	var errs Errors

	var binOffset uint16
	sectionIndex := -1
	var highWater uint16
	haveHighWater := false

	for i := range tree.Nodes {
		n := &tree.Nodes[i]
		n.SectionIndex = sectionIndex

		switch n.Kind {
		case NodeSentinel:
			// carries no position.

		case NodeSectionText, NodeSectionData:
			sectionIndex++
			n.SectionIndex = sectionIndex
			highWater = binOffset
			haveHighWater = true

		case NodeOrigin:
			if haveHighWater && n.OriginAddr < highWater {
				errs = append(errs, newError(file, n.Line, n.Column,
					"origin $%04X moves backwards past an already-emitted byte at $%04X", n.OriginAddr, highWater))
			}
			binOffset = n.OriginAddr

		case NodeConstant:
			// no bin_offset advance; value already recorded at parse time.

		case NodeLabel:
			n.BinOffset = binOffset
			if binOffset > highWater || !haveHighWater {
				highWater, haveHighWater = binOffset, true
			}

		case NodeByteData:
			n.BinOffset = binOffset
			binOffset += uint16(len(n.Bytes))
			highWater, haveHighWater = binOffset, true

		case NodeString:
			n.BinOffset = binOffset
			binOffset += uint16(len(n.Str)) + 1
			highWater, haveHighWater = binOffset, true

		case NodeInstruction:
			n.BinOffset = binOffset
			if err := resolveInstruction(file, tree, n); err != nil {
				errs = append(errs, err)
			}
			binOffset += uint16(n.Length())
			highWater, haveHighWater = binOffset, true
		}
	}

	return errs
}

// resolveInstruction determines the operand's effective value (and
// whether it names a label, which forces a wider addressing mode),
// selects the addressing mode from the operand's syntactic form, and
// checks that mode against the mnemonic's compatibility bitset.
func resolveInstruction(file string, tree *SyntaxTree, n *Node) *Error {
	var value uint16
	var isLabel bool

	if n.OperandIdent != "" {
		sym, ok := tree.Symbol(n.OperandIdent)
		if !ok {
			return newError(file, n.Line, n.Column, "undefined symbol %q", n.OperandIdent)
		}
		switch sym.Kind {
		case NodeLabel:
			value, isLabel = sym.BinOffset, true
		case NodeConstant:
			value = sym.ConstValue
		default:
			return newError(file, n.Line, n.Column, "%q does not name a label or constant", n.OperandIdent)
		}
	} else {
		value = n.OperandInt
	}

	mode, err := selectMode(n.Form, n.Mnemonic, value, isLabel)
	if err != "" {
		return newError(file, n.Line, n.Column, "%s", err)
	}
	n.Mode = mode

	if compat, ok := isa.Compatible[n.Mnemonic]; !ok || compat&mode == 0 {
		return newError(file, n.Line, n.Column, "%s does not accept %s addressing", n.Mnemonic, mode)
	}
	return nil
}

// selectMode implements the addressing-mode selection table: which mode
// a given operand syntactic form resolves to, given the mnemonic and the
// operand's resolved value. It returns a non-empty error string instead
// of a sentinel mode when the form itself is malformed (an out-of-range
// indirect/immediate operand).
func selectMode(form OperandForm, mn isa.Mnemonic, value uint16, isLabel bool) (isa.Mode, string) {
	wide := func() bool { return isLabel || value > 255 }

	switch form {
	case FormImplicit:
		return isa.Implicit, ""

	case FormAccumulator:
		return isa.Accumulator, ""

	case FormInteger:
		if mn == isa.JMP || mn == isa.JSR {
			return isa.Absolute, ""
		}
		if value > 255 {
			return isa.Absolute, ""
		}
		return isa.ZeroPage, ""

	case FormIdentifier:
		if isa.IsBranch(mn) {
			return isa.Relative, ""
		}
		if mn == isa.JMP || mn == isa.JSR {
			return isa.Absolute, ""
		}
		if wide() {
			return isa.Absolute, ""
		}
		return isa.ZeroPage, ""

	case FormIntegerX:
		if value > 255 {
			return isa.AbsoluteX, ""
		}
		return isa.ZeroPageX, ""

	case FormIntegerY:
		if value > 255 {
			return isa.AbsoluteY, ""
		}
		return isa.ZeroPageY, ""

	case FormIdentifierX:
		if wide() {
			return isa.AbsoluteX, ""
		}
		return isa.ZeroPageX, ""

	case FormIdentifierY:
		if wide() {
			return isa.AbsoluteY, ""
		}
		return isa.ZeroPageY, ""

	case FormRelativeInteger, FormRelativeIdentifier:
		return isa.Relative, ""

	case FormIndirectIntegerY, FormIndirectIdentifierY:
		if value > 255 {
			return isa.ModeInvalid, "indirect-indexed operand must be a zero-page address"
		}
		return isa.IndirectY, ""

	case FormIndirectIntegerX, FormIndirectIdentifierX:
		if value > 255 {
			return isa.ModeInvalid, "indexed-indirect operand must be a zero-page address"
		}
		// The historical source resolves this form to INDIRECT_Y, a
		// typo in its addressing-mode table; this implementation maps
		// it to the addressing mode its own syntax names: INDIRECT_X.
		return isa.IndirectX, ""

	case FormImmediateInteger, FormImmediateIdentifier:
		if value > 255 {
			return isa.ModeInvalid, "immediate operand must fit in one byte"
		}
		return isa.Immediate, ""

	case FormIndirectInteger, FormIndirectIdentifier:
		return isa.Indirect, ""

	default:
		return isa.ModeInvalid, "unrecognised operand form"
	}
}

// branchMin/branchMax are the signed displacement bounds a relative
// operand byte can encode once the 2-byte instruction itself is
// accounted for: -126 (branch to 2 bytes before itself, minus the
// 128-byte backward reach) through 129 (branch fully forward).
const (
	branchMin = -126
	branchMax = 129
)

func passB(file string, tree *SyntaxTree) Errors {
	var errs Errors

	for i := range tree.Nodes {
		n := &tree.Nodes[i]
		if n.Kind != NodeInstruction || !isa.IsBranch(n.Mnemonic) || n.OperandIdent == "" {
			continue
		}
		sym, ok := tree.Symbol(n.OperandIdent)
		if !ok || sym.Kind != NodeLabel {
			continue
		}
		distance := int(sym.BinOffset) - int(n.BinOffset)
		if distance < branchMin || distance > branchMax {
			errs = append(errs, newError(file, n.Line, n.Column,
				"branch to %q is out of range (%d bytes)", n.OperandIdent, distance))
		}
	}

	return errs
}
