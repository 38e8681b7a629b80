package asmx

import (
	"github.com/dna65/dolly6502/isa"
)

// NodeKind is the tagged-union discriminant for a syntax node. Like
// TokenType it is a bitset so a caller can test "any writable kind" or
// "any section-start kind" with one mask.
type NodeKind uint16

const (
	NodeSentinel    NodeKind = 0
	NodeInstruction NodeKind = 1 << 0
	NodeLabel       NodeKind = 1 << 1
	NodeConstant    NodeKind = 1 << 2
	NodeString      NodeKind = 1 << 3
	NodeByteData    NodeKind = 1 << 4
	NodeOrigin      NodeKind = 1 << 5
	NodeSectionText NodeKind = 1 << 6
	NodeSectionData NodeKind = 1 << 7
)

// NodeSection matches either section-start kind.
const NodeSection = NodeSectionText | NodeSectionData

// NodeWritable matches the node kinds the layout pass searches for when
// deciding whether a section is empty.
const NodeWritable = NodeInstruction | NodeLabel | NodeByteData | NodeString

// DefaultSectionName is the implicit text section every syntax tree opens
// with, so statements before any explicit .text/.data have a home.
const DefaultSectionName = "__default__"

// OperandForm is the syntactic shape an instruction's operand took in
// source, one of the 18 forms (including implicit) the parser recognizes.
type OperandForm int

const (
	FormImplicit OperandForm = iota
	FormInteger
	FormIdentifier
	FormIntegerX
	FormIntegerY
	FormIdentifierX
	FormIdentifierY
	FormRelativeInteger
	FormRelativeIdentifier
	FormIndirectIntegerY
	FormIndirectIdentifierY
	FormIndirectIntegerX
	FormIndirectIdentifierX
	FormAccumulator
	FormImmediateInteger
	FormImmediateIdentifier
	FormIndirectInteger
	FormIndirectIdentifier
)

// Node is a single syntax-tree entry. Only the fields relevant to Kind
// are meaningful; callers must switch on Kind before reading them.
type Node struct {
	Kind   NodeKind
	Line   int
	Column int

	SectionName string // SectionText / SectionData
	OriginAddr  uint16 // Origin

	Bytes []byte // ByteData
	Str   string // String

	Name       string // Label / Constant
	ConstValue uint16 // Constant

	Mnemonic     isa.Mnemonic // Instruction
	Form         OperandForm
	OperandInt   uint16
	OperandIdent string // "" if the operand is a literal integer

	Mode      isa.Mode // filled in by the semantic pass
	BinOffset uint16   // filled in by the semantic pass

	SectionIndex int // provisional in pass A, rewritten by the emitter's layout pass
}

// Length returns the number of bytes this node contributes to its
// section's payload once resolved: used by the layout pass to locate the
// end of a section's last writable node.
func (n *Node) Length() int {
	switch n.Kind {
	case NodeInstruction:
		return 1 + isa.OperandSize(n.Mode)
	case NodeByteData:
		return len(n.Bytes)
	case NodeString:
		return len(n.Str) + 1
	default:
		return 0
	}
}

// SyntaxTree is the parser's output: a flat ordered node sequence plus
// the symbol/section lookup tables used to detect duplicate definitions
// and to resolve identifiers in later passes.
type SyntaxTree struct {
	Nodes    []Node
	Symbols  map[string]int // label/constant name -> node index
	Sections map[string]int // section name -> node index
}

// Symbol resolves name to its defining node, if any.
func (t *SyntaxTree) Symbol(name string) (*Node, bool) {
	i, ok := t.Symbols[name]
	if !ok {
		return nil, false
	}
	return &t.Nodes[i], true
}

// operandPattern is one entry of the greedy longest-match table: the
// exact token-type sequence that selects form, and how to extract the
// operand value/identifier from the matched tokens.
type operandPattern struct {
	form   OperandForm
	tokens []TokenType
}

// patterns is ordered longest-match-first so that, e.g., "(iden,X)"
// (5 tokens) is tried before "(iden)" (3 tokens) even though both begin
// with an open bracket.
var patterns = []operandPattern{
	{FormIndirectIntegerX, []TokenType{TokenOpenBracket, TokenInteger, TokenComma, TokenX, TokenCloseBracket}},
	{FormIndirectIdentifierX, []TokenType{TokenOpenBracket, TokenIdentifier, TokenComma, TokenX, TokenCloseBracket}},
	{FormIndirectIntegerY, []TokenType{TokenOpenBracket, TokenInteger, TokenCloseBracket, TokenComma, TokenY}},
	{FormIndirectIdentifierY, []TokenType{TokenOpenBracket, TokenIdentifier, TokenCloseBracket, TokenComma, TokenY}},
	{FormIntegerX, []TokenType{TokenInteger, TokenComma, TokenX}},
	{FormIntegerY, []TokenType{TokenInteger, TokenComma, TokenY}},
	{FormIdentifierX, []TokenType{TokenIdentifier, TokenComma, TokenX}},
	{FormIdentifierY, []TokenType{TokenIdentifier, TokenComma, TokenY}},
	{FormIndirectInteger, []TokenType{TokenOpenBracket, TokenInteger, TokenCloseBracket}},
	{FormIndirectIdentifier, []TokenType{TokenOpenBracket, TokenIdentifier, TokenCloseBracket}},
	{FormImmediateInteger, []TokenType{TokenHash, TokenInteger}},
	{FormImmediateIdentifier, []TokenType{TokenHash, TokenIdentifier}},
	{FormRelativeInteger, []TokenType{TokenAsterisk, TokenInteger}},
	{FormRelativeIdentifier, []TokenType{TokenAsterisk, TokenIdentifier}},
	{FormAccumulator, []TokenType{TokenA}},
	{FormInteger, []TokenType{TokenInteger}},
	{FormIdentifier, []TokenType{TokenIdentifier}},
}

// Parse consumes the token list lexed from file and produces a flat
// ordered syntax-tree, accumulating every structural error it finds
// (duplicate symbols, unmatched operand patterns, unexpected tokens)
// rather than stopping at the first one.
func Parse(file string, tokens []Token) (*SyntaxTree, Errors) {
	p := &parser{
		file:   file,
		toks:   tokens,
		tree:   &SyntaxTree{Symbols: map[string]int{}, Sections: map[string]int{}},
	}
	p.addNode(Node{Kind: NodeSectionText, SectionName: DefaultSectionName})
	p.tree.Sections[DefaultSectionName] = 0

	for p.pos < len(p.toks) {
		p.statement()
	}

	p.addNode(Node{Kind: NodeSentinel})
	return p.tree, p.errs
}

type parser struct {
	file string
	toks []Token
	pos  int
	tree *SyntaxTree
	errs Errors
}

func (p *parser) addNode(n Node) int {
	p.tree.Nodes = append(p.tree.Nodes, n)
	return len(p.tree.Nodes) - 1
}

func (p *parser) errorf(line, col int, format string, args ...interface{}) {
	p.errs = append(p.errs, newError(p.file, line, col, format, args...))
}

func (p *parser) peek(n int) (Token, bool) {
	if p.pos+n >= len(p.toks) {
		return Token{}, false
	}
	return p.toks[p.pos+n], true
}

func (p *parser) statement() {
	tok := p.toks[p.pos]

	switch tok.Type {
	case TokenDirective:
		p.directive(tok)
	case TokenIdentifier:
		p.identifierStatement(tok)
	case TokenInstruction:
		p.instruction(tok)
	default:
		p.errorf(tok.Line, tok.Column, "unexpected token %s", tok.Type)
		p.pos++
	}
}

func (p *parser) directive(tok Token) {
	p.pos++
	switch tok.Directive {
	case DirectiveOrigin:
		v, ok := p.expect(TokenInteger, tok)
		if !ok {
			return
		}
		p.addNode(Node{Kind: NodeOrigin, Line: tok.Line, Column: tok.Column, OriginAddr: v.Integer})

	case DirectiveByte:
		v, ok := p.expect(TokenInteger, tok)
		if !ok {
			return
		}
		bytes := []byte{byteValue(v.Integer)}
		for {
			comma, ok := p.peek(0)
			if !ok || comma.Type != TokenComma {
				break
			}
			p.pos++
			nv, ok := p.expect(TokenInteger, comma)
			if !ok {
				return
			}
			bytes = append(bytes, byteValue(nv.Integer))
		}
		p.addNode(Node{Kind: NodeByteData, Line: tok.Line, Column: tok.Column, Bytes: bytes})

	case DirectiveString:
		v, ok := p.expect(TokenString, tok)
		if !ok {
			return
		}
		p.addNode(Node{Kind: NodeString, Line: tok.Line, Column: tok.Column, Str: v.Text})

	case DirectiveText, DirectiveData:
		v, ok := p.expect(TokenString, tok)
		if !ok {
			return
		}
		if _, dup := p.tree.Sections[v.Text]; dup {
			p.errorf(tok.Line, tok.Column, "duplicate section name %q", v.Text)
			return
		}
		kind := NodeSectionText
		if tok.Directive == DirectiveData {
			kind = NodeSectionData
		}
		idx := p.addNode(Node{Kind: kind, Line: tok.Line, Column: tok.Column, SectionName: v.Text})
		p.tree.Sections[v.Text] = idx
	}
}

func (p *parser) expect(want TokenType, after Token) (Token, bool) {
	tok, ok := p.peek(0)
	if !ok || tok.Type != want {
		p.errorf(after.Line, after.Column, "expected %s after %s", want, after.Type)
		return Token{}, false
	}
	p.pos++
	return tok, true
}

func byteValue(v uint16) byte {
	return byte(v)
}

func (p *parser) identifierStatement(tok Token) {
	name := tok.Text
	p.pos++

	if next, ok := p.peek(0); ok && next.Type == TokenEquals {
		p.pos++
		v, ok := p.expect(TokenInteger, next)
		if !ok {
			return
		}
		if _, dup := p.tree.Symbols[name]; dup {
			p.errorf(tok.Line, tok.Column, "duplicate symbol %q", name)
			return
		}
		idx := p.addNode(Node{Kind: NodeConstant, Line: tok.Line, Column: tok.Column, Name: name, ConstValue: v.Integer})
		p.tree.Symbols[name] = idx
		return
	}

	if _, dup := p.tree.Symbols[name]; dup {
		p.errorf(tok.Line, tok.Column, "duplicate symbol %q", name)
		// still consume an optional trailing colon so parsing can continue.
		if next, ok := p.peek(0); ok && next.Type == TokenColon {
			p.pos++
		}
		return
	}

	if next, ok := p.peek(0); ok && next.Type == TokenColon {
		p.pos++
	}
	idx := p.addNode(Node{Kind: NodeLabel, Line: tok.Line, Column: tok.Column, Name: name})
	p.tree.Symbols[name] = idx
}

func (p *parser) instruction(tok Token) {
	p.pos++

	if isa.ImpliedOnly[tok.Mnemonic] {
		p.addNode(Node{Kind: NodeInstruction, Line: tok.Line, Column: tok.Column, Mnemonic: tok.Mnemonic, Form: FormImplicit})
		return
	}

	for _, pat := range patterns {
		if !p.matches(pat.tokens) {
			continue
		}
		n := Node{Kind: NodeInstruction, Line: tok.Line, Column: tok.Column, Mnemonic: tok.Mnemonic, Form: pat.form}
		p.fillOperand(&n, pat)
		p.pos += len(pat.tokens)
		p.addNode(n)
		return
	}

	p.errorf(tok.Line, tok.Column, "no matching operand pattern for %s", tok.Mnemonic)
}

func (p *parser) matches(want []TokenType) bool {
	for i, tt := range want {
		tok, ok := p.peek(i)
		if !ok || tok.Type != tt {
			return false
		}
	}
	return true
}

// fillOperand pulls the operand value or identifier name out of the
// already-matched token window, based on which slot in the pattern
// carries it (always the first TokenInteger or TokenIdentifier).
func (p *parser) fillOperand(n *Node, pat operandPattern) {
	for i, tt := range pat.tokens {
		tok, _ := p.peek(i)
		switch tt {
		case TokenInteger:
			n.OperandInt = tok.Integer
			return
		case TokenIdentifier:
			n.OperandIdent = tok.Text
			return
		}
	}
}
