// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"
	"strings"

	"github.com/dna65/dolly6502/isa"
)

// An opsym is an internal symbol used to associate an opcode's data
// with its instructions.
type opsym byte

const (
	symADC opsym = iota
	symAND
	symASL
	symBCC
	symBCS
	symBEQ
	symBIT
	symBMI
	symBNE
	symBPL
	symBRK
	symBVC
	symBVS
	symCLC
	symCLD
	symCLI
	symCLV
	symCMP
	symCPX
	symCPY
	symDEC
	symDEX
	symDEY
	symEOR
	symINC
	symINX
	symINY
	symJMP
	symJSR
	symLDA
	symLDX
	symLDY
	symLSR
	symNOP
	symORA
	symPHA
	symPHP
	symPLA
	symPLP
	symROL
	symROR
	symRTI
	symRTS
	symSBC
	symSEC
	symSED
	symSEI
	symSTA
	symSTX
	symSTY
	symTAX
	symTAY
	symTSX
	symTXA
	symTXS
	symTYA
)

type instfunc func(c *CPU, inst *Instruction, operand []byte)

// Emulator implementation for each opcode. This module targets only the
// NMOS 6502: no decimal-mode ADC/SBC quirks beyond what the chip itself
// has, and none of the 65C02 additions (STZ, PHX/PHY, TRB/TSB, BRA, the
// extra (zp) addressing mode).
type opcodeImpl struct {
	sym  opsym
	name string
	fn   instfunc
}

var impl = []opcodeImpl{
	{symADC, "ADC", (*CPU).adc},
	{symAND, "AND", (*CPU).and},
	{symASL, "ASL", (*CPU).asl},
	{symBCC, "BCC", (*CPU).bcc},
	{symBCS, "BCS", (*CPU).bcs},
	{symBEQ, "BEQ", (*CPU).beq},
	{symBIT, "BIT", (*CPU).bit},
	{symBMI, "BMI", (*CPU).bmi},
	{symBNE, "BNE", (*CPU).bne},
	{symBPL, "BPL", (*CPU).bpl},
	{symBRK, "BRK", (*CPU).brk},
	{symBVC, "BVC", (*CPU).bvc},
	{symBVS, "BVS", (*CPU).bvs},
	{symCLC, "CLC", (*CPU).clc},
	{symCLD, "CLD", (*CPU).cld},
	{symCLI, "CLI", (*CPU).cli},
	{symCLV, "CLV", (*CPU).clv},
	{symCMP, "CMP", (*CPU).cmp},
	{symCPX, "CPX", (*CPU).cpx},
	{symCPY, "CPY", (*CPU).cpy},
	{symDEC, "DEC", (*CPU).dec},
	{symDEX, "DEX", (*CPU).dex},
	{symDEY, "DEY", (*CPU).dey},
	{symEOR, "EOR", (*CPU).eor},
	{symINC, "INC", (*CPU).inc},
	{symINX, "INX", (*CPU).inx},
	{symINY, "INY", (*CPU).iny},
	{symJMP, "JMP", (*CPU).jmp},
	{symJSR, "JSR", (*CPU).jsr},
	{symLDA, "LDA", (*CPU).lda},
	{symLDX, "LDX", (*CPU).ldx},
	{symLDY, "LDY", (*CPU).ldy},
	{symLSR, "LSR", (*CPU).lsr},
	{symNOP, "NOP", (*CPU).nop},
	{symORA, "ORA", (*CPU).ora},
	{symPHA, "PHA", (*CPU).pha},
	{symPHP, "PHP", (*CPU).php},
	{symPLA, "PLA", (*CPU).pla},
	{symPLP, "PLP", (*CPU).plp},
	{symROL, "ROL", (*CPU).rol},
	{symROR, "ROR", (*CPU).ror},
	{symRTI, "RTI", (*CPU).rti},
	{symRTS, "RTS", (*CPU).rts},
	{symSBC, "SBC", (*CPU).sbc},
	{symSEC, "SEC", (*CPU).sec},
	{symSED, "SED", (*CPU).sed},
	{symSEI, "SEI", (*CPU).sei},
	{symSTA, "STA", (*CPU).sta},
	{symSTX, "STX", (*CPU).stx},
	{symSTY, "STY", (*CPU).sty},
	{symTAX, "TAX", (*CPU).tax},
	{symTAY, "TAY", (*CPU).tay},
	{symTSX, "TSX", (*CPU).tsx},
	{symTXA, "TXA", (*CPU).txa},
	{symTXS, "TXS", (*CPU).txs},
	{symTYA, "TYA", (*CPU).tya},
}

// symToMnemonic maps every opsym onto the isa package's Mnemonic for the
// same instruction, so the dispatch table below can be built from
// isa.Decode instead of a second, independently-maintained opcode
// assignment. BRA has no entry: it is a 65C02 addition this module
// never emulates, and isa.Decode never produces it.
var symToMnemonic = map[opsym]isa.Mnemonic{
	symADC: isa.ADC, symAND: isa.AND, symASL: isa.ASL, symBCC: isa.BCC,
	symBCS: isa.BCS, symBEQ: isa.BEQ, symBIT: isa.BIT, symBMI: isa.BMI,
	symBNE: isa.BNE, symBPL: isa.BPL, symBRK: isa.BRK, symBVC: isa.BVC,
	symBVS: isa.BVS, symCLC: isa.CLC, symCLD: isa.CLD, symCLI: isa.CLI,
	symCLV: isa.CLV, symCMP: isa.CMP, symCPX: isa.CPX, symCPY: isa.CPY,
	symDEC: isa.DEC, symDEX: isa.DEX, symDEY: isa.DEY, symEOR: isa.EOR,
	symINC: isa.INC, symINX: isa.INX, symINY: isa.INY, symJMP: isa.JMP,
	symJSR: isa.JSR, symLDA: isa.LDA, symLDX: isa.LDX, symLDY: isa.LDY,
	symLSR: isa.LSR, symNOP: isa.NOP, symORA: isa.ORA, symPHA: isa.PHA,
	symPHP: isa.PHP, symPLA: isa.PLA, symPLP: isa.PLP, symROL: isa.ROL,
	symROR: isa.ROR, symRTI: isa.RTI, symRTS: isa.RTS, symSBC: isa.SBC,
	symSEC: isa.SEC, symSED: isa.SED, symSEI: isa.SEI, symSTA: isa.STA,
	symSTX: isa.STX, symSTY: isa.STY, symTAX: isa.TAX, symTAY: isa.TAY,
	symTSX: isa.TSX, symTXA: isa.TXA, symTXS: isa.TXS, symTYA: isa.TYA,
}

// mnemonicToSym is the inverse of symToMnemonic, used to translate an
// isa.Decode result back into the opsym this package dispatches on.
var mnemonicToSym map[isa.Mnemonic]opsym

func init() {
	mnemonicToSym = make(map[isa.Mnemonic]opsym, len(symToMnemonic))
	for sym, mn := range symToMnemonic {
		mnemonicToSym[mn] = sym
	}
}

// Mode describes a memory addressing mode, as used by the instruction
// dispatch table below. It is a compact per-opcode enumeration, distinct
// from isa.Mode's compatibility bitset: the two packages solve different
// problems (fast table-keyed dispatch here, syntactic-compatibility
// checks there).
type Mode byte

// All addressing modes the NMOS 6502 implements.
const (
	IMM Mode = iota // Immediate
	IMP             // Implied (no operand)
	REL             // Relative
	ZPG             // Zero Page
	ZPX             // Zero Page,X
	ZPY             // Zero Page,Y
	ABS             // Absolute
	ABX             // Absolute,X
	ABY             // Absolute,Y
	IND             // (Indirect)
	IDX             // (Indirect,X)
	IDY             // (Indirect),Y
	ACC             // Accumulator (no operand)
)

// modeFromISA translates an isa.Mode bit into this package's compact
// Mode enumeration, used once per decoded opcode byte while building the
// instruction set.
var modeFromISA = map[isa.Mode]Mode{
	isa.Immediate:   IMM,
	isa.Implicit:    IMP,
	isa.Relative:    REL,
	isa.ZeroPage:    ZPG,
	isa.ZeroPageX:   ZPX,
	isa.ZeroPageY:   ZPY,
	isa.Absolute:    ABS,
	isa.AbsoluteX:   ABX,
	isa.AbsoluteY:   ABY,
	isa.Indirect:    IND,
	isa.IndirectX:   IDX,
	isa.IndirectY:   IDY,
	isa.Accumulator: ACC,
}

// cycleKey identifies a (mnemonic, addressing mode) pair for the purpose
// of looking up its base cycle cost: the opcode byte itself is no longer
// part of the key, since it is now derived from isa.Decode rather than
// assigned here.
type cycleKey struct {
	sym  opsym
	mode Mode
}

// cycleData holds the base and page-boundary-crossing cycle costs for a
// documented (mnemonic, mode) pair. Every combination isa.Decode produces
// that isa.Compatible also accepts must have an entry here;
// newInstructionSet panics if one is missing, which would indicate the
// two tables have drifted apart.
type cycleData struct {
	cycles   byte
	bpcycles byte
}

// cycles is keyed by (mnemonic, mode) instead of by opcode byte: the
// byte each pair lives at is resolved at init time via isa.Decode, so
// this table only needs to agree with isa on addressing-mode semantics,
// never on opcode assignment.
var cycles = map[cycleKey]cycleData{
	{symLDA, IMM}: {2, 0}, {symLDA, ZPG}: {3, 0}, {symLDA, ZPX}: {4, 0},
	{symLDA, ABS}: {4, 0}, {symLDA, ABX}: {4, 1}, {symLDA, ABY}: {4, 1},
	{symLDA, IDX}: {6, 0}, {symLDA, IDY}: {5, 1},

	{symLDX, IMM}: {2, 0}, {symLDX, ZPG}: {3, 0}, {symLDX, ZPY}: {4, 0},
	{symLDX, ABS}: {4, 0}, {symLDX, ABY}: {4, 1},

	{symLDY, IMM}: {2, 0}, {symLDY, ZPG}: {3, 0}, {symLDY, ZPX}: {4, 0},
	{symLDY, ABS}: {4, 0}, {symLDY, ABX}: {4, 1},

	{symSTA, ZPG}: {3, 0}, {symSTA, ZPX}: {4, 0}, {symSTA, ABS}: {4, 0},
	{symSTA, ABX}: {5, 0}, {symSTA, ABY}: {5, 0}, {symSTA, IDX}: {6, 0},
	{symSTA, IDY}: {6, 0},

	{symSTX, ZPG}: {3, 0}, {symSTX, ZPY}: {4, 0}, {symSTX, ABS}: {4, 0},

	{symSTY, ZPG}: {3, 0}, {symSTY, ZPX}: {4, 0}, {symSTY, ABS}: {4, 0},

	{symADC, IMM}: {2, 0}, {symADC, ZPG}: {3, 0}, {symADC, ZPX}: {4, 0},
	{symADC, ABS}: {4, 0}, {symADC, ABX}: {4, 1}, {symADC, ABY}: {4, 1},
	{symADC, IDX}: {6, 0}, {symADC, IDY}: {5, 1},

	{symSBC, IMM}: {2, 0}, {symSBC, ZPG}: {3, 0}, {symSBC, ZPX}: {4, 0},
	{symSBC, ABS}: {4, 0}, {symSBC, ABX}: {4, 1}, {symSBC, ABY}: {4, 1},
	{symSBC, IDX}: {6, 0}, {symSBC, IDY}: {5, 1},

	{symCMP, IMM}: {2, 0}, {symCMP, ZPG}: {3, 0}, {symCMP, ZPX}: {4, 0},
	{symCMP, ABS}: {4, 0}, {symCMP, ABX}: {4, 1}, {symCMP, ABY}: {4, 1},
	{symCMP, IDX}: {6, 0}, {symCMP, IDY}: {5, 1},

	{symCPX, IMM}: {2, 0}, {symCPX, ZPG}: {3, 0}, {symCPX, ABS}: {4, 0},

	{symCPY, IMM}: {2, 0}, {symCPY, ZPG}: {3, 0}, {symCPY, ABS}: {4, 0},

	{symBIT, ZPG}: {3, 0}, {symBIT, ABS}: {4, 0},

	{symCLC, IMP}: {2, 0}, {symSEC, IMP}: {2, 0}, {symCLI, IMP}: {2, 0},
	{symSEI, IMP}: {2, 0}, {symCLD, IMP}: {2, 0}, {symSED, IMP}: {2, 0},
	{symCLV, IMP}: {2, 0},

	{symBCC, REL}: {2, 1}, {symBCS, REL}: {2, 1}, {symBEQ, REL}: {2, 1},
	{symBNE, REL}: {2, 1}, {symBMI, REL}: {2, 1}, {symBPL, REL}: {2, 1},
	{symBVC, REL}: {2, 1}, {symBVS, REL}: {2, 1},

	{symBRK, IMP}: {7, 0},

	{symAND, IMM}: {2, 0}, {symAND, ZPG}: {3, 0}, {symAND, ZPX}: {4, 0},
	{symAND, ABS}: {4, 0}, {symAND, ABX}: {4, 1}, {symAND, ABY}: {4, 1},
	{symAND, IDX}: {6, 0}, {symAND, IDY}: {5, 1},

	{symORA, IMM}: {2, 0}, {symORA, ZPG}: {3, 0}, {symORA, ZPX}: {4, 0},
	{symORA, ABS}: {4, 0}, {symORA, ABX}: {4, 1}, {symORA, ABY}: {4, 1},
	{symORA, IDX}: {6, 0}, {symORA, IDY}: {5, 1},

	{symEOR, IMM}: {2, 0}, {symEOR, ZPG}: {3, 0}, {symEOR, ZPX}: {4, 0},
	{symEOR, ABS}: {4, 0}, {symEOR, ABX}: {4, 1}, {symEOR, ABY}: {4, 1},
	{symEOR, IDX}: {6, 0}, {symEOR, IDY}: {5, 1},

	{symINC, ZPG}: {5, 0}, {symINC, ZPX}: {6, 0}, {symINC, ABS}: {6, 0},
	{symINC, ABX}: {7, 0},

	{symDEC, ZPG}: {5, 0}, {symDEC, ZPX}: {6, 0}, {symDEC, ABS}: {6, 0},
	{symDEC, ABX}: {7, 0},

	{symINX, IMP}: {2, 0}, {symINY, IMP}: {2, 0},
	{symDEX, IMP}: {2, 0}, {symDEY, IMP}: {2, 0},

	{symJMP, ABS}: {3, 0}, {symJMP, IND}: {5, 0},

	{symJSR, ABS}: {6, 0}, {symRTS, IMP}: {6, 0},

	{symRTI, IMP}: {6, 0},

	{symNOP, IMP}: {2, 0},

	{symTAX, IMP}: {2, 0}, {symTXA, IMP}: {2, 0}, {symTAY, IMP}: {2, 0},
	{symTYA, IMP}: {2, 0}, {symTXS, IMP}: {2, 0}, {symTSX, IMP}: {2, 0},

	{symPHA, IMP}: {3, 0}, {symPLA, IMP}: {4, 0},
	{symPHP, IMP}: {3, 0}, {symPLP, IMP}: {4, 0},

	{symASL, ACC}: {2, 0}, {symASL, ZPG}: {5, 0}, {symASL, ZPX}: {6, 0},
	{symASL, ABS}: {6, 0}, {symASL, ABX}: {7, 0},

	{symLSR, ACC}: {2, 0}, {symLSR, ZPG}: {5, 0}, {symLSR, ZPX}: {6, 0},
	{symLSR, ABS}: {6, 0}, {symLSR, ABX}: {7, 0},

	{symROL, ACC}: {2, 0}, {symROL, ZPG}: {5, 0}, {symROL, ZPX}: {6, 0},
	{symROL, ABS}: {6, 0}, {symROL, ABX}: {7, 0},

	{symROR, ACC}: {2, 0}, {symROR, ZPG}: {5, 0}, {symROR, ZPX}: {6, 0},
	{symROR, ABS}: {6, 0}, {symROR, ABX}: {7, 0},
}

// An Instruction describes a CPU instruction, including its name,
// its addressing mode, its opcode value, its operand size, and its CPU cycle
// cost.
type Instruction struct {
	Name     string   // all-caps name of the instruction
	Mode     Mode     // addressing mode
	Opcode   byte     // hexadecimal opcode value
	Length   byte     // combined size of opcode and operand, in bytes
	Cycles   byte     // number of CPU cycles to execute the instruction
	BPCycles byte     // additional cycles required if boundary page crossed
	fn       instfunc // emulator implementation of the function
}

// An InstructionSet defines the set of all possible instructions that
// can run on the emulated CPU. Bytes with no documented meaning decode
// to a no-op "???" entry: this module never emulates illegal opcodes.
type InstructionSet struct {
	instructions [256]Instruction          // all instructions by opcode
	variants     map[string][]*Instruction // variants of each instruction
}

// Lookup retrieves a CPU instruction corresponding to the requested opcode.
func (s *InstructionSet) Lookup(opcode byte) *Instruction {
	return &s.instructions[opcode]
}

// GetInstructions returns all CPU instructions whose name matches the
// provided string.
func (s *InstructionSet) GetInstructions(name string) []*Instruction {
	return s.variants[strings.ToUpper(name)]
}

// newInstructionSet builds the 256-entry opcode dispatch table by running
// isa.Decode over every possible byte, the same single source of truth
// the assembler (isa.Encode) and disassembler (isa.Decode) use. This
// keeps the emulator, assembler, and disassembler in agreement about what
// a given byte means, except that a decoded pair isa.Compatible rejects
// (such as STX,Immediate at $82) stays the "???" no-op here.
func newInstructionSet() *InstructionSet {
	set := &InstructionSet{}

	symToImpl := make(map[opsym]*opcodeImpl, len(impl))
	for i := range impl {
		symToImpl[impl[i].sym] = &impl[i]
	}

	set.variants = make(map[string][]*Instruction)
	const unusedName = "???"

	for i := 0; i < 256; i++ {
		inst := &set.instructions[i]
		inst.Name = unusedName
		inst.Mode = IMP
		inst.Opcode = byte(i)
		inst.Length = 1
		inst.Cycles = 2
		inst.fn = (*CPU).unused

		op := isa.Decode(byte(i))
		if !op.Valid() || isa.Compatible[op.Mnemonic]&op.Mode == 0 {
			continue
		}
		sym, ok := mnemonicToSym[op.Mnemonic]
		if !ok {
			continue // BRA: reserved, no NMOS emulation.
		}
		mode, ok := modeFromISA[op.Mode]
		if !ok {
			continue
		}
		cd, ok := cycles[cycleKey{sym, mode}]
		if !ok {
			panic(fmt.Sprintf("cpu: no cycle data for %s in mode %d", impl[sym].name, mode))
		}

		impl := symToImpl[sym]
		inst.Name = impl.name
		inst.Mode = mode
		inst.Length = byte(isa.OperandSize(op.Mode) + 1)
		inst.Cycles = cd.cycles
		inst.BPCycles = cd.bpcycles
		inst.fn = impl.fn

		set.variants[inst.Name] = append(set.variants[inst.Name], inst)
	}
	return set
}

var instructionSet *InstructionSet

// GetInstructionSet returns the (lazily-built) instruction set for the
// emulated NMOS 6502.
func GetInstructionSet() *InstructionSet {
	if instructionSet == nil {
		instructionSet = newInstructionSet()
	}
	return instructionSet
}
