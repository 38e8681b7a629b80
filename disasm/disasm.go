// Copyright 2014 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a two-pass 6502 disassembler: pass A decodes
// a text-section payload into an ordered sequence of opcode records,
// pass B synthesizes a label at every relative branch's target offset.
package disasm

import (
	"fmt"
	"io"

	"github.com/dna65/dolly6502/cpu"
	"github.com/dna65/dolly6502/isa"
)

// Record is one decoded position in a payload: either a valid opcode
// with its operand, or an undecodable raw byte.
type Record struct {
	Offset uint16
	Opcode isa.Opcode // Opcode.Valid() is false for RawByte records
	RawByte byte

	Operand    uint16 // the operand's raw value, little-endian if 2 bytes
	OperandLen int

	Label       string // a synthesized label attached to this position, if any
	BranchLabel string // for a relative-mode record, the label at its target
}

func (r Record) length() int {
	if !r.Opcode.Valid() {
		return 1
	}
	return 1 + r.OperandLen
}

// Disassemble decodes payload in two passes: decode (Pass A) then label
// synthesis (Pass B, which fills in Record.Label/BranchLabel for every
// relative branch whose target falls on a record boundary).
func Disassemble(payload []byte) []Record {
	records := decode(payload)
	synthesizeLabels(records)
	return records
}

func decode(payload []byte) []Record {
	var records []Record
	offset := 0
	for offset < len(payload) {
		op := isa.Decode(payload[offset])
		if !op.Valid() {
			records = append(records, Record{Offset: uint16(offset), RawByte: payload[offset]})
			offset++
			continue
		}

		size := isa.OperandSize(op.Mode)
		rec := Record{Offset: uint16(offset), Opcode: op, OperandLen: size}
		switch size {
		case 1:
			if offset+1 < len(payload) {
				rec.Operand = uint16(payload[offset+1])
			}
		case 2:
			if offset+2 < len(payload) {
				rec.Operand = uint16(payload[offset+1]) | uint16(payload[offset+2])<<8
			}
		}
		records = append(records, rec)
		offset += 1 + size
	}
	return records
}

func synthesizeLabels(records []Record) {
	byOffset := make(map[uint16]int, len(records))
	for i, r := range records {
		byOffset[r.Offset] = i
	}

	n := 0
	for i := range records {
		r := &records[i]
		if !r.Opcode.Valid() || r.Opcode.Mode != isa.Relative {
			continue
		}
		target := int(r.Offset) + 2 + int(int8(byte(r.Operand)))
		if target < 0 {
			continue
		}
		j, ok := byOffset[uint16(target)]
		if !ok {
			continue
		}
		if records[j].Label == "" {
			records[j].Label = fmt.Sprintf("LBL_%d", n)
			n++
		}
		r.BranchLabel = records[j].Label
	}
}

// operandText renders a record's operand in standard 6502 assembly
// notation for its addressing mode.
func operandText(r Record) string {
	if !r.Opcode.Valid() {
		return fmt.Sprintf("$%02X", r.RawByte)
	}

	switch r.Opcode.Mode {
	case isa.Implicit:
		return ""
	case isa.Accumulator:
		return "A"
	case isa.Immediate:
		return fmt.Sprintf("#$%02X", r.Operand)
	case isa.ZeroPage:
		return fmt.Sprintf("$%02X", r.Operand)
	case isa.ZeroPageX:
		return fmt.Sprintf("$%02X,X", r.Operand)
	case isa.ZeroPageY:
		return fmt.Sprintf("$%02X,Y", r.Operand)
	case isa.Absolute:
		return fmt.Sprintf("$%04X", r.Operand)
	case isa.AbsoluteX:
		return fmt.Sprintf("$%04X,X", r.Operand)
	case isa.AbsoluteY:
		return fmt.Sprintf("$%04X,Y", r.Operand)
	case isa.Indirect:
		return fmt.Sprintf("($%04X)", r.Operand)
	case isa.IndirectX:
		return fmt.Sprintf("($%02X,X)", r.Operand)
	case isa.IndirectY:
		return fmt.Sprintf("($%02X),Y", r.Operand)
	case isa.Relative:
		if r.BranchLabel != "" {
			return r.BranchLabel
		}
		target := int(r.Offset) + 2 + int(int8(byte(r.Operand)))
		return fmt.Sprintf("$%04X", target)
	default:
		return ""
	}
}

// OperandText renders a record's operand the way Listing does, for callers
// (such as a live, instruction-at-a-time disassembly view) that need the
// operand text without the full line-oriented Listing format.
func OperandText(r Record) string {
	return operandText(r)
}

// GetRegisterString formats a CPU's registers and status flags as
// "A=.. X=.. Y=.. SP=.. PC=.... NV--DIZC", with each flag letter shown
// uppercase when set and '-' when clear; the unused bit and B columns
// always print '-'.
func GetRegisterString(r *cpu.Registers) string {
	return fmt.Sprintf("A=%02X X=%02X Y=%02X SP=%02X PC=%04X %s",
		r.A, r.X, r.Y, r.SP, r.PC, flagString(r))
}

// GetCompactRegisterString formats a CPU's registers and flags without
// field labels, for use in narrow, high-frequency trace lines.
func GetCompactRegisterString(r *cpu.Registers) string {
	return fmt.Sprintf("%02X %02X %02X %02X %04X %s", r.A, r.X, r.Y, r.SP, r.PC, flagString(r))
}

func flagString(r *cpu.Registers) string {
	flag := func(set bool, c byte) byte {
		if set {
			return c
		}
		return '-'
	}
	b := []byte{
		flag(r.Sign, 'N'), flag(r.Overflow, 'V'), '-', '-',
		flag(r.Decimal, 'D'), flag(r.InterruptDisable, 'I'), flag(r.Zero, 'Z'), flag(r.Carry, 'C'),
	}
	return string(b)
}

func mnemonicText(r Record) string {
	if !r.Opcode.Valid() {
		return ".byte"
	}
	return r.Opcode.Mnemonic.String()
}

// Listing writes one line per record to w in the form
// "0xHHHH<TAB>LABEL:<TAB>MNEMONIC operand", offset by base (a text
// section's load address) so the printed addresses match where the
// bytes actually live in the CPU's memory space.
func Listing(w io.Writer, records []Record, base uint16) error {
	for _, r := range records {
		label := ""
		if r.Label != "" {
			label = r.Label + ":"
		}
		operand := operandText(r)
		instr := mnemonicText(r)
		if operand != "" {
			instr += " " + operand
		}
		if _, err := fmt.Fprintf(w, "0x%04X\t%s\t%s\n", base+r.Offset, label, instr); err != nil {
			return err
		}
	}
	return nil
}
