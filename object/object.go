// Package object implements the DOLLY object-file format shared by the
// assembler, disassembler, and emulator: a small header, a section table,
// and a concatenated payload blob.
package object

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Magic is the 6-byte signature every DOLLY object begins with.
var Magic = [6]byte{0x7F, 'D', 'O', 'L', 'L', 'Y'}

// Architecture is the object header's target-architecture tag.
type Architecture byte

const (
	Arch6502   Architecture = 0
	Arch65816  Architecture = 1 // reserved; this module never emits it
)

// SectionType classifies a section's payload.
type SectionType byte

const (
	SectionText   SectionType = 0
	SectionData   SectionType = 1
	SectionString SectionType = 2
)

func (t SectionType) String() string {
	switch t {
	case SectionText:
		return "text"
	case SectionData:
		return "data"
	case SectionString:
		return "string"
	default:
		return "(unknown)"
	}
}

// NameMaxLength is the fixed width of a section's NUL-padded name field.
const NameMaxLength = 32

// Version is the only object-format version this module writes.
const Version = 1

// sectionRecordSize is the on-disk size of one section-table entry:
// 32-byte name + 1-byte type + 4-byte offset + 4-byte size + 4-byte
// load address.
const sectionRecordSize = NameMaxLength + 1 + 4 + 4 + 4

// Section describes one named region of an object's payload.
type Section struct {
	Name        string
	Type        SectionType
	Offset      uint32 // offset into the payload blob
	Size        uint32
	LoadAddress uint32
}

// Executable is an in-memory DOLLY object: a header, section table, and
// payload blob.
type Executable struct {
	Arch     Architecture
	Version  byte
	Sections []Section
	Payload  []byte
}

// New returns an empty 6502 executable ready for AddSection calls.
func New() *Executable {
	return &Executable{Arch: Arch6502, Version: Version}
}

// AddSection appends a new section, assigning it a payload offset equal
// to the current end of the payload (the max of every existing section's
// offset+size), and grows the payload buffer to hold data.
func (e *Executable) AddSection(name string, typ SectionType, loadAddress uint32, data []byte) {
	offset := uint32(0)
	for _, s := range e.Sections {
		if end := s.Offset + s.Size; end > offset {
			offset = end
		}
	}

	sect := Section{
		Name:        name,
		Type:        typ,
		Offset:      offset,
		Size:        uint32(len(data)),
		LoadAddress: loadAddress,
	}
	e.Sections = append(e.Sections, sect)

	if need := int(offset) + len(data); need > len(e.Payload) {
		grown := make([]byte, need)
		copy(grown, e.Payload)
		e.Payload = grown
	}
	copy(e.Payload[offset:], data)
}

// SectionData returns the payload slice belonging to section s.
func (e *Executable) SectionData(s Section) []byte {
	return e.Payload[s.Offset : s.Offset+s.Size]
}

// Status is the read taxonomy from spec §7: object/IO errors are fatal at
// first occurrence and carry one of these kinds.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidFormat
	StatusIncompleteHeader
	StatusEOFSectionTable
	StatusEOFSection
)

func (s Status) Error() string {
	switch s {
	case StatusOK:
		return ""
	case StatusInvalidFormat:
		return "not dolly executable"
	case StatusIncompleteHeader:
		return "incomplete executable header"
	case StatusEOFSectionTable:
		return "unexpected end of file in section table"
	case StatusEOFSection:
		return "unexpected end of file in section"
	default:
		return fmt.Sprintf("unknown object status %d", int(s))
	}
}

// headerSize is the byte size of the fields after the magic and before
// the section table: arch + version + section_count.
const headerSize = 1 + 1 + 1

// ReadFrom parses a DOLLY object from r. Reading is bit-exact with the
// layout documented in spec §6 and fails with a Status error the moment
// truncation or a bad magic is detected.
func ReadFrom(r io.Reader) (*Executable, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if len(buf) < len(Magic)+headerSize {
		return nil, StatusIncompleteHeader
	}
	if !bytes.Equal(buf[:len(Magic)], Magic[:]) {
		return nil, StatusInvalidFormat
	}

	pos := len(Magic)
	e := &Executable{
		Arch:    Architecture(buf[pos]),
		Version: buf[pos+1],
	}
	sectionCount := int(buf[pos+2])
	pos += headerSize

	e.Sections = make([]Section, 0, sectionCount)
	var programSize uint32
	for i := 0; i < sectionCount; i++ {
		if pos+sectionRecordSize > len(buf) {
			return nil, StatusEOFSectionTable
		}
		rec := buf[pos : pos+sectionRecordSize]
		name := bytes.TrimRight(rec[:NameMaxLength], "\x00")
		s := Section{
			Name:        string(name),
			Type:        SectionType(rec[NameMaxLength]),
			Offset:      binary.LittleEndian.Uint32(rec[NameMaxLength+1:]),
			Size:        binary.LittleEndian.Uint32(rec[NameMaxLength+5:]),
			LoadAddress: binary.LittleEndian.Uint32(rec[NameMaxLength+9:]),
		}
		e.Sections = append(e.Sections, s)
		programSize += s.Size
		pos += sectionRecordSize
	}

	e.Payload = make([]byte, programSize)
	for _, s := range e.Sections {
		if pos+int(s.Size) > len(buf) {
			return nil, StatusEOFSection
		}
		copy(e.Payload[s.Offset:s.Offset+s.Size], buf[pos:pos+int(s.Size)])
		pos += int(s.Size)
	}

	return e, nil
}

// WriteTo serializes e to w in the same byte order ReadFrom expects:
// magic, header, section table, concatenated payload.
func (e *Executable) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(byte(e.Arch))
	buf.WriteByte(e.Version)
	buf.WriteByte(byte(len(e.Sections)))

	for _, s := range e.Sections {
		var name [NameMaxLength]byte
		copy(name[:], s.Name)
		buf.Write(name[:])
		buf.WriteByte(byte(s.Type))
		var le [4]byte
		binary.LittleEndian.PutUint32(le[:], s.Offset)
		buf.Write(le[:])
		binary.LittleEndian.PutUint32(le[:], s.Size)
		buf.Write(le[:])
		binary.LittleEndian.PutUint32(le[:], s.LoadAddress)
		buf.Write(le[:])
	}

	buf.Write(e.Payload)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}
