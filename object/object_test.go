package object

import (
	"bytes"
	"testing"
)

func TestAddSectionMonotonicOffsets(t *testing.T) {
	e := New()
	e.AddSection("_start", SectionText, 0x0600, []byte{0xA9, 0x05})
	e.AddSection("d", SectionData, 0x0700, []byte{1, 2, 3})

	if e.Sections[0].Offset != 0 {
		t.Errorf("first section offset = %d, want 0", e.Sections[0].Offset)
	}
	if e.Sections[1].Offset != 2 {
		t.Errorf("second section offset = %d, want 2 (non-overlapping)", e.Sections[1].Offset)
	}
	if len(e.Payload) != 5 {
		t.Errorf("payload length = %d, want 5", len(e.Payload))
	}
}

func TestRoundTrip(t *testing.T) {
	e := New()
	e.AddSection("_start", SectionText, 0x0600, []byte{0xA9, 0x05, 0x00})
	e.AddSection("msg", SectionString, 0, []byte("hi\x00"))

	var buf bytes.Buffer
	n, err := e.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if int(n) != buf.Len() {
		t.Errorf("WriteTo returned %d, wrote %d bytes", n, buf.Len())
	}

	got, err := ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(got.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(got.Sections))
	}
	if got.Sections[0].Name != "_start" || got.Sections[0].Type != SectionText {
		t.Errorf("section 0 = %+v", got.Sections[0])
	}
	if got.Sections[1].Name != "msg" || got.Sections[1].Type != SectionString {
		t.Errorf("section 1 = %+v", got.Sections[1])
	}
	if !bytes.Equal(got.Payload, e.Payload) {
		t.Errorf("payload mismatch: got %v, want %v", got.Payload, e.Payload)
	}
}

func TestReadInvalidMagic(t *testing.T) {
	_, err := ReadFrom(bytes.NewReader([]byte("NOTDOLLY1234567890")))
	if err != StatusInvalidFormat {
		t.Errorf("err = %v, want StatusInvalidFormat", err)
	}
}

func TestReadIncompleteHeader(t *testing.T) {
	_, err := ReadFrom(bytes.NewReader(Magic[:]))
	if err != StatusIncompleteHeader {
		t.Errorf("err = %v, want StatusIncompleteHeader", err)
	}
}

func TestReadEOFSectionTable(t *testing.T) {
	buf := append([]byte{}, Magic[:]...)
	buf = append(buf, byte(Arch6502), Version, 1) // claims 1 section, provides none
	_, err := ReadFrom(bytes.NewReader(buf))
	if err != StatusEOFSectionTable {
		t.Errorf("err = %v, want StatusEOFSectionTable", err)
	}
}

func TestReadEOFSection(t *testing.T) {
	e := New()
	e.AddSection("x", SectionData, 0, []byte{1, 2, 3, 4})
	var buf bytes.Buffer
	e.WriteTo(&buf)
	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := ReadFrom(bytes.NewReader(truncated))
	if err != StatusEOFSection {
		t.Errorf("err = %v, want StatusEOFSection", err)
	}
}

func TestWriteLengthInvariant(t *testing.T) {
	e := New()
	e.AddSection("a", SectionText, 0, []byte{1, 2, 3})
	e.AddSection("b", SectionData, 0, []byte{4, 5})

	var buf bytes.Buffer
	e.WriteTo(&buf)

	headerAndTable := len(Magic) + headerSize + len(e.Sections)*sectionRecordSize
	want := headerAndTable + len(e.Payload)
	if buf.Len() != want {
		t.Errorf("written length = %d, want %d", buf.Len(), want)
	}
}
