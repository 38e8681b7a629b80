// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asmx

import (
	"bufio"
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
)

// sourceMapSignature and the version pair identify an asmx source-map
// stream so ReadFrom can reject a file that isn't one before trying to
// decode its varint-packed body.
const (
	sourceMapSignature    = "DASM"
	sourceMapVersionMajor = 1
	sourceMapVersionMinor = 0
)

// SourceMap is the side-table an assemble run produces alongside an
// object: which (file, line) produced each emitted byte, and which
// labels were exported, for the interactive host's `list`/`exports`
// commands. The three batch CLIs never need to read or write one.
type SourceMap struct {
	Origin  uint16
	Size    uint32
	Files   []string
	Lines   []SourceLine
	Exports []Export
}

// SourceLine maps one emitted byte offset to the file and line that
// produced it.
type SourceLine struct {
	Address   int
	FileIndex int
	Line      int
}

// Export is one exported label: a name visible to the host's symbol
// lookup, and the address it resolved to.
type Export struct {
	Label   string
	Address uint16
}

// BuildSourceMap walks an already-analyzed syntax tree and produces its
// source map: one SourceLine per writable node, and one Export per
// label node (constants aren't addresses and so aren't exported).
func BuildSourceMap(file string, tree *SyntaxTree) *SourceMap {
	sm := &SourceMap{Files: []string{file}}

	var minAddr, maxAddr uint16
	first := true
	for _, n := range tree.Nodes {
		if n.Kind&NodeWritable == 0 {
			continue
		}
		sm.Lines = append(sm.Lines, SourceLine{Address: int(n.BinOffset), FileIndex: 0, Line: n.Line})
		if first {
			minAddr, maxAddr, first = n.BinOffset, n.BinOffset, false
		}
		if n.BinOffset < minAddr {
			minAddr = n.BinOffset
		}
		end := n.BinOffset + uint16(n.Length())
		if end > maxAddr {
			maxAddr = end
		}
		if n.Kind == NodeLabel {
			sm.Exports = append(sm.Exports, Export{Label: n.Name, Address: n.BinOffset})
		}
	}

	sm.Lines = sortLines(sm.Lines)
	sm.Exports = sortExports(sm.Exports)
	if !first {
		sm.Origin = minAddr
		sm.Size = uint32(maxAddr) - uint32(minAddr)
	}
	return sm
}

// Find returns the source file and line that produced the byte at addr.
func (s *SourceMap) Find(addr int) (filename string, line int, err error) {
	i := sort.Search(len(s.Lines), func(i int) bool {
		return s.Lines[i].Address >= addr
	})
	if i < len(s.Lines) && s.Lines[i].Address == addr {
		return s.Files[s.Lines[i].FileIndex], s.Lines[i].Line, nil
	}
	return "", 0, fmt.Errorf("address $%04X not found in source map", addr)
}

// Export looks up label's exported address.
func (s *SourceMap) Export(label string) (uint16, bool) {
	for _, e := range s.Exports {
		if e.Label == label {
			return e.Address, true
		}
	}
	return 0, false
}

// ReadFrom parses a source map from its on-disk format: a fixed header
// followed by NUL-terminated file names, delta-varint-encoded source
// lines, and NUL-terminated-label/address export pairs.
func (s *SourceMap) ReadFrom(r io.Reader) (n int64, err error) {
	rr := bufio.NewReader(r)

	hdr := make([]byte, 18)
	nn, err := io.ReadFull(rr, hdr)
	n += int64(nn)
	if err != nil {
		return n, err
	}
	if !bytes.Equal(hdr[0:4], []byte(sourceMapSignature)) {
		return n, errors.New("invalid source map format")
	}
	if hdr[4] != sourceMapVersionMajor || hdr[5] != sourceMapVersionMinor {
		return n, errors.New("invalid source map version")
	}

	s.Origin = binary.LittleEndian.Uint16(hdr[6:8])
	s.Size = binary.LittleEndian.Uint32(hdr[8:12])
	fileCount := int(binary.LittleEndian.Uint16(hdr[12:14]))
	lineCount := int(binary.LittleEndian.Uint32(hdr[14:18]))

	var exportCountBuf [4]byte
	nn, err = io.ReadFull(rr, exportCountBuf[:])
	n += int64(nn)
	if err != nil {
		return n, err
	}
	exportCount := int(binary.LittleEndian.Uint32(exportCountBuf[:]))

	s.Files = make([]string, fileCount)
	for i := 0; i < fileCount; i++ {
		f, err := rr.ReadString(0)
		n += int64(len(f))
		if err != nil {
			return n, err
		}
		s.Files[i] = f[:len(f)-1]
	}

	s.Lines = make([]SourceLine, 0, lineCount)
	var prev SourceLine
	for i := 0; i < lineCount; i++ {
		line, nn, err := decodeSourceLine(rr, prev)
		n += int64(nn)
		if err != nil {
			return n, err
		}
		s.Lines = append(s.Lines, line)
		prev = line
	}

	s.Exports = make([]Export, exportCount)
	for i := 0; i < exportCount; i++ {
		label, err := rr.ReadString(0)
		n += int64(len(label))
		if err != nil {
			return n, err
		}
		s.Exports[i].Label = label[:len(label)-1]

		var b [2]byte
		nn, err = io.ReadFull(rr, b[:])
		n += int64(nn)
		if err != nil {
			return n, err
		}
		s.Exports[i].Address = binary.LittleEndian.Uint16(b[:])
	}

	return n, nil
}

// WriteTo serializes s in the format ReadFrom expects.
func (s *SourceMap) WriteTo(w io.Writer) (n int64, err error) {
	ww := bufio.NewWriter(w)

	var hdr [22]byte
	copy(hdr[:], []byte(sourceMapSignature))
	hdr[4] = sourceMapVersionMajor
	hdr[5] = sourceMapVersionMinor
	binary.LittleEndian.PutUint16(hdr[6:8], s.Origin)
	binary.LittleEndian.PutUint32(hdr[8:12], s.Size)
	binary.LittleEndian.PutUint16(hdr[12:14], uint16(len(s.Files)))
	binary.LittleEndian.PutUint32(hdr[14:18], uint32(len(s.Lines)))
	binary.LittleEndian.PutUint32(hdr[18:22], uint32(len(s.Exports)))
	nn, err := ww.Write(hdr[:])
	n += int64(nn)
	if err != nil {
		return n, err
	}

	for _, f := range s.Files {
		nn, err = ww.WriteString(f)
		n += int64(nn)
		if err != nil {
			return n, err
		}
		if err = ww.WriteByte(0); err != nil {
			return n, err
		}
		n++
	}

	var prev SourceLine
	for _, line := range s.Lines {
		nn, err = encodeSourceLine(ww, prev, line)
		n += int64(nn)
		if err != nil {
			return n, err
		}
		prev = line
	}

	for _, e := range s.Exports {
		nn, err = ww.WriteString(e.Label)
		n += int64(nn)
		if err != nil {
			return n, err
		}
		if err = ww.WriteByte(0); err != nil {
			return n, err
		}
		n++

		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], e.Address)
		nn, err = ww.Write(b[:])
		n += int64(nn)
		if err != nil {
			return n, err
		}
	}

	return n, ww.Flush()
}

// Encoding flags for the varint-packed source-line deltas: each line is
// stored as a delta from the previous one so a dense, monotonic address
// sequence compresses well.
const (
	continued        byte = 1 << 7
	negative         byte = 1 << 6
	fileIndexChanged byte = 1 << 5
)

func decodeSourceLine(r *bufio.Reader, prev SourceLine) (line SourceLine, n int, err error) {
	da, nn, err := decode67(r)
	n += nn
	if err != nil {
		return line, n, err
	}

	dl, changedFile, nn, err := decode57(r)
	n += nn
	if err != nil {
		return line, n, err
	}

	var df int
	if changedFile {
		df, nn, err = decode67(r)
		n += nn
		if err != nil {
			return line, n, err
		}
	}

	line.Address = prev.Address + da
	line.FileIndex = prev.FileIndex + df
	line.Line = prev.Line + dl
	return line, n, nil
}

func encodeSourceLine(w *bufio.Writer, l0, l1 SourceLine) (n int, err error) {
	da := l1.Address - l0.Address
	df := l1.FileIndex - l0.FileIndex
	dl := l1.Line - l0.Line

	nn, err := encode67(w, da)
	n += nn
	if err != nil {
		return n, err
	}

	nn, err = encode57(w, dl, df != 0)
	n += nn
	if err != nil {
		return n, err
	}

	if df != 0 {
		nn, err = encode67(w, df)
		n += nn
	}
	return n, err
}

func decode7(r *bufio.Reader) (value int, n int, err error) {
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, n, err
		}
		n++
		value |= int(b&0x7f) << shift
		shift += 7
		if b&continued == 0 {
			break
		}
	}
	return value, n, nil
}

func decode57(r *bufio.Reader) (value int, changedFile bool, n int, err error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, false, n, err
	}
	n++

	value = int(b & 0x1f)
	changedFile = b&fileIndexChanged != 0
	neg := b&negative != 0

	if b&continued != 0 {
		vl, nn, err := decode7(r)
		n += nn
		if err != nil {
			return 0, changedFile, n, err
		}
		value |= vl << 5
	}
	if neg {
		value = -value
	}
	return value, changedFile, n, nil
}

func decode67(r *bufio.Reader) (value int, n int, err error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, n, err
	}
	n++

	value = int(b & 0x3f)
	neg := b&negative != 0

	if b&continued != 0 {
		vl, nn, err := decode7(r)
		n += nn
		if err != nil {
			return 0, n, err
		}
		value |= vl << 6
	}
	if neg {
		value = -value
	}
	return value, n, nil
}

func encode7(w *bufio.Writer, v int) (n int, err error) {
	for v != 0 {
		var b byte
		if v >= 0x80 {
			b |= continued
		}
		b |= byte(v) & 0x7f
		if err = w.WriteByte(b); err != nil {
			return n, err
		}
		n++
		v >>= 7
	}
	return n, nil
}

func encode57(w *bufio.Writer, v int, changedFile bool) (n int, err error) {
	var b byte
	if changedFile {
		b |= fileIndexChanged
	}
	if v < 0 {
		b |= negative
		v = -v
	}
	if v >= 0x20 {
		b |= continued
	}
	b |= byte(v) & 0x1f
	if err = w.WriteByte(b); err != nil {
		return n, err
	}
	n++
	v >>= 5

	nn, err := encode7(w, v)
	n += nn
	return n, err
}

func encode67(w *bufio.Writer, v int) (n int, err error) {
	var b byte
	if v < 0 {
		b |= negative
		v = -v
	}
	if v >= 0x40 {
		b |= continued
	}
	b |= byte(v) & 0x3f
	if err = w.WriteByte(b); err != nil {
		return n, err
	}
	n++
	v >>= 6

	nn, err := encode7(w, v)
	n += nn
	return n, err
}

func sortLines(lines []SourceLine) []SourceLine {
	slices.SortFunc(lines, func(a, b SourceLine) int { return cmp.Compare(a.Address, b.Address) })
	return lines
}

func sortExports(exports []Export) []Export {
	slices.SortFunc(exports, func(a, b Export) int { return cmp.Compare(a.Address, b.Address) })
	return exports
}
