// Package asmx implements the assembler pipeline: lexer, syntax-tree
// builder, two-pass semantic analyzer, and two-pass emitter, producing a
// DOLLY object (see package object) from 6502 assembly source.
package asmx

import (
	"fmt"
	"strings"
)

// Error is a single front-end diagnostic, carrying enough position
// information to print a compiler-style "file:line:column: message" line.
type Error struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

func newError(file string, line, column int, format string, args ...interface{}) *Error {
	return &Error{File: file, Line: line, Column: column, Message: fmt.Sprintf(format, args...)}
}

// Errors accumulates every diagnostic a pass produced rather than stopping
// at the first one, so a single run reports as much as it can.
type Errors []*Error

func (es Errors) Error() string {
	lines := make([]string, len(es))
	for i, e := range es {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}
