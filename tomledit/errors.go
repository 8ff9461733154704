package tomledit

import (
	"errors"
	"fmt"
)

// ErrMalformedDocument indicates the input is not syntactically valid TOML.
var ErrMalformedDocument = errors.New("malformed document")

// Position identifies a location in the source text.
type Position struct {
	Filename string
	Line     int
	Column   int
}

// ParseError describes a syntax error with position information.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return ErrMalformedDocument
}
