package declarator

import (
	"errors"
	"fmt"
)

// ErrUnparsable marks a line the declarator parser could not make sense of.
var ErrUnparsable = errors.New("declarator: unparsable declaration")

// ParseError describes a skipped line. It is reported as a warning and never
// aborts the surrounding declaration.
type ParseError struct {
	Line   int    // 1-based source line, 0 if unknown
	Text   string // offending text
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("declarator: line %d: %s: %q", e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("declarator: %s: %q", e.Reason, e.Text)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnparsable
}

func unparsable(text, reason string) *ParseError {
	return &ParseError{Text: text, Reason: reason}
}
