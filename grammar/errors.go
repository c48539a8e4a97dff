package grammar

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrGrammarViolation is returned when a character is not currently
	// allowed.
	ErrGrammarViolation = errors.New("grammar violation")

	// ErrSchema is returned when a schema node cannot be turned into a
	// grammar.
	ErrSchema = errors.New("unsupported schema")

	// ErrInternal marks a grammar state with no legal continuation. It is a
	// bug, never a property of the input.
	ErrInternal = errors.New("internal invariant violated")
)

// ViolationError describes a rejected character.
type ViolationError struct {
	Char    rune
	Allowed Charset
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("character %s not allowed, expected one of %q", strconv.QuoteRune(e.Char), e.Allowed.String())
}

func (e *ViolationError) Unwrap() error { return ErrGrammarViolation }

func violation(r rune, allowed Charset) error {
	return &ViolationError{Char: r, Allowed: allowed}
}

// SchemaError describes a schema node that cannot be resolved.
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// InternalError reports a grammar state that admits nothing.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return e.Msg }

func (e *InternalError) Unwrap() error { return ErrInternal }
