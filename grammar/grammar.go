// Package grammar implements incremental, immutable character grammars and
// a JSON grammar built from a JSON schema.
//
// Every Parser is a persistent value: Accept returns a new Parser and
// leaves the receiver usable, so any number of continuations may branch
// from a shared state without synchronization.
package grammar

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// Parser is an incremental acceptor over single characters.
type Parser interface {
	// Accept consumes r and returns the resulting state. It fails with
	// ErrGrammarViolation if r is not in Allowed.
	Accept(r rune) (Parser, error)

	// Allowed returns the characters Accept would take. It has no side
	// effects.
	Allowed() Charset

	// CanEnd reports whether the input may stop here.
	CanEnd() bool
}

// Validate feeds s to p one rune at a time and returns the final state.
func Validate(p Parser, s string) (Parser, error) {
	for i, r := range s {
		next, err := p.Accept(r)
		if err != nil {
			return p, fmt.Errorf("offset %d: %w", i, err)
		}
		p = next
	}
	return p, nil
}

// Complete is Validate followed by a check that the input may end.
func Complete(p Parser, s string) error {
	p, err := Validate(p, s)
	if err != nil {
		return err
	}
	if !p.CanEnd() {
		return fmt.Errorf("offset %d: unexpected end of input, expected one of %q: %w", len(s), p.Allowed().String(), ErrGrammarViolation)
	}
	return nil
}

// Literal matches exactly its remaining text.
type Literal string

func (l Literal) Accept(r rune) (Parser, error) {
	first, size := utf8.DecodeRuneInString(string(l))
	if len(l) == 0 || first != r {
		return nil, violation(r, l.Allowed())
	}
	return l[size:], nil
}

func (l Literal) Allowed() Charset {
	if len(l) == 0 {
		return Charset{}
	}
	first, _ := utf8.DecodeRuneInString(string(l))
	return NewCharset(string(first))
}

func (l Literal) CanEnd() bool { return len(l) == 0 }

// ForceStop admits nothing and may always end. It stands in for a branch
// that is present but dead, and for sequences that must be stopped without
// failing. With AllowWhitespace set it also absorbs whitespace.
type ForceStop struct {
	AllowWhitespace bool
}

func (f ForceStop) Accept(r rune) (Parser, error) {
	if f.AllowWhitespace && strings.ContainsRune(Whitespace, r) {
		return f, nil
	}
	return nil, violation(r, f.Allowed())
}

func (f ForceStop) Allowed() Charset {
	if f.AllowWhitespace {
		return NewCharset(Whitespace)
	}
	return Charset{}
}

func (ForceStop) CanEnd() bool { return true }

// Union accepts what any of its members accepts.
type Union struct {
	members []Parser
}

// NewUnion returns the union of members. Nested unions are flattened and a
// union of one member is that member.
func NewUnion(members ...Parser) Parser {
	flat := make([]Parser, 0, len(members))
	for _, m := range members {
		if u, ok := m.(*Union); ok {
			flat = append(flat, u.members...)
		} else {
			flat = append(flat, m)
		}
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Union{members: flat}
}

// Members returns the alternatives of u.
func (u *Union) Members() []Parser { return slices.Clone(u.members) }

func (u *Union) Accept(r rune) (Parser, error) {
	var next []Parser
	for _, m := range u.members {
		if !m.Allowed().Contains(r) {
			continue
		}
		p, err := m.Accept(r)
		if err != nil {
			return nil, err
		}
		next = append(next, p)
	}
	if len(next) == 0 {
		return nil, violation(r, u.Allowed())
	}
	return NewUnion(next...), nil
}

func (u *Union) Allowed() Charset {
	var c Charset
	for _, m := range u.members {
		c = c.Union(m.Allowed())
	}
	return c
}

func (u *Union) CanEnd() bool {
	return slices.ContainsFunc(u.members, Parser.CanEnd)
}

// Sequence accepts its members one after the other.
type Sequence struct {
	members []Parser
}

// NewSequence returns the concatenation of members. A sequence of one
// member is that member.
func NewSequence(members ...Parser) Parser {
	if len(members) == 1 {
		return members[0]
	}
	return &Sequence{members: slices.Clone(members)}
}

func (s *Sequence) Accept(r rune) (Parser, error) {
	var next []Parser
	for i, m := range s.members {
		if m.Allowed().Contains(r) {
			p, err := m.Accept(r)
			if err != nil {
				return nil, err
			}
			rest := make([]Parser, 0, len(s.members)-i)
			rest = append(rest, p)
			rest = append(rest, s.members[i+1:]...)
			next = append(next, NewSequence(rest...))
		}
		if !m.CanEnd() {
			break
		}
	}
	if len(next) == 0 {
		return nil, violation(r, s.Allowed())
	}
	return NewUnion(next...), nil
}

func (s *Sequence) Allowed() Charset {
	var c Charset
	for _, m := range s.members {
		c = c.Union(m.Allowed())
		if !m.CanEnd() {
			break
		}
	}
	return c
}

func (s *Sequence) CanEnd() bool {
	for _, m := range s.members {
		if !m.CanEnd() {
			return false
		}
	}
	return true
}
