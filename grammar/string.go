package grammar

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"unicode/utf8"
)

type stringPhase int

const (
	stringStart stringPhase = iota
	stringBody
	stringEscape
	stringUnicode
	stringEnd
)

const (
	escapeChars = `"\/bfnrtu`
	hexDigits   = "0123456789abcdefABCDEF"
)

// String matches a JSON string, or a bare literal from a fixed set.
//
// Without candidates it is an open quoted string over the configured
// alphabet with JSON escapes. With candidates it only admits text that
// prefixes one of them; candidates are compared in their escaped form.
// Unquoted strings always have candidates and are used for true, false,
// null and non-string enum members.
type String struct {
	alphabet   Charset
	candidates []string
	quoted     bool

	phase stringPhase
	text  string
	hex   int
}

func newString(alphabet Charset) *String {
	return &String{alphabet: alphabet, quoted: true}
}

func newEnumString(candidates []string) *String {
	return &String{candidates: candidates, quoted: true}
}

func newLiteralSet(candidates ...string) *String {
	return &String{candidates: candidates}
}

// Matched returns the text consumed between the quotes, still escaped.
func (s *String) Matched() string { return s.text }

func (s *String) Allowed() Charset {
	switch s.phase {
	case stringStart:
		if s.quoted {
			return NewCharset(`"` + Whitespace)
		}
		return s.continuations().Union(NewCharset(Whitespace))
	case stringEscape:
		return NewCharset(escapeChars)
	case stringUnicode:
		return NewCharset(hexDigits)
	case stringEnd:
		return NewCharset(Whitespace)
	}

	if s.candidates == nil {
		return s.alphabet.Without(`"\`).Union(NewCharset(`"\`))
	}

	c := s.continuations()
	if slices.Contains(s.candidates, s.text) {
		if s.quoted {
			c = c.Union(NewCharset(`"`))
		} else {
			c = c.Union(NewCharset(Whitespace))
		}
	}
	return c
}

// continuations returns the next rune of every candidate that extends the
// text matched so far.
func (s *String) continuations() Charset {
	var sb strings.Builder
	for _, c := range s.candidates {
		if len(c) > len(s.text) && strings.HasPrefix(c, s.text) {
			r, _ := utf8.DecodeRuneInString(c[len(s.text):])
			sb.WriteRune(r)
		}
	}
	return NewCharset(sb.String())
}

func (s *String) CanEnd() bool {
	if s.phase == stringEnd {
		return true
	}
	return !s.quoted && s.phase == stringBody && slices.Contains(s.candidates, s.text)
}

func (s *String) Accept(r rune) (Parser, error) {
	if !s.Allowed().Contains(r) {
		return nil, violation(r, s.Allowed())
	}

	next := *s
	space := strings.ContainsRune(Whitespace, r)
	switch s.phase {
	case stringStart:
		switch {
		case space:
		case s.quoted:
			next.phase = stringBody
		default:
			next.phase = stringBody
			next.text = string(r)
		}
	case stringBody:
		switch {
		case s.quoted && r == '"' && !pendingEscape(s.text):
			next.phase = stringEnd
		case !s.quoted && space:
			next.phase = stringEnd
		case s.candidates == nil && r == '\\':
			next.phase = stringEscape
			next.text += string(r)
		default:
			next.text += string(r)
		}
	case stringEscape:
		next.text += string(r)
		next.phase = stringBody
		if r == 'u' {
			next.phase = stringUnicode
			next.hex = 4
		}
	case stringUnicode:
		next.text += string(r)
		next.hex--
		if next.hex == 0 {
			next.phase = stringBody
		}
	}
	return &next, nil
}

// pendingEscape reports whether text ends in an unpaired backslash.
func pendingEscape(text string) bool {
	n := len(text) - len(strings.TrimRight(text, `\`))
	return n%2 == 1
}

// escape returns the JSON string body for s, without the quotes.
func escape(s string) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return s
	}
	return strings.TrimSuffix(strings.TrimSuffix(b.String(), "\n"), `"`)[1:]
}

// unescape decodes the body of a JSON string. Malformed input is returned
// unchanged.
func unescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
