package grammar

import "strings"

const digits = "0123456789"

// Number matches a JSON number. Without fraction it only matches integers.
type Number struct {
	fraction bool

	text     string
	dot      bool
	exp      bool
	trailing bool
}

func newNumber(fraction bool) *Number {
	return &Number{fraction: fraction}
}

func (n *Number) last() byte {
	if n.text == "" {
		return 0
	}
	return n.text[len(n.text)-1]
}

func (n *Number) Allowed() Charset {
	if n.trailing {
		return NewCharset(Whitespace)
	}

	switch last := n.last(); {
	case n.text == "":
		return NewCharset(digits + "-" + Whitespace)
	case last == '-' && n.text == "-":
		return NewCharset(digits)
	case last == '.', last == '+', last == '-':
		return NewCharset(digits)
	case last == 'e', last == 'E':
		return NewCharset(digits + "+-")
	}

	allowed := Whitespace
	if n.exp || n.dot || strings.TrimPrefix(n.text, "-") != "0" {
		allowed += digits
	}
	if n.fraction && !n.dot && !n.exp {
		allowed += "."
	}
	if n.fraction && !n.exp {
		allowed += "eE"
	}
	return NewCharset(allowed)
}

func (n *Number) CanEnd() bool {
	last := n.last()
	return n.trailing || (last >= '0' && last <= '9')
}

func (n *Number) Accept(r rune) (Parser, error) {
	if !n.Allowed().Contains(r) {
		return nil, violation(r, n.Allowed())
	}

	next := *n
	switch {
	case strings.ContainsRune(Whitespace, r):
		if n.text != "" {
			next.trailing = true
		}
		return &next, nil
	case r == '.':
		next.dot = true
	case r == 'e' || r == 'E':
		next.exp = true
	}
	next.text += string(r)
	return &next, nil
}
