package grammar

import (
	"strings"

	"github.com/ollama/enforcer/grammar/jsonschema"
)

// List matches a JSON array whose items all follow the same schema.
type List struct {
	res  *resolver
	item *jsonschema.Schema
	path string
	min  int
	max  int // negative when unbounded

	opened bool
	closed bool
	count  int
}

func newList(res *resolver, s *jsonschema.Schema, path string) *List {
	l := &List{res: res, path: path + ".items", max: -1}
	if s != nil {
		l.item = s.Items
		if s.MinItems != nil {
			l.min = *s.MinItems
		}
		if s.MaxItems != nil {
			l.max = *s.MaxItems
		}
		if s.NoItems {
			l.max = 0
		}
	}
	return l
}

// Count returns the number of items finished before the last separator.
func (l *List) Count() int { return l.count }

// items returns how many items exist, counting one still being parsed
// above this frame. Right after the opening bracket the frame above may
// only hold whitespace, so it is not counted yet.
func (l *List) items(e env) int {
	n := l.count
	if !e.top && e.lastNonSpace != '[' {
		n++
	}
	return n
}

func (l *List) allowedFrame(e env) Charset {
	switch {
	case !l.opened:
		return NewCharset("[" + Whitespace)
	case l.closed:
		return NewCharset(Whitespace)
	}

	allowed := Whitespace
	n := l.items(e)
	if n > 0 && (l.max < 0 || n < l.max) {
		allowed += ","
	}
	if n >= l.min {
		allowed += "]"
	}
	return NewCharset(allowed)
}

func (l *List) acceptFrame(r rune, e env) ([]Parser, error) {
	if !l.allowedFrame(e).Contains(r) {
		return nil, violation(r, l.allowedFrame(e))
	}
	if strings.ContainsRune(Whitespace, r) {
		return []Parser{l}, nil
	}

	next := *l
	switch r {
	case '[':
		next.opened = true
		if l.max == 0 {
			return []Parser{&next, ForceStop{AllowWhitespace: true}}, nil
		}
		item, err := l.res.resolve(l.item, l.path)
		if err != nil {
			return nil, err
		}
		if l.min == 0 {
			// the list may also be empty
			item = NewUnion(item, ForceStop{AllowWhitespace: true})
		}
		return []Parser{&next, item}, nil
	case ',':
		next.count++
		item, err := l.res.resolve(l.item, l.path)
		if err != nil {
			return nil, err
		}
		return []Parser{&next, item}, nil
	case ']':
		next.closed = true
	}
	return []Parser{&next}, nil
}

func (l *List) Accept(r rune) (Parser, error) {
	return l.res.parser(l).Accept(r)
}

func (l *List) Allowed() Charset { return l.allowedFrame(env{top: true}) }

func (l *List) CanEnd() bool { return l.closed }
