package grammar

import (
	"strings"
)

// env is what a frame can see of the stack around it.
type env struct {
	// top is set when no other frame sits above this one.
	top bool
	// lastString is the text of the most recently finished string frame.
	lastString string
	// lastNonSpace is the last non-whitespace character consumed.
	lastNonSpace rune
}

// frame is implemented by grammars that open nested values. Instead of
// pushing onto a shared stack, acceptFrame returns the frames that replace
// it: its own next state followed by any children it opens.
type frame interface {
	Parser
	acceptFrame(r rune, e env) ([]Parser, error)
	allowedFrame(e env) Charset
}

// JSONParser drives a stack of frames, outermost first, that together
// describe the nested JSON values currently open.
type JSONParser struct {
	cfg    *config
	frames []Parser

	lastString   string
	lastNonSpace rune
	spaces       int
}

// Depth returns the number of open frames.
func (p *JSONParser) Depth() int { return len(p.frames) }

func (p *JSONParser) Accept(r rune) (Parser, error) {
	space := strings.ContainsRune(Whitespace, r)
	if space && p.spaces >= p.cfg.maxWhitespace {
		return nil, violation(r, p.Allowed())
	}

	if len(p.frames) == 0 {
		if !space {
			return nil, violation(r, p.Allowed())
		}
		return p.next(p.frames, p.lastString, r), nil
	}

	lastString := p.lastString
	for i := len(p.frames) - 1; i >= 0; i-- {
		f := p.frames[i]
		e := env{top: i == len(p.frames)-1, lastString: lastString, lastNonSpace: p.lastNonSpace}
		if allowedIn(f, e).Contains(r) {
			branches, err := advance(f, r, e)
			if err != nil {
				return nil, err
			}

			parsers := make([]Parser, len(branches))
			for j, branch := range branches {
				frames := make([]Parser, 0, i+len(branch))
				frames = append(frames, p.frames[:i]...)
				frames = append(frames, branch...)
				parsers[j] = p.next(frames, lastString, r)
			}
			return NewUnion(parsers...), nil
		}

		// r belongs to a frame further down, so this one must be finished
		if !f.CanEnd() {
			break
		}
		if s, ok := f.(*String); ok {
			lastString = s.Matched()
		}
	}
	return nil, violation(r, p.Allowed())
}

func (p *JSONParser) next(frames []Parser, lastString string, r rune) *JSONParser {
	n := &JSONParser{
		cfg:          p.cfg,
		frames:       frames,
		lastString:   lastString,
		lastNonSpace: r,
	}
	if strings.ContainsRune(Whitespace, r) {
		n.spaces = p.spaces + 1
		n.lastNonSpace = p.lastNonSpace
	}
	return n
}

func (p *JSONParser) Allowed() Charset {
	var c Charset
	if len(p.frames) == 0 {
		// parsing is complete, but callers need a non-empty candidate set
		c = NewCharset(Whitespace)
	}
	for i := len(p.frames) - 1; i >= 0; i-- {
		f := p.frames[i]
		c = c.Union(allowedIn(f, env{top: i == len(p.frames)-1, lastString: p.lastString, lastNonSpace: p.lastNonSpace}))
		if !f.CanEnd() {
			break
		}
	}
	if p.spaces >= p.cfg.maxWhitespace {
		c = c.Without(Whitespace)
	}
	return c
}

func (p *JSONParser) CanEnd() bool {
	for _, f := range p.frames {
		if !f.CanEnd() {
			return false
		}
	}
	return true
}

// allowedIn is Allowed with frames given their stack context.
func allowedIn(p Parser, e env) Charset {
	switch p := p.(type) {
	case frame:
		return p.allowedFrame(e)
	case *Union:
		var c Charset
		for _, m := range p.members {
			c = c.Union(allowedIn(m, e))
		}
		return c
	}
	return p.Allowed()
}

// advance applies r to p and returns the possible replacements for its
// slot. A union whose members all stay single frames remains one union
// frame; once a member opens children every member gets its own branch,
// since each branch now has a different stack.
func advance(p Parser, r rune, e env) ([][]Parser, error) {
	switch p := p.(type) {
	case frame:
		frames, err := p.acceptFrame(r, e)
		if err != nil {
			return nil, err
		}
		return [][]Parser{frames}, nil
	case *Union:
		var branches [][]Parser
		for _, m := range p.members {
			if !allowedIn(m, e).Contains(r) {
				continue
			}
			b, err := advance(m, r, e)
			if err != nil {
				return nil, err
			}
			branches = append(branches, b...)
		}
		if len(branches) == 0 {
			return nil, violation(r, allowedIn(p, e))
		}

		single := make([]Parser, 0, len(branches))
		for _, b := range branches {
			if len(b) != 1 {
				return branches, nil
			}
			single = append(single, b[0])
		}
		return [][]Parser{{NewUnion(single...)}}, nil
	}

	next, err := p.Accept(r)
	if err != nil {
		return nil, err
	}
	return [][]Parser{{next}}, nil
}
