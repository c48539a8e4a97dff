package sample

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/ollama/enforcer/grammar"
	"github.com/ollama/enforcer/logutil"
	"github.com/ollama/enforcer/tokenizer"
)

// Enforcer computes the tokens a grammar allows after a token sequence.
//
// Results are memoized per prefix, so a decode loop that extends its
// sequence one token at a time only feeds the new characters to the
// grammar. An Enforcer is not safe for concurrent use; use one per batch
// and Reset it when the batch is done.
type Enforcer struct {
	id     uuid.UUID
	data   *tokenizer.Data
	root   grammar.Parser
	states map[string]*prefixState
}

type prefixState struct {
	parser grammar.Parser
	// word holds the tokens since the last word start
	word []int32
	// blank is set while nothing has been decoded since the initial state,
	// so the next leading space is dropped the way Decode drops it
	blank   bool
	allowed []int32
}

func NewEnforcer(data *tokenizer.Data, root grammar.Parser) *Enforcer {
	e := &Enforcer{
		id:     uuid.New(),
		data:   data,
		root:   root,
		states: make(map[string]*prefixState),
	}
	slog.Debug("new enforcer", "enforcer", e.id)
	return e
}

func (e *Enforcer) ID() uuid.UUID { return e.id }

func (e *Enforcer) EOS() int32 { return e.data.EOS }

// Len returns the number of memoized prefixes.
func (e *Enforcer) Len() int { return len(e.states) }

// Reset drops every memoized prefix.
func (e *Enforcer) Reset() {
	clear(e.states)
}

func key(seq []int32) string {
	b := make([]byte, 0, 4*len(seq))
	for _, id := range seq {
		b = binary.LittleEndian.AppendUint32(b, uint32(id))
	}
	return string(b)
}

// StartSequence registers prompt as a prefix at the grammar's initial
// state without feeding it to the grammar, and returns the tokens allowed
// to follow it.
func (e *Enforcer) StartSequence(prompt []int32) []int32 {
	st := &prefixState{parser: e.root, blank: true}
	e.remember(key(prompt), prompt, st)
	return slices.Clone(st.allowed)
}

// AllowedTokens returns the sorted ids of the tokens that may follow seq.
// The end of sequence token is included once the grammar may stop.
func (e *Enforcer) AllowedTokens(seq []int32) ([]int32, error) {
	k := key(seq)
	if st, ok := e.states[k]; ok {
		return slices.Clone(st.allowed), nil
	}

	var st *prefixState
	var err error
	if prev, ok := e.states[key(seq[:max(len(seq)-1, 0)])]; ok && len(seq) > 0 {
		st, err = e.step(prev, seq)
	} else {
		logutil.Trace("cold start", "enforcer", e.id, "tokens", len(seq))
		st, err = e.replay(seq)
	}
	if err != nil {
		return nil, err
	}

	e.remember(k, seq, st)
	return slices.Clone(st.allowed), nil
}

// replay feeds the whole decoded sequence to a fresh grammar.
func (e *Enforcer) replay(seq []int32) (*prefixState, error) {
	text, err := e.data.Decode(seq)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	start := len(seq)
	for start > 0 {
		start--
		if e.data.WordStart(seq[start]) {
			break
		}
	}

	blank := true
	for _, id := range seq {
		if !e.blank(id) {
			blank = false
			break
		}
	}

	return &prefixState{
		parser: e.feed(e.root, text, seq),
		word:   slices.Clone(seq[start:]),
		blank:  blank,
	}, nil
}

// step extends prev by the last token of seq.
func (e *Enforcer) step(prev *prefixState, seq []int32) (*prefixState, error) {
	id := seq[len(seq)-1]

	var text string
	var word []int32
	if s, ok := e.data.Text(id); ok && e.data.WordStart(id) {
		text, word = s, []int32{id}
		if prev.blank {
			text = strings.TrimPrefix(text, " ")
		}
	} else {
		// pieces of one word do not always decode independently, so
		// take the difference of the word decoded with and without id
		word = append(slices.Clone(prev.word), id)

		before, err := e.data.Decode(prev.word)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		after, err := e.data.Decode(word)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		if len(after) > len(before) {
			text = after[len(before):]
		}
	}

	return &prefixState{
		parser: e.feed(prev.parser, text, seq),
		word:   word,
		blank:  prev.blank && e.blank(id),
	}, nil
}

// blank reports whether id decodes to nothing, like control tokens do.
func (e *Enforcer) blank(id int32) bool {
	if s, ok := e.data.Text(id); ok {
		return s == ""
	}
	s, err := e.data.Decode([]int32{id})
	return err == nil && s == ""
}

// feed applies text to p. A rejected character stops the grammar instead
// of failing, since a sequence that already finished may keep receiving
// tokens while the rest of its batch decodes.
func (e *Enforcer) feed(p grammar.Parser, text string, seq []int32) grammar.Parser {
	next, err := grammar.Validate(p, text)
	if err != nil {
		slog.Debug("grammar stopped", "enforcer", e.id, "tokens", len(seq), "text", text, "error", err)
		return grammar.ForceStop{}
	}
	return next
}

func (e *Enforcer) remember(k string, seq []int32, st *prefixState) {
	st.allowed = e.collect(st.parser)
	if len(st.allowed) == 0 {
		prefix, _ := e.data.Decode(seq)
		err := &grammar.InternalError{Msg: fmt.Sprintf("no token allowed after %q", prefix)}
		slog.Error("enforcer", "enforcer", e.id, "prefix", prefix, "error", err)
		st.allowed = []int32{e.data.EOS}
	}
	e.states[k] = st
}

// collect walks the token tree along the characters p allows.
func (e *Enforcer) collect(p grammar.Parser) []int32 {
	var allowed []int32
	var walk func(node *tokenizer.Tree, p grammar.Parser)
	walk = func(node *tokenizer.Tree, p grammar.Parser) {
		allowed = append(allowed, node.IDs()...)

		chars := p.Allowed()
		node.Each(func(r rune, child *tokenizer.Tree) bool {
			if !chars.Contains(r) {
				return true
			}

			next, err := p.Accept(r)
			if err != nil {
				logutil.Trace("allowed character rejected", "enforcer", e.id, "char", string(r), "error", err)
				return true
			}
			walk(child, next)
			return true
		})
	}
	walk(e.data.Tree, p)

	if p.CanEnd() && e.data.EOS >= 0 {
		allowed = append(allowed, e.data.EOS)
	}
	slices.Sort(allowed)
	return slices.Compact(allowed)
}

// Complete reports whether text, read from the grammar's initial state,
// is a finished document.
func (e *Enforcer) Complete(text string) (bool, error) {
	if err := grammar.Complete(e.root, text); err != nil {
		if errors.Is(err, grammar.ErrGrammarViolation) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
