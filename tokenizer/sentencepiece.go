package tokenizer

import (
	"fmt"
	"strconv"
	"strings"

	heap "github.com/emirpasic/gods/v2/trees/binaryheap"

	"github.com/ollama/enforcer/logutil"
)

const spmWhitespaceSep = "▁"

// TextProcessor is the tokenizer surface the enforcer needs.
type TextProcessor interface {
	Decode([]int32) (string, error)
	// Tokens lists every token that may appear in generated text.
	Tokens() []Token
	EOS() int32
}

// Token is a vocabulary entry as it reads in decoded text. Word start
// tokens begin with the space their piece encodes.
type Token struct {
	ID        int32
	Text      string
	WordStart bool
}

type SentencePiece struct {
	vocab *Vocabulary
}

var _ TextProcessor = (*SentencePiece)(nil)

func NewSentencePiece(vocab *Vocabulary) SentencePiece {
	counter := map[int32]int{}
	for i := range vocab.Values {
		counter[vocab.Type(int32(i))]++
	}

	logutil.Trace("Token counts", "normal", counter[TOKEN_TYPE_NORMAL], "unknown", counter[TOKEN_TYPE_UNKNOWN], "control", counter[TOKEN_TYPE_CONTROL],
		"user defined", counter[TOKEN_TYPE_USER_DEFINED], "unused", counter[TOKEN_TYPE_UNUSED], "byte", counter[TOKEN_TYPE_BYTE])

	return SentencePiece{vocab: vocab}
}

func (spm SentencePiece) Vocabulary() *Vocabulary {
	return spm.vocab
}

func (spm SentencePiece) EOS() int32 {
	if len(spm.vocab.EOS) == 0 {
		return -1
	}
	return spm.vocab.EOS[0]
}

func (spm SentencePiece) Tokens() []Token {
	tokens := make([]Token, 0, len(spm.vocab.Values))
	for i, value := range spm.vocab.Values {
		id := int32(i)
		switch spm.vocab.Type(id) {
		case TOKEN_TYPE_NORMAL, TOKEN_TYPE_USER_DEFINED:
		default:
			continue
		}
		if value == "" || spm.vocab.IsEOS(id) {
			continue
		}

		tokens = append(tokens, Token{
			ID:        id,
			Text:      strings.ReplaceAll(value, spmWhitespaceSep, " "),
			WordStart: strings.HasPrefix(value, spmWhitespaceSep),
		})
	}
	return tokens
}

// score ranks merges. Without scores longer pieces win.
func (spm SentencePiece) score(id int32) float32 {
	if int(id) < len(spm.vocab.Scores) {
		return spm.vocab.Scores[id]
	}
	return float32(len(spm.vocab.Values[id]))
}

type candidate struct {
	a, b  int
	score float32
	size  int
}

type merge struct {
	p, n  int
	runes []rune
}

// Encode tokenizes s. Special tokens are matched first; the remaining text
// is merged pairwise by score, falling back to byte tokens.
func (spm SentencePiece) Encode(s string) ([]int32, error) {
	var ids []int32
	if spm.vocab.AddBOS && len(spm.vocab.BOS) > 0 {
		ids = append(ids, spm.vocab.BOS[0])
	}

	for _, frag := range splitSpecialTokens(s, spm.vocab) {
		if len(frag.ids) > 0 {
			ids = append(ids, frag.ids...)
			continue
		}

		text := strings.ReplaceAll(frag.value, " ", spmWhitespaceSep)
		if text == "" {
			continue
		}

		if id := spm.vocab.Encode(text); id >= 0 {
			ids = append(ids, id)
			continue
		}

		runes := []rune(text)
		merges := make([]merge, len(runes))
		for r := range runes {
			merges[r] = merge{
				p:     r - 1,
				n:     r + 1,
				runes: []rune{runes[r]},
			}
		}

		pairwise := func(a, b int) *candidate {
			if a < 0 || b >= len(runes) {
				return nil
			}

			left, right := string(merges[a].runes), string(merges[b].runes)
			if id := spm.vocab.Encode(left + right); id >= 0 {
				return &candidate{
					a:     a,
					b:     b,
					score: spm.score(id),
					size:  len(left) + len(right),
				}
			}

			return nil
		}

		q := heap.NewWith(func(i, j *candidate) int {
			switch {
			case i.score > j.score:
				return -1
			case i.score < j.score:
				return 1
			}
			return i.a - j.a
		})

		for i := range len(runes) - 1 {
			if pair := pairwise(i, i+1); pair != nil {
				q.Push(pair)
			}
		}

		for !q.Empty() {
			pair, _ := q.Pop()
			left, right := merges[pair.a], merges[pair.b]

			if len(left.runes) == 0 || len(right.runes) == 0 || len(string(left.runes))+len(string(right.runes)) != pair.size {
				continue
			}

			merges[pair.a].runes = append(left.runes, right.runes...)
			merges[pair.b].runes = nil
			merges[pair.a].n = right.n
			if right.n < len(merges) {
				merges[right.n].p = pair.a
			}

			if pair := pairwise(merges[pair.a].p, pair.a); pair != nil {
				q.Push(pair)
			}

			if pair := pairwise(pair.a, merges[pair.a].n); pair != nil {
				q.Push(pair)
			}
		}

		for _, m := range merges {
			token := string(m.runes)
			if token == "" {
				continue
			}

			if id := spm.vocab.Encode(token); id >= 0 {
				ids = append(ids, id)
				continue
			}

			// fall back to byte tokens
			for _, b := range []byte(token) {
				byteToken := fmt.Sprintf("<0x%02X>", b)
				id := spm.vocab.Encode(byteToken)
				if id < 0 {
					return nil, fmt.Errorf("no token for %q", token)
				}
				ids = append(ids, id)
			}
		}
	}

	logutil.Trace("encoded", "string", s, "ids", ids)
	return ids, nil
}

// Decode joins the pieces of ids. The space encoded by the first piece is
// dropped.
func (spm SentencePiece) Decode(ids []int32) (string, error) {
	var sb strings.Builder
	for _, id := range ids {
		if id < 0 || int(id) >= len(spm.vocab.Values) {
			return "", fmt.Errorf("token id %d out of range", id)
		}

		data := spm.vocab.Decode(id)
		switch spm.vocab.Type(id) {
		case TOKEN_TYPE_CONTROL, TOKEN_TYPE_UNKNOWN, TOKEN_TYPE_UNUSED:
			continue
		}

		// byte tokens like "<0xEA>" carry a single raw byte
		if len(data) == 6 && strings.HasPrefix(data, "<0x") && strings.HasSuffix(data, ">") {
			byteVal, err := strconv.ParseUint(data[1:5], 0, 8)
			if err != nil {
				return "", fmt.Errorf("failed to parse hex byte: %v", err)
			}

			sb.WriteByte(byte(byteVal))
			continue
		}

		sb.WriteString(strings.ReplaceAll(data, spmWhitespaceSep, " "))
	}

	logutil.Trace("decoded", "ids", ids, "string", sb.String())
	return strings.TrimPrefix(sb.String(), " "), nil
}
