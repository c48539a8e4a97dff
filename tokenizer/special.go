package tokenizer

import "strings"

// fragment is a piece of input text. Fragments holding ids have already
// been matched to a special token.
type fragment struct {
	value string
	ids   []int32
}

// splitSpecialTokens cuts the special tokens of vocab out of s. Specials
// are matched in vocabulary order, so an earlier token claims text that a
// later one would also match.
func splitSpecialTokens(s string, vocab *Vocabulary) []fragment {
	fragments := []fragment{{value: s}}
	for _, special := range vocab.SpecialVocabulary() {
		if !strings.Contains(s, special) {
			continue
		}

		id := vocab.Encode(special)
		next := make([]fragment, 0, len(fragments))
		for _, frag := range fragments {
			if frag.ids != nil {
				next = append(next, frag)
				continue
			}

			rest := frag.value
			for {
				before, after, found := strings.Cut(rest, special)
				if before != "" {
					next = append(next, fragment{value: before})
				}
				if !found {
					break
				}
				next = append(next, fragment{value: special, ids: []int32{id}})
				rest = after
			}
		}
		fragments = next
	}

	return fragments
}
