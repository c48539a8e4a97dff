package tokenizer

import (
	"slices"
	"sync"
)

const (
	TOKEN_TYPE_NORMAL = iota + 1
	TOKEN_TYPE_UNKNOWN
	TOKEN_TYPE_CONTROL
	TOKEN_TYPE_USER_DEFINED
	TOKEN_TYPE_UNUSED
	TOKEN_TYPE_BYTE
)

type Vocabulary struct {
	Values []string
	Types  []int32
	Scores []float32

	BOS, EOS []int32
	AddBOS   bool

	specialOnce sync.Once
	special     []string

	valuesOnce sync.Once
	values     map[string]int32
}

// IsEOS reports whether id ends a sequence.
func (v *Vocabulary) IsEOS(id int32) bool {
	return slices.Contains(v.EOS, id)
}

// Encode returns the id of the token whose value is exactly s, or -1.
func (v *Vocabulary) Encode(s string) int32 {
	v.valuesOnce.Do(func() {
		v.values = make(map[string]int32, len(v.Values))
		for i, value := range v.Values {
			if _, ok := v.values[value]; !ok {
				v.values[value] = int32(i)
			}
		}
	})

	if id, ok := v.values[s]; ok {
		return id
	}

	return -1
}

func (v *Vocabulary) Decode(id int32) string {
	if id < 0 || int(id) >= len(v.Values) {
		return ""
	}
	return v.Values[id]
}

// Type returns the token type of id. Vocabularies without types treat
// every token as normal.
func (v *Vocabulary) Type(id int32) int32 {
	if int(id) >= len(v.Types) {
		return TOKEN_TYPE_NORMAL
	}
	return v.Types[id]
}

// SpecialVocabulary returns the values of control and user defined tokens
// in vocabulary order. Tokens with empty values are left out since they
// match anywhere.
func (v *Vocabulary) SpecialVocabulary() []string {
	v.specialOnce.Do(func() {
		for i := range v.Values {
			if v.Values[i] == "" {
				continue
			}

			switch v.Type(int32(i)) {
			case TOKEN_TYPE_CONTROL, TOKEN_TYPE_USER_DEFINED:
				v.special = append(v.special, v.Values[i])
			}
		}
	})

	return v.special
}
