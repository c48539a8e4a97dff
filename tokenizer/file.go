package tokenizer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fxamacker/cbor/v2"
	"github.com/mitchellh/mapstructure"
)

// vocabularyFile is the on-disk layout shared by every vocabulary format.
type vocabularyFile struct {
	Tokens []string  `mapstructure:"tokens"`
	Types  []int32   `mapstructure:"types"`
	Scores []float32 `mapstructure:"scores"`
	BOS    []int32   `mapstructure:"bos"`
	EOS    []int32   `mapstructure:"eos"`
	AddBOS bool      `mapstructure:"add_bos"`
}

// LoadVocabulary reads a vocabulary from a JSON, CBOR or TOML file, chosen
// by extension.
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadVocabulary(f, strings.TrimPrefix(filepath.Ext(path), "."))
}

// ReadVocabulary decodes a vocabulary in the named format.
func ReadVocabulary(r io.Reader, format string) (*Vocabulary, error) {
	raw := make(map[string]any)
	switch strings.ToLower(format) {
	case "json":
		if err := json.NewDecoder(r).Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode json vocabulary: %w", err)
		}
	case "cbor":
		if err := cbor.NewDecoder(r).Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode cbor vocabulary: %w", err)
		}
	case "toml":
		if _, err := toml.NewDecoder(r).Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode toml vocabulary: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported vocabulary format %q", format)
	}

	var vf vocabularyFile
	if err := mapstructure.Decode(raw, &vf); err != nil {
		return nil, fmt.Errorf("vocabulary: %w", err)
	}

	return vf.vocabulary()
}

func (vf vocabularyFile) vocabulary() (*Vocabulary, error) {
	if len(vf.Tokens) == 0 {
		return nil, fmt.Errorf("vocabulary has no tokens")
	}
	if len(vf.Types) > 0 && len(vf.Types) != len(vf.Tokens) {
		return nil, fmt.Errorf("vocabulary has %d tokens but %d types", len(vf.Tokens), len(vf.Types))
	}
	if len(vf.Scores) > 0 && len(vf.Scores) != len(vf.Tokens) {
		return nil, fmt.Errorf("vocabulary has %d tokens but %d scores", len(vf.Tokens), len(vf.Scores))
	}
	for _, id := range slices.Concat(vf.BOS, vf.EOS) {
		if id < 0 || int(id) >= len(vf.Tokens) {
			return nil, fmt.Errorf("special token id %d out of range", id)
		}
	}

	return &Vocabulary{
		Values: vf.Tokens,
		Types:  vf.Types,
		Scores: vf.Scores,
		BOS:    vf.BOS,
		EOS:    vf.EOS,
		AddBOS: vf.AddBOS,
	}, nil
}

// WriteVocabulary encodes v in the named format.
func WriteVocabulary(w io.Writer, v *Vocabulary, format string) error {
	vf := map[string]any{
		"tokens":  v.Values,
		"types":   v.Types,
		"scores":  v.Scores,
		"bos":     v.BOS,
		"eos":     v.EOS,
		"add_bos": v.AddBOS,
	}

	switch strings.ToLower(format) {
	case "json":
		return json.NewEncoder(w).Encode(vf)
	case "cbor":
		return cbor.NewEncoder(w).Encode(vf)
	case "toml":
		return toml.NewEncoder(w).Encode(vf)
	}
	return fmt.Errorf("unsupported vocabulary format %q", format)
}
