package tokenizer

import "log/slog"

// Data is everything the enforcer derives from a tokenizer. It is built
// once per vocabulary and shared by every enforcer using it.
type Data struct {
	Tree *Tree
	EOS  int32

	texts     map[int32]string
	wordStart map[int32]struct{}
	decoder   TextProcessor
}

func NewData(proc TextProcessor) *Data {
	d := &Data{
		Tree:      NewTree(),
		EOS:       proc.EOS(),
		texts:     make(map[int32]string),
		wordStart: make(map[int32]struct{}),
		decoder:   proc,
	}

	for _, token := range proc.Tokens() {
		d.Tree.Insert(token.Text, token.ID)
		d.texts[token.ID] = token.Text
		if token.WordStart {
			d.wordStart[token.ID] = struct{}{}
		}
	}

	slog.Debug("tokenizer data", "tokens", len(d.texts), "word starts", len(d.wordStart), "eos", d.EOS)
	return d
}

// Text returns the decoded text of a single token.
func (d *Data) Text(id int32) (string, bool) {
	s, ok := d.texts[id]
	return s, ok
}

// WordStart reports whether id begins a new word.
func (d *Data) WordStart(id int32) bool {
	_, ok := d.wordStart[id]
	return ok
}

func (d *Data) Decode(ids []int32) (string, error) {
	return d.decoder.Decode(ids)
}
