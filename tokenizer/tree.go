package tokenizer

import "slices"

// Tree is a prefix tree over token texts. Each node records the ids of the
// tokens whose text ends there. A Tree is not modified after it is built and
// may be shared freely.
type Tree struct {
	children map[rune]*Tree
	ids      []int32
}

func NewTree() *Tree {
	return &Tree{}
}

// Insert records id at the node reached by text.
func (t *Tree) Insert(text string, id int32) {
	n := t
	for _, r := range text {
		if n.children == nil {
			n.children = make(map[rune]*Tree)
		}

		child, ok := n.children[r]
		if !ok {
			child = &Tree{}
			n.children[r] = child
		}
		n = child
	}
	n.ids = append(n.ids, id)
}

// Child returns the node below t for r, or nil.
func (t *Tree) Child(r rune) *Tree {
	if t.children == nil {
		return nil
	}
	return t.children[r]
}

// IDs returns the tokens ending at t.
func (t *Tree) IDs() []int32 {
	return slices.Clone(t.ids)
}

// Each calls fn for every child of t until fn returns false.
func (t *Tree) Each(fn func(r rune, child *Tree) bool) {
	for r, child := range t.children {
		if !fn(r, child) {
			return
		}
	}
}

// Len returns the number of children of t.
func (t *Tree) Len() int {
	return len(t.children)
}
