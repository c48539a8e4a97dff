package tokenizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitSpecialTokens(t *testing.T) {
	vocab := &Vocabulary{
		Values: []string{"<s>", "</s>", "<json>", "<js>", "{", "<pad>"},
		Types: []int32{
			TOKEN_TYPE_CONTROL,
			TOKEN_TYPE_CONTROL,
			TOKEN_TYPE_USER_DEFINED,
			TOKEN_TYPE_USER_DEFINED,
			TOKEN_TYPE_NORMAL,
			TOKEN_TYPE_UNUSED,
		},
	}

	cases := []struct {
		input string
		want  []fragment
	}{
		{`{"a":1}`, []fragment{{value: `{"a":1}`}}},
		{"", []fragment{{value: ""}}},
		{"<s>", []fragment{{value: "<s>", ids: []int32{0}}}},
		{`<s>{"a":1}</s>`, []fragment{
			{value: "<s>", ids: []int32{0}},
			{value: `{"a":1}`},
			{value: "</s>", ids: []int32{1}},
		}},
		{"[<s>,<s>]", []fragment{
			{value: "["},
			{value: "<s>", ids: []int32{0}},
			{value: ","},
			{value: "<s>", ids: []int32{0}},
			{value: "]"},
		}},
		// the earlier entry claims the shared text
		{"x<json>y", []fragment{
			{value: "x"},
			{value: "<json>", ids: []int32{2}},
			{value: "y"},
		}},
		{"<js>on>", []fragment{
			{value: "<js>", ids: []int32{3}},
			{value: "on>"},
		}},
		// normal and unused tokens stay in the text
		{"{<pad>}", []fragment{{value: "{<pad>}"}}},
	}

	for _, tt := range cases {
		t.Run(tt.input, func(t *testing.T) {
			got := splitSpecialTokens(tt.input, vocab)
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(fragment{})); diff != "" {
				t.Errorf("fragments mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if got := splitSpecialTokens("<s>", &Vocabulary{}); len(got) != 1 || got[0].ids != nil {
		t.Errorf("empty vocabulary split %q into %v", "<s>", got)
	}
}

func TestSplitSpecialTokensEmptyValue(t *testing.T) {
	vocab := &Vocabulary{
		Values: []string{"", "<s>", "a"},
		Types:  []int32{TOKEN_TYPE_CONTROL, TOKEN_TYPE_CONTROL, TOKEN_TYPE_NORMAL},
	}

	if diff := cmp.Diff([]string{"<s>"}, vocab.SpecialVocabulary()); diff != "" {
		t.Errorf("special vocabulary mismatch (-want +got):\n%s", diff)
	}

	want := []fragment{{value: "<s>", ids: []int32{1}}, {value: "a"}}
	if diff := cmp.Diff(want, splitSpecialTokens("<s>a", vocab), cmp.AllowUnexported(fragment{})); diff != "" {
		t.Errorf("fragments mismatch (-want +got):\n%s", diff)
	}

	ids, err := NewSentencePiece(vocab).Encode("a")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int32{2}, ids); diff != "" {
		t.Errorf("encode mismatch (-want +got):\n%s", diff)
	}
}
