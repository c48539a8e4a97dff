package sample

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeighted(t *testing.T) {
	idx, err := Weighted(nil).Sample([]float32{float32(math.Inf(-1)), 2, float32(math.Inf(-1)), float32(math.Inf(-1))})
	if err != nil {
		t.Error(err)
		return
	}
	want := int32(1)
	if diff := cmp.Diff(want, idx); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}

	idx, err = Weighted(nil).Sample([]float32{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))})
	if err == nil {
		t.Error("expected error for no valid tokens, got index", idx)
	}

	// the same seed draws the same tokens
	seed := int64(42)
	a, b := Weighted(&seed), Weighted(&seed)
	for range 10 {
		x, err := a.Sample([]float32{1, 2, 3, 4})
		require.NoError(t, err)
		y, err := b.Sample([]float32{1, 2, 3, 4})
		require.NoError(t, err)
		if x != y {
			t.Fatalf("seeded samplers diverged: %d != %d", x, y)
		}
	}
}

func TestGreedy(t *testing.T) {
	got, err := Greedy().Sample([]float32{1, 4, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, int32(1), got)

	_, err = Greedy().Sample(nil)
	assert.Error(t, err)

	_, err = Greedy().Sample([]float32{float32(math.Inf(-1))})
	assert.Error(t, err)
}

func TestSample(t *testing.T) {
	input := []float32{1, 2, 3, 4}

	var callOrder []int
	mock1 := &testTransform{
		id:        1,
		callOrder: &callOrder,
	}
	mock2 := &testTransform{
		id:        2,
		callOrder: &callOrder,
	}
	mock3 := &testTransform{
		id:        3,
		callOrder: &callOrder,
	}

	got, err := Greedy(mock1, mock2).Sample(input, mock3)
	if err != nil {
		t.Error(err)
		return
	}

	want := int32(3) // Greedy sampler should pick highest logit
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sampled index mismatch (-want +got):\n%s", diff)
	}
	wantOrder := []int{3, 1, 2}
	if diff := cmp.Diff(wantOrder, callOrder); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	callOrder = nil

	_, err = Weighted(nil, mock1, mock2, mock3).Sample(input)
	if err != nil {
		t.Error(err)
		return
	}
	wantOrder = []int{1, 2, 3}
	if diff := cmp.Diff(wantOrder, callOrder); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}

	errMock := &testTransform{
		returnErr: fmt.Errorf("mock error"),
	}
	_, err = Weighted(nil, mock1, errMock, mock2).Sample(input)
	if err == nil {
		t.Error("Expected error from sampler")
	}
}

type testTransform struct {
	id        int
	callOrder *[]int
	returnErr error
}

func (ts *testTransform) Apply(logits []float64) ([]float64, error) {
	if ts.callOrder != nil {
		*ts.callOrder = append(*ts.callOrder, ts.id)
	}
	if ts.returnErr != nil {
		return nil, ts.returnErr
	}
	return logits, nil
}

// rankModel prefers lower token ids and avoids whitespace tokens.
type rankModel struct {
	calls int
}

func (m *rankModel) Logits(_ context.Context, tokens []int32) ([]float32, error) {
	m.calls++
	logits := make([]float32, len(jsonValues))
	for i := range logits {
		logits[i] = -float32(i)
	}
	logits[tokSpace] = -100
	logits[tokNewline] = -100
	return logits, nil
}

func TestGenerate(t *testing.T) {
	e := numEnforcer(t)
	m := &rankModel{}

	got, err := Generate(context.Background(), e, m, []int32{tokBOS}, Greedy(), 0)
	require.NoError(t, err)

	want := []int32{tokOpen, tokQuote, tokNum, tokQuote, tokColon, tokOne, tokClose}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("generated tokens mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, len(want)+1, m.calls)

	text, err := jsonData(t).Decode(got)
	require.NoError(t, err)
	assert.Equal(t, `{"num":1}`, text)

	ok, err := e.Complete(text)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenerateLimit(t *testing.T) {
	got, err := Generate(context.Background(), numEnforcer(t), &rankModel{}, nil, Greedy(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int32{tokOpen, tokQuote, tokNum}, got)
}

func TestGenerateWeighted(t *testing.T) {
	seed := int64(7)
	e := numEnforcer(t)
	got, err := Generate(context.Background(), e, &rankModel{}, []int32{tokBOS}, Weighted(&seed, Temperature(1.5)), 64)
	require.NoError(t, err)

	// every sampled token was allowed, so whatever finished is valid
	if len(got) < 64 {
		text, err := jsonData(t).Decode(got)
		require.NoError(t, err)
		ok, err := e.Complete(text)
		require.NoError(t, err)
		assert.True(t, ok, "generated %q", text)
	}
}

func TestGenerateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, numEnforcer(t), &rankModel{}, nil, Greedy(), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

type failingModel struct{}

func (failingModel) Logits(context.Context, []int32) ([]float32, error) {
	return nil, errors.New("model unavailable")
}

func TestGenerateModelError(t *testing.T) {
	_, err := Generate(context.Background(), numEnforcer(t), failingModel{}, nil, Greedy(), 0)
	assert.ErrorContains(t, err, "model unavailable")
}

func BenchmarkSample(b *testing.B) {
	transforms := []Transform{
		Temperature(0.5),
		TopK(10),
		TopP(0.9),
		MinP(0.2),
	}

	samplers := map[string]Sampler{
		"Greedy":   Greedy(transforms...),
		"Weighted": Weighted(nil, transforms...),
	}

	logits := make([]float32, 1<<16)
	for i := range logits {
		logits[i] = rand.Float32()
	}

	for name, s := range samplers {
		b.Run(name, func(b *testing.B) {
			b.ResetTimer()
			for range b.N {
				if _, err := s.Sample(logits); err != nil {
					b.Error(err)
				}
			}
		})
	}
}

func BenchmarkAllowedTokens(b *testing.B) {
	root := numEnforcer(b).root
	data := jsonData(b)
	seq := []int32{tokOpen, tokNumKey, tokColon, tokOne}

	b.ResetTimer()
	for range b.N {
		e := NewEnforcer(data, root)
		for i := range seq {
			if _, err := e.AllowedTokens(seq[:i+1]); err != nil {
				b.Fatal(err)
			}
		}
	}
}
