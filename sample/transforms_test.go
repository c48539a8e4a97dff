package sample

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var inf = math.Inf(-1)

// compareLogits treats values within 1e-6 as equal, infinities included
func compareLogits(t *testing.T, name string, want, got []float64) {
	t.Helper()
	opt := cmp.Comparer(func(a, b float64) bool {
		if math.IsInf(a, 0) || math.IsInf(b, 0) {
			return a == b
		}
		return math.Abs(a-b) < 1e-6
	})
	if diff := cmp.Diff(want, got, opt); diff != "" {
		t.Errorf("%s: logits mismatch (-want +got):\n%s", name, diff)
	}
}

func TestTemperature(t *testing.T) {
	got, err := Temperature(0.5).Apply([]float64{2, -1, 4})
	require.NoError(t, err)
	compareLogits(t, "Temperature(0.5)", []float64{-4, -10, 0}, got)

	got, err = Temperature(1).Apply([]float64{2, inf, 4})
	require.NoError(t, err)
	compareLogits(t, "Temperature(1) masked", []float64{-2, inf, 0}, got)

	for _, temp := range []Temperature{0, -1, 3} {
		if _, err := temp.Apply([]float64{1, 2}); err == nil {
			t.Errorf("Temperature(%v): expected error", float64(temp))
		}
	}
}

func TestSoftmax(t *testing.T) {
	got := softmax([]float64{1, -2, 3, 0})
	compareLogits(t, "softmax", []float64{0.113550, 0.005653, 0.839024, 0.041773}, got)

	got = softmax([]float64{1000, 1000, inf})
	compareLogits(t, "softmax large", []float64{0.5, 0.5, 0}, got)

	got = softmax([]float64{inf, inf})
	compareLogits(t, "softmax masked", []float64{0, 0}, got)
}

func TestTopK(t *testing.T) {
	got, err := TopK(2).Apply([]float64{0.1, 0.4, 0.3, 0.2})
	require.NoError(t, err)
	compareLogits(t, "TopK(2)", []float64{inf, 0.4, 0.3, inf}, got)

	got, err = TopK(10).Apply([]float64{0.1, 0.4})
	require.NoError(t, err)
	compareLogits(t, "TopK(10)", []float64{0.1, 0.4}, got)

	// ties keep the lower index
	got, err = TopK(1).Apply([]float64{1, 1})
	require.NoError(t, err)
	compareLogits(t, "TopK(1) tie", []float64{1, inf}, got)

	if _, err := TopK(0).Apply([]float64{1}); err == nil {
		t.Error("TopK(0): expected error")
	}
}

func TestTopP(t *testing.T) {
	// probabilities are roughly 0.64, 0.24, 0.09, 0.03
	got, err := TopP(0.8).Apply([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	compareLogits(t, "TopP(0.8)", []float64{inf, inf, 3, 4}, got)

	if _, err := TopP(1).Apply([]float64{1}); err == nil {
		t.Error("TopP(1): expected error")
	}
}

func TestMinP(t *testing.T) {
	got, err := MinP(0.2).Apply([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	compareLogits(t, "MinP(0.2)", []float64{inf, inf, 3, 4}, got)

	if _, err := MinP(0).Apply([]float64{1}); err == nil {
		t.Error("MinP(0): expected error")
	}
}

func TestMask(t *testing.T) {
	got := Mask([]float64{1, 2, 3, 4}, []int32{3, 1, 9, -1})
	compareLogits(t, "Mask", []float64{inf, 2, inf, 4}, got)

	got = Mask([]float64{1, 2}, nil)
	compareLogits(t, "Mask none", []float64{inf, inf}, got)
}

func TestConstrain(t *testing.T) {
	e := numEnforcer(t)

	logits := make([]float64, len(jsonValues))
	got, err := Constrain(e, []int32{tokOpen}).Apply(logits)
	require.NoError(t, err)

	for i, logit := range got {
		switch int32(i) {
		case tokQuote, tokSpace, tokNumKey, tokNewline:
			if logit != 0 {
				t.Errorf("token %d: want 0, got %v", i, logit)
			}
		default:
			if !math.IsInf(logit, -1) {
				t.Errorf("token %d: want -Inf, got %v", i, logit)
			}
		}
	}
}
