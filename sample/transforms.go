package sample

import (
	"cmp"
	"errors"
	"math"
	"slices"

	pq "github.com/emirpasic/gods/v2/queues/priorityqueue"
	"gonum.org/v1/gonum/floats"
)

type Transform interface {
	Apply([]float64) ([]float64, error)
}

// TransformFunc adapts a function to a Transform.
type TransformFunc func([]float64) ([]float64, error)

func (f TransformFunc) Apply(logits []float64) ([]float64, error) {
	return f(logits)
}

func softmax(logits []float64) []float64 {
	tt := make([]float64, len(logits))
	if len(logits) == 0 {
		return tt
	}

	maxLogit := slices.Max(logits)
	if math.IsInf(maxLogit, -1) {
		return tt
	}

	var sum float64
	for i, v := range logits {
		tt[i] = math.Exp(v - maxLogit)
		sum += tt[i]
	}
	floats.Scale(1/sum, tt)
	return tt
}

type Temperature float64

func (t Temperature) Apply(logits []float64) ([]float64, error) {
	if t == 0 {
		return nil, errors.New("use Greedy sampler instead of Temperature(0)")
	}
	if t < 0 || t > 2 {
		return nil, errors.New("temperature must be between 0 and 2")
	}
	temp := math.Max(float64(t), 1e-7)
	if len(logits) == 0 {
		return logits, nil
	}

	// subtracting max logit to avoid under/overflow
	maxLogit := slices.Max(logits)
	if math.IsInf(maxLogit, -1) {
		return logits, nil
	}
	for i := range logits {
		logits[i] = (logits[i] - maxLogit) / temp
	}

	return logits, nil
}

type logitMap struct {
	index int
	logit float64
}

func logitMapComparator(a, b logitMap) int {
	if c := -cmp.Compare(a.logit, b.logit); c != 0 {
		return c
	}
	return cmp.Compare(a.index, b.index)
}

type TopK int

func (k TopK) Apply(logits []float64) ([]float64, error) {
	if k <= 0 {
		return nil, errors.New("k must be greater than 0")
	}
	if int(k) >= len(logits) {
		return logits, nil
	}

	q := pq.NewWith(logitMapComparator)
	for i, logit := range logits {
		q.Enqueue(logitMap{index: i, logit: logit})
	}

	validLogits := make(map[int]float64)
	for range k {
		logitMap, _ := q.Dequeue()
		validLogits[logitMap.index] = logitMap.logit
	}

	for i := range logits {
		if _, ok := validLogits[i]; !ok {
			logits[i] = math.Inf(-1)
		}
	}

	return logits, nil
}

type TopP float64

func (p TopP) Apply(logits []float64) ([]float64, error) {
	if p <= 0 || p >= 1 {
		return nil, errors.New("p must be between 0 and 1")
	}

	probs := softmax(logits)
	indices := make([]int, len(probs))
	for i := range indices {
		indices[i] = i
	}

	// sort in descending order
	slices.SortStableFunc(indices, func(i, j int) int {
		return cmp.Compare(probs[j], probs[i])
	})

	var cumSum float64
	for i, idx := range indices {
		cumSum += probs[idx]
		if cumSum > float64(p) {
			for _, idx := range indices[i+1:] {
				logits[idx] = math.Inf(-1)
			}
			break
		}
	}
	return logits, nil
}

type MinP float64

func (p MinP) Apply(logits []float64) ([]float64, error) {
	if p <= 0 || p >= 1 {
		return nil, errors.New("p must be between 0 and 1")
	}

	if len(logits) == 0 {
		return logits, nil
	}

	probs := softmax(logits)
	threshold := slices.Max(probs) * float64(p)

	for i, prob := range probs {
		if prob < threshold {
			logits[i] = math.Inf(-1)
		}
	}

	return logits, nil
}

// Mask keeps the logits of allowed token ids and sets every other logit to
// negative infinity. Ids outside the logits are ignored.
func Mask(logits []float64, allowed []int32) []float64 {
	keep := make([]bool, len(logits))
	for _, id := range allowed {
		if id >= 0 && int(id) < len(logits) {
			keep[id] = true
		}
	}

	for i := range logits {
		if !keep[i] {
			logits[i] = math.Inf(-1)
		}
	}
	return logits
}

// Constrain returns a transform masking every token the enforcer does not
// allow after seq.
func Constrain(e *Enforcer, seq []int32) Transform {
	return TransformFunc(func(logits []float64) ([]float64, error) {
		allowed, err := e.AllowedTokens(seq)
		if err != nil {
			return nil, err
		}
		return Mask(logits, allowed), nil
	})
}
