package sample

import (
	"errors"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// Sampler picks a token id from logits. Transforms passed to Sample run
// before the sampler's own.
type Sampler interface {
	Sample(logits []float32, transforms ...Transform) (int32, error)
}

func apply(logits []float32, transforms ...[]Transform) ([]float64, error) {
	logits64 := make([]float64, len(logits))
	for i, v := range logits {
		logits64[i] = float64(v)
	}

	var err error
	for _, ts := range transforms {
		for _, t := range ts {
			logits64, err = t.Apply(logits64)
			if err != nil {
				return nil, err
			}
		}
	}
	return logits64, nil
}

type greedy struct {
	transforms []Transform
}

func Greedy(transforms ...Transform) Sampler {
	return greedy{transforms: transforms}
}

func (s greedy) Sample(logits []float32, transforms ...Transform) (int32, error) {
	if len(logits) == 0 {
		return -1, errors.New("sample: no logits provided to sample")
	}

	logits64, err := apply(logits, transforms, s.transforms)
	if err != nil {
		return -1, err
	}

	idx := floats.MaxIdx(logits64)
	if math.IsInf(logits64[idx], -1) {
		return -1, errors.New("no valid logits found for greedy sampling")
	}
	return int32(idx), nil
}

type weighted struct {
	src        rand.Source
	transforms []Transform
}

func Weighted(seed *int64, transforms ...Transform) Sampler {
	var src rand.Source
	if seed != nil {
		src = rand.NewSource(uint64(*seed))
	}
	return weighted{src: src, transforms: transforms}
}

func (s weighted) Sample(logits []float32, transforms ...Transform) (int32, error) {
	logits64, err := apply(logits, transforms, s.transforms)
	if err != nil {
		return -1, err
	}

	logitsCopy := make([]float64, 0, len(logits))
	indices := make([]int, 0, len(logits))
	for i, logit := range logits64 {
		if !math.IsInf(logit, -1) {
			logitsCopy = append(logitsCopy, logit)
			indices = append(indices, i)
		}
	}

	if len(logitsCopy) == 0 {
		return -1, errors.New("no valid logits found for weighed sampling")
	}

	probs := softmax(logitsCopy)
	w := sampleuv.NewWeighted(probs, s.src)
	if idx, ok := w.Take(); ok {
		return int32(indices[idx]), nil
	}
	return -1, errors.New("weighed sampler failed, no valid token found")
}
