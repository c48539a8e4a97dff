package sample

import (
	"context"
	"fmt"
	"slices"

	"github.com/ollama/enforcer/logutil"
)

// Model produces next token logits for a token sequence.
type Model interface {
	Logits(ctx context.Context, tokens []int32) ([]float32, error)
}

// Generate samples tokens after prompt until the end of sequence token,
// limit tokens (when limit is positive) or ctx is done. Every token is
// drawn from the ones e allows. The generated tokens are returned without
// the prompt or the end of sequence token.
func Generate(ctx context.Context, e *Enforcer, m Model, prompt []int32, s Sampler, limit int) ([]int32, error) {
	seq := slices.Clone(prompt)
	e.StartSequence(seq)

	for limit <= 0 || len(seq)-len(prompt) < limit {
		if err := ctx.Err(); err != nil {
			return seq[len(prompt):], err
		}

		logits, err := m.Logits(ctx, seq)
		if err != nil {
			return seq[len(prompt):], fmt.Errorf("logits: %w", err)
		}

		id, err := s.Sample(logits, Constrain(e, seq))
		if err != nil {
			return seq[len(prompt):], fmt.Errorf("sample: %w", err)
		}

		logutil.Trace("sampled", "enforcer", e.ID(), "position", len(seq), "token", id)
		if id == e.EOS() {
			break
		}
		seq = append(seq, id)
	}

	return seq[len(prompt):], nil
}
