package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ollama/enforcer/sample"
)

func NewGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random document matching a schema",
		Long:  "Generate a random document matching a schema. Every token is equally likely, so the output shows the shape of the grammar rather than useful content.",
		RunE:  generateHandler,
	}

	addGrammarFlags(cmd)
	addVocabFlag(cmd)
	cmd.Flags().Int64("seed", 0, "Random seed (random when unset)")
	cmd.Flags().Int("limit", 256, "Maximum number of tokens to generate (0 for no limit)")
	cmd.Flags().Float64("temperature", 1, "Sampling temperature")
	cmd.Flags().Int("top-k", 0, "Sample from the k most likely tokens (0 to disable)")
	cmd.Flags().Float64("top-p", 0, "Sample from the smallest set of tokens above this cumulative probability (0 to disable)")
	cmd.Flags().Float64("min-p", 0, "Drop tokens below this fraction of the most likely token's probability (0 to disable)")
	cmd.Flags().Bool("greedy", false, "Always pick the lowest allowed token id")

	return cmd
}

// uniformModel gives every token the same logit.
type uniformModel struct {
	size int
}

func (m uniformModel) Logits(context.Context, []int32) ([]float32, error) {
	return make([]float32, m.size), nil
}

func generateHandler(cmd *cobra.Command, args []string) error {
	p, err := compileSchema(cmd)
	if err != nil {
		return err
	}

	spm, data, err := loadTokenizer(cmd)
	if err != nil {
		return err
	}

	var s sample.Sampler
	if greedy, _ := cmd.Flags().GetBool("greedy"); greedy {
		s = sample.Greedy()
	} else {
		var seed *int64
		if cmd.Flags().Changed("seed") {
			n, _ := cmd.Flags().GetInt64("seed")
			seed = &n
		}
		s = sample.Weighted(seed, samplingTransforms(cmd)...)
	}

	// the prompt is only the start of sequence marker, if the vocabulary uses one
	prompt, err := spm.Encode("")
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	e := sample.NewEnforcer(data, p)
	ids, err := sample.Generate(cmd.Context(), e, uniformModel{size: len(spm.Vocabulary().Values)}, prompt, s, limit)
	if err != nil {
		return err
	}

	text, err := data.Decode(ids)
	if err != nil {
		return err
	}

	if limit > 0 && len(ids) >= limit {
		slog.Warn("generation stopped at the token limit", "limit", limit)
	}
	slog.Debug("generated", "enforcer", e.ID(), "tokens", len(ids), "prefixes", e.Len())

	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

// samplingTransforms applies top-k before temperature and the probability
// cutoffs after it.
func samplingTransforms(cmd *cobra.Command) []sample.Transform {
	var transforms []sample.Transform
	if k, _ := cmd.Flags().GetInt("top-k"); k > 0 {
		transforms = append(transforms, sample.TopK(k))
	}

	temperature, _ := cmd.Flags().GetFloat64("temperature")
	transforms = append(transforms, sample.Temperature(temperature))

	if p, _ := cmd.Flags().GetFloat64("top-p"); p > 0 {
		transforms = append(transforms, sample.TopP(p))
	}
	if p, _ := cmd.Flags().GetFloat64("min-p"); p > 0 {
		transforms = append(transforms, sample.MinP(p))
	}
	return transforms
}
