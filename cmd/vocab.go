package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ollama/enforcer/tokenizer"
)

func NewVocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Summarize a vocabulary",
		RunE:  vocabHandler,
	}

	addVocabFlag(cmd)

	return cmd
}

func vocabHandler(cmd *cobra.Command, args []string) error {
	spm, data, err := loadTokenizer(cmd)
	if err != nil {
		return err
	}
	vocab := spm.Vocabulary()

	counts := make(map[int32]int)
	for i := range vocab.Values {
		counts[vocab.Type(int32(i))]++
	}

	var wordStarts int
	for _, t := range spm.Tokens() {
		if data.WordStart(t.ID) {
			wordStarts++
		}
	}

	rows := [][]string{{"tokens", strconv.Itoa(len(vocab.Values))}}
	for t := int32(tokenizer.TOKEN_TYPE_NORMAL); t <= tokenizer.TOKEN_TYPE_BYTE; t++ {
		if counts[t] > 0 {
			rows = append(rows, []string{tokenType(t), strconv.Itoa(counts[t])})
		}
	}
	rows = append(rows,
		[]string{"first characters", strconv.Itoa(data.Tree.Len())},
		[]string{"word starts", strconv.Itoa(wordStarts)},
		[]string{"bos", fmt.Sprint(vocab.BOS)},
		[]string{"eos", fmt.Sprint(vocab.EOS)},
		[]string{"add bos", strconv.FormatBool(vocab.AddBOS)},
		[]string{"scored", strconv.FormatBool(len(vocab.Scores) > 0)},
	)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"PROPERTY", "VALUE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(rows)
	table.Render()

	return nil
}
