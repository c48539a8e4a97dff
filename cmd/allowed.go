package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ollama/enforcer/sample"
)

func NewAllowedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowed",
		Short: "List the tokens a schema allows after some text",
		RunE:  allowedHandler,
	}

	addGrammarFlags(cmd)
	addVocabFlag(cmd)
	cmd.Flags().String("text", "", "Text generated so far")

	return cmd
}

func allowedHandler(cmd *cobra.Command, args []string) error {
	p, err := compileSchema(cmd)
	if err != nil {
		return err
	}

	spm, data, err := loadTokenizer(cmd)
	if err != nil {
		return err
	}

	text, _ := cmd.Flags().GetString("text")
	ids, err := spm.Encode(text)
	if err != nil {
		return err
	}

	e := sample.NewEnforcer(data, p)
	allowed, err := e.AllowedTokens(ids)
	if err != nil {
		return err
	}

	vocab := spm.Vocabulary()
	rows := make([][]string, 0, len(allowed))
	for _, id := range allowed {
		text, ok := data.Text(id)
		if !ok {
			text = vocab.Decode(id)
		}
		rows = append(rows, []string{strconv.Itoa(int(id)), strconv.Quote(text), tokenType(vocab.Type(id))})
	}

	out := cmd.OutOrStdout()
	if !isTerminal(out) {
		for _, row := range rows {
			fmt.Fprintf(out, "%s\t%s\n", row[0], row[1])
		}
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "TOKEN", "TYPE"})
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
