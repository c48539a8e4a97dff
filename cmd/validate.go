package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ollama/enforcer/grammar"
)

func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [flags] [FILE...]",
		Short: "Check JSON documents against a schema",
		Long:  "Check JSON documents against a schema. Without files the document is read from stdin.",
		RunE:  validateHandler,
	}

	addGrammarFlags(cmd)
	cmd.Flags().IntP("jobs", "j", runtime.GOMAXPROCS(0), "Number of documents checked concurrently")

	return cmd
}

func validateHandler(cmd *cobra.Command, args []string) error {
	p, err := compileSchema(cmd)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		bts, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		if err := grammar.Complete(p, string(bts)); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	}

	jobs, _ := cmd.Flags().GetInt("jobs")
	results := make([]error, len(args))

	var g errgroup.Group
	g.SetLimit(max(jobs, 1))
	for i, path := range args {
		g.Go(func() error {
			bts, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			// every document starts from the same compiled state
			results[i] = grammar.Complete(p, string(bts))
			slog.Debug("validated", "path", path, "error", results[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	var failed int
	for i, path := range args {
		if results[i] != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, results[i])
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents do not match the schema", failed, len(args))
	}
	return nil
}
