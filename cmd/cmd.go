package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ollama/enforcer/envconfig"
	"github.com/ollama/enforcer/grammar"
	"github.com/ollama/enforcer/logutil"
	"github.com/ollama/enforcer/tokenizer"
)

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "enforcer",
		Short: "Constrain token generation to a JSON schema",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Disable usage printing on errors
			cmd.SilenceUsage = true

			format, _ := cmd.Flags().GetString("log-format")
			logger, err := logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel(), format)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().String("log-format", "text", fmt.Sprintf("Log format, one of %v", logutil.Formats))

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		NewValidateCmd(),
		NewAllowedCmd(),
		NewGenerateCmd(),
		NewVocabCmd(),
		NewConfigCmd(),
	)

	return rootCmd
}

// addGrammarFlags registers the schema flag and the grammar options, which
// default to the environment.
func addGrammarFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", "", "Path of the JSON schema (any JSON value when empty)")
	cmd.Flags().Int("max-whitespace", envconfig.MaxWhitespace, "Consecutive whitespace characters allowed")
	cmd.Flags().Bool("strict-field-order", envconfig.StrictFieldOrder, "Require required keys in schema order")
	cmd.Flags().Bool("ascii-only", envconfig.ASCIIOnly, "Only allow printable ASCII inside strings")
}

func addVocabFlag(cmd *cobra.Command) {
	cmd.Flags().String("vocab", "", "Path of the vocabulary (.json, .cbor or .toml)")
	_ = cmd.MarkFlagRequired("vocab")
}

// compileSchema builds the grammar selected by the grammar flags.
func compileSchema(cmd *cobra.Command) (*grammar.JSONParser, error) {
	maxWhitespace, _ := cmd.Flags().GetInt("max-whitespace")
	strict, _ := cmd.Flags().GetBool("strict-field-order")
	ascii, _ := cmd.Flags().GetBool("ascii-only")
	opts := []grammar.Option{
		grammar.WithMaxWhitespace(maxWhitespace),
		grammar.WithStrictFieldOrder(strict),
		grammar.WithASCIIOnly(ascii),
	}

	path, _ := cmd.Flags().GetString("schema")
	if path == "" {
		return grammar.AnyJSON(opts...), nil
	}

	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	p, err := grammar.CompileJSON(bts, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("compiled schema", "path", path, "max_whitespace", maxWhitespace, "strict_field_order", strict, "ascii_only", ascii)
	return p, nil
}

// loadTokenizer reads the vocabulary named by the vocab flag.
func loadTokenizer(cmd *cobra.Command) (tokenizer.SentencePiece, *tokenizer.Data, error) {
	path, _ := cmd.Flags().GetString("vocab")
	vocab, err := tokenizer.LoadVocabulary(path)
	if err != nil {
		return tokenizer.SentencePiece{}, nil, err
	}

	spm := tokenizer.NewSentencePiece(vocab)
	return spm, tokenizer.NewData(spm), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func tokenType(t int32) string {
	switch t {
	case tokenizer.TOKEN_TYPE_NORMAL:
		return "normal"
	case tokenizer.TOKEN_TYPE_UNKNOWN:
		return "unknown"
	case tokenizer.TOKEN_TYPE_CONTROL:
		return "control"
	case tokenizer.TOKEN_TYPE_USER_DEFINED:
		return "user defined"
	case tokenizer.TOKEN_TYPE_UNUSED:
		return "unused"
	case tokenizer.TOKEN_TYPE_BYTE:
		return "byte"
	}
	return strconv.Itoa(int(t))
}
