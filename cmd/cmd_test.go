package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{"type":"object","properties":{"a":{"type":"integer"}},"required":["a"]}`

const testVocab = `{
  "tokens": ["<unk>", "<s>", "</s>", "{", "}", "\"", ":", "1", "a", "▁"],
  "types": [2, 3, 3, 1, 1, 1, 1, 1, 1, 1],
  "bos": [1],
  "eos": [2]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the CLI and returns what it wrote to stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewCLI()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "schema.json", testSchema)
	good := writeFile(t, dir, "good.json", `{"a": 1}`)
	bad := writeFile(t, dir, "bad.json", `{"a":"x"}`)
	short := writeFile(t, dir, "short.json", `{"a":1`)

	out, err := run(t, "", "validate", "--schema", schema, "-j", "2", good, bad, short)
	require.ErrorContains(t, err, "2 of 3 documents do not match the schema")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, good+": ok", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], bad+": offset 5: character '\"' not allowed"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], short+": offset 6: unexpected end of input"), lines[2])

	out, err = run(t, "", "validate", "--schema", schema, good)
	require.NoError(t, err)
	assert.Equal(t, good+": ok\n", out)
}

func TestValidateStdin(t *testing.T) {
	out, err := run(t, `[1, {"b": null}]`, "validate")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	_, err = run(t, `[1,]`, "validate")
	assert.ErrorContains(t, err, "offset 3")

	schema := writeFile(t, t.TempDir(), "schema.json", `{"type":"object","properties":{"a":{"type":"string"}}}`)
	_, err = run(t, `{"a":"é"}`, "validate", "--schema", schema, "--ascii-only")
	assert.Error(t, err)
}

func TestValidateBadSchema(t *testing.T) {
	schema := writeFile(t, t.TempDir(), "schema.json", `{"type":"date"}`)
	_, err := run(t, "{}", "validate", "--schema", schema)
	assert.ErrorContains(t, err, `unsupported type "date"`)

	_, err = run(t, "{}", "validate", "--schema", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestAllowed(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "schema.json", testSchema)
	vocab := writeFile(t, dir, "vocab.json", testVocab)

	cases := []struct {
		text string
		want string
	}{
		{"", "3\t\"{\"\n9\t\" \"\n"},
		{`{"a":`, "7\t\"1\"\n9\t\" \"\n"},
		{`{"a":1`, "4\t\"}\"\n7\t\"1\"\n9\t\" \"\n"},
		{`{"a":1}`, "2\t\"</s>\"\n9\t\" \"\n"},
	}

	for _, tt := range cases {
		out, err := run(t, "", "allowed", "--schema", schema, "--vocab", vocab, "--text", tt.text)
		require.NoError(t, err)
		if diff := cmp.Diff(tt.want, out); diff != "" {
			t.Errorf("allowed after %q mismatch (-want +got):\n%s", tt.text, diff)
		}
	}

	_, err := run(t, "", "allowed", "--schema", schema)
	assert.ErrorContains(t, err, `"vocab" not set`)
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "schema.json", testSchema)
	vocab := writeFile(t, dir, "vocab.json", testVocab)

	out, err := run(t, "", "generate", "--schema", schema, "--vocab", vocab, "--greedy")
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n", out)

	first, err := run(t, "", "generate", "--schema", schema, "--vocab", vocab, "--seed", "42")
	require.NoError(t, err)
	second, err := run(t, "", "generate", "--schema", schema, "--vocab", vocab, "--seed", "42")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(first), "{"), first)

	out, err = run(t, "", "generate", "--schema", schema, "--vocab", vocab, "--greedy", "--limit", "3")
	require.NoError(t, err)
	assert.Equal(t, "{\"a\n", out)

	// top-k 1 keeps the lowest allowed id, like greedy
	out, err = run(t, "", "generate", "--schema", schema, "--vocab", vocab, "--seed", "7", "--top-k", "1")
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n", out)

	for _, flags := range [][]string{{"--top-p", "0.5"}, {"--min-p", "0.5"}} {
		args := append([]string{"generate", "--schema", schema, "--vocab", vocab, "--seed", "7"}, flags...)
		out, err := run(t, "", args...)
		require.NoError(t, err, flags)
		assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"), out)
	}

	_, err = run(t, "", "generate", "--schema", schema, "--vocab", vocab, "--top-p", "1.5")
	assert.ErrorContains(t, err, "p must be between 0 and 1")
}

func TestVocab(t *testing.T) {
	vocab := writeFile(t, t.TempDir(), "vocab.json", testVocab)

	out, err := run(t, "", "vocab", "--vocab", vocab)
	require.NoError(t, err)
	for _, want := range []string{"PROPERTY", "tokens", "10", "control", "word starts", "[1]", "[2]"} {
		assert.Contains(t, out, want)
	}

	_, err = run(t, "", "vocab", "--vocab", filepath.Join(t.TempDir(), "vocab.yaml"))
	assert.Error(t, err)
}

func TestConfig(t *testing.T) {
	out, err := run(t, "", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "ENFORCER_MAX_WHITESPACE")
	assert.Contains(t, out, "config files:")

	out, err = run(t, "", "config", "--example")
	require.NoError(t, err)
	assert.Contains(t, out, "[grammar]")
}

func TestLogFormat(t *testing.T) {
	_, err := run(t, "", "--log-format", "xml", "config")
	assert.ErrorContains(t, err, `unknown log format "xml"`)

	_, err = run(t, "", "--log-format", "json", "config")
	assert.NoError(t, err)
}
