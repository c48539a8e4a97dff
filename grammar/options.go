package grammar

import "github.com/ollama/enforcer/envconfig"

type config struct {
	maxWhitespace    int
	strictFieldOrder bool
	asciiOnly        bool
}

// Option configures a compiled JSON grammar. Defaults come from envconfig.
type Option func(*config)

// WithMaxWhitespace sets the number of consecutive whitespace characters
// after which whitespace is no longer allowed. The count includes spaces
// inside string values, so a string cannot hold a longer run of them either.
func WithMaxWhitespace(n int) Option {
	return func(c *config) { c.maxWhitespace = n }
}

// WithStrictFieldOrder makes required keys appear in the order the schema
// lists them before any optional key.
func WithStrictFieldOrder(strict bool) Option {
	return func(c *config) { c.strictFieldOrder = strict }
}

// WithASCIIOnly limits open string content to printable ASCII.
func WithASCIIOnly(ascii bool) Option {
	return func(c *config) { c.asciiOnly = ascii }
}

func newConfig(opts []Option) *config {
	c := &config{
		maxWhitespace:    envconfig.MaxWhitespace,
		strictFieldOrder: envconfig.StrictFieldOrder,
		asciiOnly:        envconfig.ASCIIOnly,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
