package grammar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"

	"github.com/ollama/enforcer/grammar/jsonschema"
)

// resolver maps schema nodes to grammars. It is read-only once Compile
// returns and is shared by every state derived from the compiled parser.
type resolver struct {
	root     *jsonschema.Schema
	cfg      *config
	alphabet Charset
	patterns map[string]*regexp.Regexp
}

// Compile builds the JSON grammar for s. A nil schema accepts any JSON
// value. Every node reachable from s is checked up front, so resolution
// errors surface here rather than mid-parse.
func Compile(s *jsonschema.Schema, opts ...Option) (*JSONParser, error) {
	cfg := newConfig(opts)
	res := &resolver{
		root:     s,
		cfg:      cfg,
		alphabet: Printable(!cfg.asciiOnly),
		patterns: make(map[string]*regexp.Regexp),
	}

	if s != nil {
		if err := res.check(s, "root", make(map[*jsonschema.Schema]bool)); err != nil {
			return nil, err
		}
	}

	value, err := res.resolve(s, "root")
	if err != nil {
		return nil, err
	}
	return res.parser(value), nil
}

// CompileJSON parses a schema document and compiles it.
func CompileJSON(schema []byte, opts ...Option) (*JSONParser, error) {
	s, err := jsonschema.Parse(schema)
	if err != nil {
		return nil, &SchemaError{Path: "root", Reason: err.Error()}
	}
	return Compile(s, opts...)
}

// AnyJSON returns a grammar accepting any well-formed JSON value.
func AnyJSON(opts ...Option) *JSONParser {
	p, _ := Compile(nil, opts...)
	return p
}

func (res *resolver) parser(frames ...Parser) *JSONParser {
	return &JSONParser{cfg: res.cfg, frames: frames}
}

// deref follows $ref chains.
func (res *resolver) deref(s *jsonschema.Schema, path string) (*jsonschema.Schema, string, error) {
	var seen []string
	for s != nil && s.Ref != "" {
		if slices.Contains(seen, s.Ref) {
			return nil, path, &SchemaError{Path: path, Reason: fmt.Sprintf("reference cycle through %q", s.Ref)}
		}
		seen = append(seen, s.Ref)
		path = s.Ref

		target, err := res.root.Lookup(s.Ref)
		if err != nil {
			return nil, path, &SchemaError{Path: path, Reason: err.Error()}
		}
		s = target
	}
	return s, path, nil
}

func (res *resolver) check(s *jsonschema.Schema, path string, visited map[*jsonschema.Schema]bool) error {
	s, path, err := res.deref(s, path)
	if err != nil {
		return err
	}
	if s == nil || visited[s] {
		return nil
	}
	visited[s] = true

	for i, alt := range s.AnyOf {
		if err := res.check(alt, fmt.Sprintf("%s.anyOf[%d]", path, i), visited); err != nil {
			return err
		}
	}
	if len(s.AnyOf) > 0 {
		return nil
	}

	if len(s.Enum) > 0 {
		_, err := enumGrammar(s.Enum, path)
		return err
	}

	switch typ := s.EffectiveType(); typ {
	case "":
		return &SchemaError{Path: path, Reason: fmt.Sprintf("declares %d types, must declare exactly one", len(s.Type))}
	case "string", "integer", "number", "boolean", "null", "value":
	case "object":
		for _, p := range s.Properties {
			if err := res.check(p, path+"."+p.Name, visited); err != nil {
				return err
			}
		}
		if len(s.Properties) > 0 {
			for _, name := range s.Required {
				if _, ok := s.Property(name); !ok {
					return &SchemaError{Path: path, Reason: fmt.Sprintf("required property %q is not declared", name)}
				}
			}
		}
		if err := res.check(s.AdditionalProperties, path+".additionalProperties", visited); err != nil {
			return err
		}
		for pattern, ps := range s.PatternProperties {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return &SchemaError{Path: path, Reason: fmt.Sprintf("invalid pattern %q: %v", pattern, err)}
			}
			res.patterns[pattern] = re
			if err := res.check(ps, path+".patternProperties."+pattern, visited); err != nil {
				return err
			}
		}
	case "array":
		if err := res.check(s.Items, path+".items", visited); err != nil {
			return err
		}
		if s.MinItems != nil && *s.MinItems < 0 || s.MaxItems != nil && *s.MaxItems < 0 {
			return &SchemaError{Path: path, Reason: "item bounds must not be negative"}
		}
		if s.NoItems && s.MinItems != nil && *s.MinItems > 0 {
			return &SchemaError{Path: path, Reason: fmt.Sprintf("minItems %d with items false", *s.MinItems)}
		}
		if s.MinItems != nil && s.MaxItems != nil && *s.MinItems > *s.MaxItems {
			return &SchemaError{Path: path, Reason: fmt.Sprintf("minItems %d exceeds maxItems %d", *s.MinItems, *s.MaxItems)}
		}
	default:
		return &SchemaError{Path: path, Reason: fmt.Sprintf("unsupported type %q", typ)}
	}
	return nil
}

// resolve returns the grammar for a single JSON value matching s.
func (res *resolver) resolve(s *jsonschema.Schema, path string) (Parser, error) {
	s, path, err := res.deref(s, path)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return res.any(), nil
	}

	if len(s.AnyOf) > 0 {
		alts := make([]Parser, 0, len(s.AnyOf))
		for i, alt := range s.AnyOf {
			p, err := res.resolve(alt, fmt.Sprintf("%s.anyOf[%d]", path, i))
			if err != nil {
				return nil, err
			}
			alts = append(alts, p)
		}
		return NewUnion(alts...), nil
	}

	if len(s.Enum) > 0 {
		return enumGrammar(s.Enum, path)
	}

	switch typ := s.EffectiveType(); typ {
	case "":
		return nil, &SchemaError{Path: path, Reason: fmt.Sprintf("declares %d types, must declare exactly one", len(s.Type))}
	case "string":
		return newString(res.alphabet), nil
	case "integer":
		return newNumber(false), nil
	case "number":
		return newNumber(true), nil
	case "boolean":
		return newLiteralSet("true", "false"), nil
	case "null":
		return newLiteralSet("null"), nil
	case "object":
		return newObject(res, s, path), nil
	case "array":
		return newList(res, s, path), nil
	case "value":
		return res.any(), nil
	default:
		return nil, &SchemaError{Path: path, Reason: fmt.Sprintf("unsupported type %q", typ)}
	}
}

// any is the grammar of an unconstrained JSON value. Containers resolve
// their children lazily, so the recursion only unfolds as input arrives.
func (res *resolver) any() Parser {
	return NewUnion(
		newObject(res, nil, "value"),
		newList(res, nil, "value"),
		newString(res.alphabet),
		newNumber(true),
		newLiteralSet("true", "false"),
		newLiteralSet("null"),
	)
}

// enumGrammar matches exactly one of the enum members. String members are
// quoted candidates, every other scalar is matched as its compact JSON text.
func enumGrammar(members []json.RawMessage, path string) (Parser, error) {
	var quoted, bare []string
	for _, m := range members {
		m = bytes.TrimSpace(m)
		if len(m) == 0 {
			continue
		}
		switch m[0] {
		case '"':
			var s string
			if err := json.Unmarshal(m, &s); err != nil {
				return nil, &SchemaError{Path: path, Reason: fmt.Sprintf("invalid enum member %s: %v", m, err)}
			}
			quoted = append(quoted, escape(s))
		case '{', '[':
			return nil, &SchemaError{Path: path, Reason: fmt.Sprintf("unsupported enum member %s", m)}
		default:
			var b bytes.Buffer
			if err := json.Compact(&b, m); err != nil {
				return nil, &SchemaError{Path: path, Reason: fmt.Sprintf("invalid enum member %s: %v", m, err)}
			}
			bare = append(bare, b.String())
		}
	}

	var alts []Parser
	if len(quoted) > 0 {
		alts = append(alts, newEnumString(quoted))
	}
	if len(bare) > 0 {
		alts = append(alts, newLiteralSet(bare...))
	}
	if len(alts) == 0 {
		return nil, &SchemaError{Path: path, Reason: "enum has no members"}
	}
	return NewUnion(alts...), nil
}
