package grammar

import (
	"slices"
	"strings"

	"github.com/emirpasic/gods/v2/sets/treeset"

	"github.com/ollama/enforcer/grammar/jsonschema"
)

type objectStage int

const (
	objectStart objectStage = iota
	objectKeyOrEnd
	objectKeyValueSeparator
	objectValue
	objectSeparatorOrEnd
	objectEnd
)

func (s objectStage) String() string {
	switch s {
	case objectStart:
		return "Start"
	case objectKeyOrEnd:
		return "KeyOrEnd"
	case objectKeyValueSeparator:
		return "KeyValueSeparator"
	case objectValue:
		return "Value"
	case objectSeparatorOrEnd:
		return "SeparatorOrEnd"
	case objectEnd:
		return "End"
	}
	return "Unknown"
}

// Object matches a JSON object. Keys are compared in their escaped form.
//
// An object without declared properties is an open dictionary: any key is
// legal, duplicates included, and values follow patternProperties,
// additionalProperties or nothing at all.
type Object struct {
	res    *resolver
	schema *jsonschema.Schema
	path   string
	dict   bool

	stage objectStage
	// seen is never modified once a state holds it
	seen       *treeset.Set[string]
	key        string
	afterComma bool
}

func newObject(res *resolver, s *jsonschema.Schema, path string) *Object {
	return &Object{
		res:    res,
		schema: s,
		path:   path,
		dict:   s == nil || len(s.Properties) == 0 && !s.NoAdditionalProperties,
		seen:   treeset.New[string](),
	}
}

// Stage returns the current stage name.
func (o *Object) Stage() string { return o.stage.String() }

// Keys returns the keys seen so far in sorted order.
func (o *Object) Keys() []string { return o.seen.Values() }

func (o *Object) required() []string {
	if o.schema == nil {
		return nil
	}
	return o.schema.Required
}

// canClose reports whether every required key has been seen.
func (o *Object) canClose() bool {
	for _, name := range o.required() {
		if !o.seen.Contains(escape(name)) {
			return false
		}
	}
	return true
}

// remaining returns the declared keys that may still appear.
func (o *Object) remaining() []string {
	if o.dict {
		return nil
	}

	if o.res.cfg.strictFieldOrder {
		for _, name := range o.required() {
			if key := escape(name); !o.seen.Contains(key) {
				return []string{key}
			}
		}
	}

	var keys []string
	for _, p := range o.schema.Properties {
		if key := escape(p.Name); !o.seen.Contains(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (o *Object) canParseKey() bool {
	return o.dict || len(o.remaining()) > 0
}

func (o *Object) allowedFrame(env) Charset {
	allowed := Whitespace
	switch o.stage {
	case objectStart:
		allowed += "{"
	case objectKeyOrEnd:
		if o.canClose() && !o.afterComma {
			allowed += "}"
		}
		if o.canParseKey() {
			allowed += `"`
		}
	case objectKeyValueSeparator:
		allowed += ":"
	case objectValue, objectSeparatorOrEnd:
		if o.canClose() {
			allowed += "}"
		}
		if o.canParseKey() {
			allowed += ","
		}
	}
	return NewCharset(allowed)
}

func (o *Object) acceptFrame(r rune, e env) ([]Parser, error) {
	if !o.allowedFrame(e).Contains(r) {
		return nil, violation(r, o.allowedFrame(e))
	}

	next := *o
	if strings.ContainsRune(Whitespace, r) {
		if o.stage == objectValue {
			next.stage = objectSeparatorOrEnd
			return []Parser{&next}, nil
		}
		return []Parser{o}, nil
	}

	switch o.stage {
	case objectStart:
		next.stage = objectKeyOrEnd
	case objectKeyOrEnd:
		if r == '}' {
			next.stage = objectEnd
			break
		}
		next.stage = objectKeyValueSeparator
		next.afterComma = false
		key := &String{candidates: o.remaining(), quoted: true, phase: stringBody, alphabet: o.res.alphabet}
		return []Parser{&next, key}, nil
	case objectKeyValueSeparator:
		next.stage = objectValue
		next.key = e.lastString
		seen := treeset.New[string](o.seen.Values()...)
		seen.Add(next.key)
		next.seen = seen

		value, err := o.res.resolve(o.valueSchema(next.key), o.path+"."+unescape(next.key))
		if err != nil {
			return nil, err
		}
		return []Parser{&next, value}, nil
	case objectValue, objectSeparatorOrEnd:
		if r == '}' {
			next.stage = objectEnd
		} else {
			next.stage = objectKeyOrEnd
			next.afterComma = true
		}
	}
	return []Parser{&next}, nil
}

// valueSchema returns the schema for the value of key. A nil result means
// any JSON value.
func (o *Object) valueSchema(key string) *jsonschema.Schema {
	if o.schema == nil {
		return nil
	}
	name := unescape(key)
	if !o.dict {
		p, _ := o.schema.Property(name)
		return p
	}

	patterns := make([]string, 0, len(o.schema.PatternProperties))
	for pattern := range o.schema.PatternProperties {
		patterns = append(patterns, pattern)
	}
	slices.Sort(patterns)
	for _, pattern := range patterns {
		if re := o.res.patterns[pattern]; re != nil && re.MatchString(name) {
			return o.schema.PatternProperties[pattern]
		}
	}
	return o.schema.AdditionalProperties
}

func (o *Object) Accept(r rune) (Parser, error) {
	return o.res.parser(o).Accept(r)
}

func (o *Object) Allowed() Charset { return o.allowedFrame(env{top: true}) }

func (o *Object) CanEnd() bool { return o.stage == objectEnd }
