package jsonschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Schema holds a JSON schema.
type Schema struct {
	// Name is the name of the property. For the parent/root property, this
	// is "root". For child properties, this is the name of the property.
	Name string `json:"-"`

	// Type is the list of declared types. It is nil when the schema has no
	// "type" keyword and empty (but non-nil) for "type": [].
	Type Types

	// Ref is a local reference ("#", "#/$defs/Name", "#/definitions/Name"
	// or a longer pointer through those and "properties").
	Ref string `json:"$ref"`

	// Defs and Definitions hold the referenceable subschemas.
	Defs        map[string]*Schema `json:"$defs"`
	Definitions map[string]*Schema `json:"definitions"`

	// Items is the schema for each item in a list.
	//
	// If it is missing, or its JSON value is "null" or "false", it is nil.
	// If the JSON value is "true", it is set to the empty Schema. If the
	// JSON value is an object, it will be decoded as a Schema. NoItems is
	// set for "false", which only allows the empty list.
	Items   *Schema
	NoItems bool `json:"-"`

	// MinItems and MaxItems bound the number of items in a list. Nil means
	// the keyword is absent.
	MinItems *int
	MaxItems *int

	// Properties is the schema for each property of an object, in the
	// order they were declared.
	Properties []*Schema

	// Required lists the property names that must be present.
	Required []string

	// AdditionalProperties is the schema for keys not named in
	// Properties. It is nil when absent, the empty Schema for "true", and
	// nil with NoAdditionalProperties set for "false".
	AdditionalProperties   *Schema
	NoAdditionalProperties bool `json:"-"`

	// PatternProperties maps key regular expressions to value schemas.
	PatternProperties map[string]*Schema

	// Enum is a list of valid values for the property.
	Enum []json.RawMessage

	// AnyOf lists alternative schemas; a value must match at least one.
	AnyOf []*Schema
}

// Parse decodes a schema document and names its root "root".
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.Name = "root"
	return &s, nil
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	type S Schema
	w := struct {
		Properties           props
		Items                items
		AdditionalProperties items
		*S
	}{
		S: (*S)(s),
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Items.set {
		s.Items = &w.Items.Schema
	} else if w.Items.denied {
		s.NoItems = true
	}
	if w.AdditionalProperties.set {
		s.AdditionalProperties = &w.AdditionalProperties.Schema
	} else if w.AdditionalProperties.denied {
		s.NoAdditionalProperties = true
	}
	s.Properties = w.Properties
	return nil
}

type items struct {
	Schema
	set    bool
	denied bool
}

func (s *items) UnmarshalJSON(data []byte) error {
	switch b := data[0]; b {
	case 't':
		*s = items{set: true}
	case '{':
		if err := json.Unmarshal(data, &s.Schema); err != nil {
			return err
		}
		s.set = true
	case 'f':
		*s = items{denied: true}
	case 'n':
	default:
		return errors.New("invalid schema value")
	}
	return nil
}

// Types is the "type" keyword, which may be a single name or a list.
type Types []string

func (t *Types) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*t = Types{name}
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	if names == nil {
		names = []string{}
	}
	*t = names
	return nil
}

// EffectiveType returns the effective type of the schema. If exactly one
// type is declared, it is returned; if several are declared, or "type" is
// an empty list, it returns an empty string; otherwise:
//
//   - If the schema has Properties, PatternProperties or
//     AdditionalProperties, it returns "object".
//   - If the schema has Items, NoItems or item bounds, it returns "array".
//   - Otherwise it returns "value".
func (d *Schema) EffectiveType() string {
	switch {
	case len(d.Type) == 1:
		return d.Type[0]
	case d.Type != nil:
		return ""
	case len(d.Properties) > 0 || len(d.PatternProperties) > 0 || d.AdditionalProperties != nil || d.NoAdditionalProperties:
		return "object"
	case d.Items != nil || d.NoItems || d.MinItems != nil || d.MaxItems != nil:
		return "array"
	}
	return "value"
}

// Property returns the declared property with the given name.
func (d *Schema) Property(name string) (*Schema, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Lookup resolves a local reference against d, which must be the document
// root.
func (d *Schema) Lookup(ref string) (*Schema, error) {
	if ref == "#" {
		return d, nil
	}
	path, ok := strings.CutPrefix(ref, "#/")
	if !ok {
		return nil, fmt.Errorf("unsupported reference %q", ref)
	}

	cur := d
	parts := strings.Split(path, "/")
	for i := 0; i < len(parts); i++ {
		var next *Schema
		switch parts[i] {
		case "$defs", "definitions", "properties", "patternProperties":
			if i+1 >= len(parts) {
				return nil, fmt.Errorf("dangling reference %q", ref)
			}
			i++
			name := unescapePointer(parts[i])
			switch parts[i-1] {
			case "$defs":
				next = cur.Defs[name]
			case "definitions":
				next = cur.Definitions[name]
			case "properties":
				next, _ = cur.Property(name)
			case "patternProperties":
				next = cur.PatternProperties[name]
			}
		case "items":
			next = cur.Items
		case "additionalProperties":
			next = cur.AdditionalProperties
		}
		if next == nil {
			return nil, fmt.Errorf("unresolved reference %q", ref)
		}
		cur = next
	}
	return cur, nil
}

func unescapePointer(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
}

// props is an ordered list of properties. The order of the properties
// is the order in which they were defined in the schema.
type props []*Schema

var _ json.Unmarshaler = (*props)(nil)

func (v *props) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if data[0] != '{' {
		return errors.New("expected object")
	}

	d := json.NewDecoder(bytes.NewReader(data))

	// Unknown keywords are ignored, like llama.cpp does. Only the keywords
	// modeled by Schema constrain generation.
	t, err := d.Token()
	if err != nil {
		return err
	}
	if t != json.Delim('{') {
		return errors.New("expected object")
	}
	for d.More() {
		// Use the first token (map key) as the property name, then
		// decode the rest of the object fields into a Schema and
		// append.
		t, err := d.Token()
		if err != nil {
			return err
		}
		if t == json.Delim('}') {
			return nil
		}
		s := &Schema{
			Name: t.(string),
		}
		if err := d.Decode(s); err != nil {
			return err
		}
		*v = append(*v, s)
	}
	return nil
}
