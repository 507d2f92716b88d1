package tools

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// InputSchema derives the JSON Schema advertised for the tool's arguments.
func (d Definition) InputSchema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(d.Params)),
	}
	for _, p := range d.Params {
		s.Properties[p.Name] = paramSchema(p)
		if p.required() {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// InputSchemaJSON is InputSchema encoded for transports that take raw schemas.
func (d Definition) InputSchemaJSON() (json.RawMessage, error) {
	return json.Marshal(d.InputSchema())
}

func paramSchema(p Param) *jsonschema.Schema {
	s := typeSchema(p.Type)
	s.Description = p.Description
	switch p.Type {
	case TypeArray:
		if p.Items != "" {
			s.Items = typeSchema(p.Items)
			if p.Items == TypeObject && len(p.RequiredKeys) > 0 {
				s.Items.Required = append([]string(nil), p.RequiredKeys...)
			}
		}
	case TypeObject:
		if len(p.RequiredKeys) > 0 {
			s.Required = append([]string(nil), p.RequiredKeys...)
		}
	}
	if p.Default != nil {
		if raw, err := json.Marshal(p.Default); err == nil {
			s.Default = raw
		}
	}
	return s
}

func typeSchema(t ParamType) *jsonschema.Schema {
	if t == TypeEpoch {
		return &jsonschema.Schema{AnyOf: []*jsonschema.Schema{
			{Type: "integer"},
			{Type: "string"},
		}}
	}
	return &jsonschema.Schema{Type: string(t)}
}
