// Package tools holds the static RecruitCRM tool catalog and the dispatcher that turns a tool
// invocation into exactly one CRM REST call.
package tools

import (
	"encoding/json"
	"strings"

	"recruitcrm-mcp/internal/recruitcrm"
)

// ParamType is the primitive type an argument is coerced to.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
	// TypeEpoch accepts epoch seconds, a numeric string, YYYY-MM-DD or RFC3339 and yields epoch seconds.
	TypeEpoch ParamType = "epoch"
)

// Location is where an argument goes in the outbound request.
type Location string

const (
	InBody  Location = "body"
	InQuery Location = "query"
	InPath  Location = "path"
)

// Category groups tools the way the suggestion ranker presents them.
type Category string

const (
	CategorySearch        Category = "search"
	CategoryReports       Category = "reports"
	CategoryActions       Category = "actions"
	CategoryHelpers       Category = "helpers"
	CategoryCommunication Category = "communication"
)

// Param maps one tool argument onto the CRM request.
type Param struct {
	Name        string
	Type        ParamType
	Items       ParamType // element type for TypeArray
	Required    bool
	Default     any
	In          Location // InBody when empty
	Field       string   // dotted body path or query key; Name when empty
	Description string

	// Siblings are static fields written next to Field whenever the argument is present.
	Siblings map[string]any
	// Join collapses an array into one string separated by Join.
	Join string
	// Stringify sends the coerced value as a string.
	Stringify bool
	// Spread merges an object argument into the body root instead of nesting it under Field.
	Spread bool
	// RequiredKeys must be present in an object argument, or in every object of an array argument.
	RequiredKeys []string
	// Shape normalises an object argument, or every object of an array argument.
	Shape *Shape
	// Exclude drops array items whose field matches one of the listed values, case-insensitively.
	Exclude map[string][]string
	// Unwrap sends a one-element array as its only element.
	Unwrap bool
	// Null sends an explicit null when the argument is absent and has no default.
	Null bool
}

// Shape rewrites an object before it is sent.
type Shape struct {
	// Keys restricts the object to these keys. Absent ones come from Defaults, else "".
	Keys []string
	// Defaults fill keys the caller left out.
	Defaults map[string]any
	// Set overwrites keys regardless of the caller's value.
	Set map[string]any
	// Lists shapes every object inside the named array fields.
	Lists map[string]*Shape
}

func (p Param) location() Location {
	if p.In == "" {
		return InBody
	}
	return p.In
}

func (p Param) field() string {
	if p.Field == "" {
		return p.Name
	}
	return p.Field
}

func (p Param) required() bool {
	return p.Required || p.location() == InPath
}

// Definition is one tool backed 1:1 by a CRM endpoint. Definitions are immutable once in a Catalog.
type Definition struct {
	Name                 string
	Description          string
	Category             Category
	Keywords             []string
	Helpers              []string
	RequiresConfirmation bool
	// Usage is the typical call sequence shown with suggestions.
	Usage string

	Method  string
	Service recruitcrm.Service
	// Path may hold {param} placeholders filled from InPath params.
	Path string
	// Query holds static query parameters.
	Query map[string]string
	// Body holds static body fields keyed by dotted path.
	Body map[string]any

	Params []Param
}

// Param returns the named parameter.
func (d Definition) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// RequiredParams lists the names of required parameters in declaration order.
func (d Definition) RequiredParams() []string {
	var out []string
	for _, p := range d.Params {
		if p.required() {
			out = append(out, p.Name)
		}
	}
	return out
}

func (d Definition) placeholders() []string {
	var out []string
	rest := d.Path
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			return out
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return out
		}
		out = append(out, rest[open+1:open+end])
		rest = rest[open+end+1:]
	}
}

// Kind classifies a failed invocation.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindUpstream       Kind = "upstream"
	KindTransport      Kind = "transport"
)

// Invocation is one tool call as decoded by a transport.
type Invocation struct {
	ID        string
	Tool      string
	Arguments map[string]any
}

// Result is the outcome of one invocation. Payload is the CRM body verbatim on success.
type Result struct {
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error,omitempty"`
	Status  int             `json:"status,omitempty"`
	Kind    Kind            `json:"kind,omitempty"`
}

// Outcome is the metrics label for the result.
func (r Result) Outcome() string {
	if r.Success {
		return "success"
	}
	return string(r.Kind)
}
