package server

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"recruitcrm-mcp/internal/tools"
)

// Tool describes an MCP tool and its input schema.
type Tool struct {
	Name                 string             `json:"name"`
	Description          string             `json:"description"`
	Category             tools.Category     `json:"category"`
	Helpers              []string           `json:"helper_tools,omitempty"`
	RequiresConfirmation bool               `json:"requires_confirmation,omitempty"`
	InputSchema          *jsonschema.Schema `json:"inputSchema"`
}

// ToolList is the body of GET /mcp/tools.
type ToolList struct {
	Tools []Tool `json:"tools"`
}

// CallRequest is the HTTP-mode invocation envelope. ID may be any JSON value and is echoed back.
type CallRequest struct {
	ID        json.RawMessage `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments map[string]any  `json:"arguments"`
}

// CallResponse is the HTTP-mode result envelope. ID echoes the request id, null when absent.
type CallResponse struct {
	ID     json.RawMessage `json:"id"`
	Result tools.Result    `json:"result"`
}

// SuggestResponse ranks tools for a query and carries the intent analysis of the query.
type SuggestResponse struct {
	Query       string              `json:"query"`
	Analysis    tools.QueryAnalysis `json:"query_analysis"`
	Suggestions []tools.Suggestion  `json:"suggestions"`
}

func (c CallRequest) hasID() bool {
	trimmed := bytes.TrimSpace(c.ID)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func (c CallRequest) echoID() json.RawMessage {
	if !c.hasID() {
		return json.RawMessage("null")
	}
	return c.ID
}

// invocationID is the log correlation id: the caller's id when it is a string or number, else a fresh UUID.
func (c CallRequest) invocationID() string {
	if !c.hasID() {
		return newInvocationID()
	}
	var s string
	if err := json.Unmarshal(c.ID, &s); err == nil && s != "" {
		return s
	}
	raw := strings.TrimSpace(string(c.ID))
	if raw[0] == '{' || raw[0] == '[' {
		return newInvocationID()
	}
	return raw
}

func toolDescriptor(d tools.Definition) Tool {
	return Tool{
		Name:                 d.Name,
		Description:          d.Description,
		Category:             d.Category,
		Helpers:              d.Helpers,
		RequiresConfirmation: d.RequiresConfirmation,
		InputSchema:          d.InputSchema(),
	}
}
