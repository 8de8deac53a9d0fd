// Package mcp exposes the rule engine's control surface as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// paramSpec describes one tool argument.
type paramSpec struct {
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// toolSpec is a tool definition plus its implementation. run receives the
// raw JSON arguments and returns a value rendered as JSON text.
type toolSpec struct {
	Name        string
	Description string
	Parameters  map[string]paramSpec
	run         func(ctx context.Context, args json.RawMessage) (any, error)
}

// toMCPTool converts a toolSpec to an mcp.Tool with JSON Schema.
func toMCPTool(spec toolSpec) *mcpsdk.Tool {
	props := make(map[string]any, len(spec.Parameters))
	var required []string

	for name, p := range spec.Parameters {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop

		if p.Required {
			required = append(required, name)
		}
	}

	// Sort required for deterministic output
	sort.Strings(required)

	inputSchema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		inputSchema["required"] = required
	}

	return &mcpsdk.Tool{
		Name:        spec.Name,
		Description: spec.Description,
		InputSchema: inputSchema,
	}
}

// toResult runs a tool and renders its outcome. Tool failures are reported
// in the result, not as protocol errors.
func toResult(ctx context.Context, spec toolSpec, args json.RawMessage) *mcpsdk.CallToolResult {
	out, err := spec.run(ctx, args)
	if err != nil {
		return errorResult(err.Error())
	}
	text, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errorResult(err.Error())
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(text)}},
	}
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
	}
}
