package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/ruleflow/internal/automation"
)

// RuleService is the engine control surface exposed as tools.
type RuleService interface {
	Rules(ctx context.Context) ([]automation.Rule, error)
	SaveRule(ctx context.Context, rule automation.Rule) (automation.Rule, error)
	DeleteRule(ctx context.Context, id string) error
	ToggleRuleStatus(ctx context.Context, id string, enabled bool) error
	Definitions() automation.Definitions
}

// NewMCPServer creates an MCP server exposing the rule tools. filter is a
// comma separated list of tool names; empty exposes every tool.
func NewMCPServer(rules RuleService, version, filter string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "ruleflow",
		Version: version,
	}, nil)

	for _, spec := range ruleTools(rules) {
		if !matchesFilter(spec.Name, filter) {
			continue
		}

		// Capture spec in closure
		spec := spec
		server.AddTool(toMCPTool(spec), func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			res := toResult(ctx, spec, req.Params.Arguments)
			if res.IsError {
				slog.Debug("mcp tool error", "tool", spec.Name)
			}
			return res, nil
		})

		slog.Debug("mcp tool registered", "tool", spec.Name)
	}

	return server
}

func matchesFilter(name, filter string) bool {
	if strings.TrimSpace(filter) == "" {
		return true
	}
	for _, f := range strings.Split(filter, ",") {
		if strings.TrimSpace(f) == name {
			return true
		}
	}
	return false
}

// Serve runs the server over stdio until ctx is done or the client leaves.
func Serve(ctx context.Context, server *mcpsdk.Server) error {
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

type idArgs struct {
	ID string `json:"id"`
}

func (a idArgs) validate() error {
	if a.ID == "" {
		return errors.New("id is required")
	}
	return nil
}

func ruleTools(rules RuleService) []toolSpec {
	return []toolSpec{
		{
			Name:        "list_rules",
			Description: "List every automation rule with its trigger, conditions and actions.",
			Parameters: map[string]paramSpec{
				"enabled_only": {Type: "boolean", Description: "Only return enabled rules"},
			},
			run: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var args struct {
					EnabledOnly bool `json:"enabled_only"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				all, err := rules.Rules(ctx)
				if err != nil {
					return nil, err
				}
				if !args.EnabledOnly {
					return all, nil
				}
				out := []automation.Rule{}
				for _, r := range all {
					if r.IsEnabled {
						out = append(out, r)
					}
				}
				return out, nil
			},
		},
		{
			Name:        "save_rule",
			Description: "Create or replace a rule. Omit the id to create a new rule. Use list_definitions for valid types.",
			Parameters: map[string]paramSpec{
				"rule": {Type: "object", Description: "Rule with name, isEnabled, trigger {type, value}, conditions [{type, value}] and actions [{type, value}]", Required: true},
			},
			run: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var args struct {
					Rule *automation.Rule `json:"rule"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				if args.Rule == nil {
					return nil, errors.New("rule is required")
				}
				return rules.SaveRule(ctx, *args.Rule)
			},
		},
		{
			Name:        "delete_rule",
			Description: "Delete a rule by id.",
			Parameters: map[string]paramSpec{
				"id": {Type: "string", Description: "Rule id", Required: true},
			},
			run: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var args idArgs
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				if err := args.validate(); err != nil {
					return nil, err
				}
				if err := rules.DeleteRule(ctx, args.ID); err != nil {
					return nil, err
				}
				return map[string]string{"deleted": args.ID}, nil
			},
		},
		{
			Name:        "toggle_rule",
			Description: "Enable or disable a rule.",
			Parameters: map[string]paramSpec{
				"id":      {Type: "string", Description: "Rule id", Required: true},
				"enabled": {Type: "boolean", Description: "New state", Required: true},
			},
			run: func(ctx context.Context, raw json.RawMessage) (any, error) {
				var args struct {
					idArgs
					Enabled *bool `json:"enabled"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				if err := args.validate(); err != nil {
					return nil, err
				}
				if args.Enabled == nil {
					return nil, errors.New("enabled is required")
				}
				if err := rules.ToggleRuleStatus(ctx, args.ID, *args.Enabled); err != nil {
					return nil, err
				}
				return map[string]any{"id": args.ID, "isEnabled": *args.Enabled}, nil
			},
		},
		{
			Name:        "list_definitions",
			Description: "List the available trigger, condition and action types.",
			Parameters:  map[string]paramSpec{},
			run: func(context.Context, json.RawMessage) (any, error) {
				return rules.Definitions(), nil
			},
		},
	}
}
