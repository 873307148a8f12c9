package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool represents a registered MCP tool with its compiled input schema.
type Tool struct {
	Definition ToolDefinition
	schema     *jsonschema.Schema
}

// ToolRegistry holds the tool descriptors advertised by tools/list.
// Tools are stored in a slice to preserve registration order and are never
// modified after construction.
type ToolRegistry struct {
	tools  []*Tool
	byName map[string]*Tool
}

// NewToolRegistry builds a registry from defs. A duplicate name or a schema
// that does not compile is returned as an error.
func NewToolRegistry(defs []ToolDefinition) (*ToolRegistry, error) {
	r := &ToolRegistry{
		tools:  make([]*Tool, 0, len(defs)),
		byName: make(map[string]*Tool, len(defs)),
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultToolRegistry returns the registry of Konnect tools.
func DefaultToolRegistry() (*ToolRegistry, error) {
	return NewToolRegistry(allToolDefinitions())
}

// Register adds a tool to the registry.
func (r *ToolRegistry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return errors.New("tool name is required")
	}
	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("duplicate tool %q", def.Name)
	}
	schema, err := compileToolSchema(def)
	if err != nil {
		return fmt.Errorf("tool %q: %w", def.Name, err)
	}
	tool := &Tool{Definition: def, schema: schema}
	r.tools = append(r.tools, tool)
	r.byName[def.Name] = tool
	return nil
}

// Get retrieves a tool by name.
func (r *ToolRegistry) Get(name string) *Tool {
	return r.byName[name]
}

// List returns all tool definitions in registration order.
func (r *ToolRegistry) List() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition)
	}
	return defs
}

// Names returns tool names in registration order.
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, tool := range r.tools {
		names = append(names, tool.Definition.Name)
	}
	return names
}

// Schema returns the compiled input schema for name, or nil.
func (r *ToolRegistry) Schema(name string) *jsonschema.Schema {
	if tool := r.byName[name]; tool != nil {
		return tool.schema
	}
	return nil
}

// compileToolSchema compiles a tool's input schema (Draft 2020-12).
func compileToolSchema(def ToolDefinition) (*jsonschema.Schema, error) {
	if def.InputSchema == nil {
		return nil, errors.New("input schema is required")
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	// Round-trip through JSON so Go literals become JSON values.
	data, err := json.Marshal(def.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	url := def.Name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return compiler.Compile(url)
}

// validateArguments checks args against schema and flattens violations into
// one readable message.
func validateArguments(schema *jsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	var doc interface{} = args
	if args == nil {
		doc = map[string]interface{}{}
	}
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	var msgs []string
	collectSchemaErrors(verr, &msgs)
	return fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(msgs, "; "))
}

func collectSchemaErrors(err *jsonschema.ValidationError, msgs *[]string) {
	if len(err.Causes) == 0 {
		field := strings.ReplaceAll(strings.TrimPrefix(err.InstanceLocation, "/"), "/", ".")
		if field == "" {
			*msgs = append(*msgs, err.Message)
		} else {
			*msgs = append(*msgs, field+": "+err.Message)
		}
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, msgs)
	}
}

// =============================================================================
// Argument extraction helpers
// =============================================================================

func getString(args map[string]interface{}, key, defaultVal string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

func getInt(args map[string]interface{}, key string, defaultVal int) int {
	if v, ok := args[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return defaultVal
}

func getBool(args map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

func getBoolPtr(args map[string]interface{}, key string) *bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return &b
		}
	}
	return nil
}

func getStringSlice(args map[string]interface{}, key string) []string {
	v, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(v))
	for _, item := range v {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getIntSlice(args map[string]interface{}, key string) []int {
	v, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(v))
	for _, item := range v {
		switch n := item.(type) {
		case float64:
			out = append(out, int(n))
		case int:
			out = append(out, n)
		}
	}
	return out
}
