package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcp_sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestGenerateSchema_String(t *testing.T) {
	type Params struct {
		Name string `json:"name"`
	}
	schema := GenerateSchema[Params]()

	props := schema["properties"].(map[string]any)
	nameProp := props["name"].(map[string]any)
	if nameProp["type"] != "string" {
		t.Errorf("expected type string, got %v", nameProp["type"])
	}

	required := schema["required"].([]string)
	if len(required) != 1 || required[0] != "name" {
		t.Errorf("expected required=[name], got %v", required)
	}
}

func TestGenerateSchema_Integer(t *testing.T) {
	type Params struct {
		Limit int `json:"limit"`
	}
	schema := GenerateSchema[Params]()

	props := schema["properties"].(map[string]any)
	limitProp := props["limit"].(map[string]any)
	if limitProp["type"] != "integer" {
		t.Errorf("expected type integer, got %v", limitProp["type"])
	}
}

func TestGenerateSchema_Boolean(t *testing.T) {
	type Params struct {
		Force bool `json:"force"`
	}
	schema := GenerateSchema[Params]()

	props := schema["properties"].(map[string]any)
	forceProp := props["force"].(map[string]any)
	if forceProp["type"] != "boolean" {
		t.Errorf("expected type boolean, got %v", forceProp["type"])
	}
}

func TestGenerateSchema_Array(t *testing.T) {
	type Params struct {
		Tags []string `json:"tags"`
	}
	schema := GenerateSchema[Params]()

	props := schema["properties"].(map[string]any)
	tagsProp := props["tags"].(map[string]any)
	if tagsProp["type"] != "array" {
		t.Errorf("expected type array, got %v", tagsProp["type"])
	}
	items := tagsProp["items"].(map[string]any)
	if items["type"] != "string" {
		t.Errorf("expected items type string, got %v", items["type"])
	}
}

func TestGenerateSchema_NestedStruct(t *testing.T) {
	type Config struct {
		Value string `json:"value"`
	}
	type Params struct {
		Config Config `json:"config"`
	}
	schema := GenerateSchema[Params]()

	props := schema["properties"].(map[string]any)
	configProp := props["config"].(map[string]any)
	if configProp["type"] != "object" {
		t.Errorf("expected type object, got %v", configProp["type"])
	}
	nestedProps := configProp["properties"].(map[string]any)
	if _, ok := nestedProps["value"]; !ok {
		t.Error("expected nested property 'value'")
	}
}

func TestGenerateSchema_Omitempty(t *testing.T) {
	type Params struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	schema := GenerateSchema[Params]()

	required := schema["required"].([]string)
	if len(required) != 1 || required[0] != "name" {
		t.Errorf("expected required=[name], got %v", required)
	}
}

func TestGenerateSchema_Description(t *testing.T) {
	type Params struct {
		Name string `json:"name" description:"The entity name"`
	}
	schema := GenerateSchema[Params]()

	props := schema["properties"].(map[string]any)
	nameProp := props["name"].(map[string]any)
	if nameProp["description"] != "The entity name" {
		t.Errorf("expected description 'The entity name', got %v", nameProp["description"])
	}
}

func TestGenerateSchema_SkipUnexported(t *testing.T) {
	type Params struct {
		Name   string `json:"name"`
		hidden string //nolint:unused // intentionally unexported to test schema generation
	}
	schema := GenerateSchema[Params]()

	props := schema["properties"].(map[string]any)
	if _, ok := props["hidden"]; ok {
		t.Error("unexported field should not be in schema")
	}
}

func TestGenerateSchema_SkipJsonIgnore(t *testing.T) {
	type Params struct {
		Name   string `json:"name"`
		Secret string `json:"-"`
	}
	schema := GenerateSchema[Params]()

	props := schema["properties"].(map[string]any)
	if _, ok := props["Secret"]; ok {
		t.Error("json:\"-\" field should not be in schema")
	}
}

func TestResolveSchema(t *testing.T) {
	type Params struct {
		Name  string  `json:"name" description:"entity name"`
		Value float64 `json:"value,omitempty"`
	}
	resolved, err := ResolveSchema(GenerateSchema[Params]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Type != "object" {
		t.Errorf("expected object schema, got %q", resolved.Type)
	}
	if _, ok := resolved.Properties["name"]; !ok {
		t.Error("expected 'name' property in resolved schema")
	}
	if len(resolved.Required) != 1 || resolved.Required[0] != "name" {
		t.Errorf("expected required=[name], got %v", resolved.Required)
	}
}

func TestResolveSchema_EmptyDefaultsToObject(t *testing.T) {
	resolved, err := ResolveSchema(map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Type != "object" {
		t.Errorf("expected object default, got %q", resolved.Type)
	}
}

func TestRegistry_RegisterAndGetAllTools(t *testing.T) {
	r := NewRegistry()

	type Params struct {
		Name string `json:"name"`
	}

	handler := func(ctx context.Context, req *mcp_sdk.CallToolRequest, params Params) (*mcp_sdk.CallToolResult, any, error) {
		return NewTextResult("ok"), nil, nil
	}

	Register(r, ToolDef{Name: "tool_a", Description: "Tool A"}, handler)
	Register(r, ToolDef{Name: "tool_b", Description: "Tool B"}, handler)

	tools := r.GetAllTools()
	if len(tools) != 2 {
		t.Errorf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "tool_a" || tools[1].Name != "tool_b" {
		t.Error("tools not in registration order")
	}
}

func TestRegistry_CallTool(t *testing.T) {
	r := NewRegistry()

	type Params struct {
		Name string `json:"name"`
	}

	handler := func(ctx context.Context, req *mcp_sdk.CallToolRequest, params Params) (*mcp_sdk.CallToolResult, any, error) {
		return NewTextResult("Hello " + params.Name), nil, nil
	}

	Register(r, ToolDef{Name: "greet"}, handler)

	args, _ := json.Marshal(map[string]string{"name": "World"})
	result, err := r.CallTool(context.Background(), "greet", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctr, ok := result.(*mcp_sdk.CallToolResult)
	if !ok {
		t.Fatalf("expected CallToolResult, got %T", result)
	}

	text := ctr.Content[0].(*mcp_sdk.TextContent).Text
	if text != "Hello World" {
		t.Errorf("expected 'Hello World', got %q", text)
	}
}

func TestRegistry_CallTool_UnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.CallTool(context.Background(), "unknown", nil)
	if err == nil || err.Error() != "unknown tool: unknown" {
		t.Errorf("expected 'unknown tool' error, got %v", err)
	}
}
