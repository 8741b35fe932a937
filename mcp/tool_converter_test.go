package mcp

import (
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
)

func calculatorTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "calculate",
		Description: "Perform calculation",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"operation": map[string]any{
					"type":        "string",
					"description": "The operation to perform",
					"enum":        []any{"add", "subtract", "multiply", "divide"},
				},
				"a": map[string]any{
					"type":        "number",
					"description": "First operand",
				},
				"b": map[string]any{
					"type":        "number",
					"description": "Second operand",
				},
			},
			Required: []string{"operation", "a", "b"},
		},
	}
}

func TestConvertToolsToGigaChat(t *testing.T) {
	funcs := ConvertToolsToGigaChat([]mcptypes.Tool{calculatorTool()})

	if len(funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(funcs))
	}

	fn := funcs[0]
	if fn.Name != "calculate" {
		t.Errorf("name mismatch: %q", fn.Name)
	}
	if fn.Description != "Perform calculation" {
		t.Errorf("description mismatch: %q", fn.Description)
	}
	if fn.Parameters.Type != "object" {
		t.Errorf("parameters type mismatch: %q", fn.Parameters.Type)
	}
	if len(fn.Parameters.Required) != 3 {
		t.Errorf("expected 3 required fields, got %d", len(fn.Parameters.Required))
	}
	if len(fn.Parameters.Properties) != 3 {
		t.Errorf("expected 3 properties, got %d", len(fn.Parameters.Properties))
	}

	op, ok := fn.Parameters.Properties["operation"]
	if !ok {
		t.Fatal("operation property not found")
	}
	if op.Type != "string" {
		t.Errorf("operation type mismatch: %q", op.Type)
	}
	if op.Description != "The operation to perform" {
		t.Error("operation description mismatch")
	}
	if len(op.Enum) != 4 {
		t.Errorf("expected 4 enum values, got %d", len(op.Enum))
	}
}

func TestConvertToolsToGigaChatDefaultsObjectType(t *testing.T) {
	funcs := ConvertToolsToGigaChat([]mcptypes.Tool{
		{Name: "ping", InputSchema: mcptypes.ToolInputSchema{Properties: map[string]any{}}},
	})
	if funcs[0].Parameters.Type != "object" {
		t.Errorf("expected default type object, got %q", funcs[0].Parameters.Type)
	}
}

func TestConvertToolsToGigaChatEmpty(t *testing.T) {
	if got := ConvertToolsToGigaChat(nil); got != nil {
		t.Errorf("expected nil for no tools, got %v", got)
	}
}

func TestConvertToolsToOllama(t *testing.T) {
	tools := ConvertToolsToOllama([]mcptypes.Tool{calculatorTool()})

	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if tools[0].Type != "function" {
		t.Errorf("expected type 'function', got %q", tools[0].Type)
	}
	if tools[0].Function.Name != "calculate" {
		t.Errorf("name mismatch: %q", tools[0].Function.Name)
	}

	params := tools[0].Function.Parameters
	if params.Type != "object" {
		t.Errorf("parameters type mismatch: %q", params.Type)
	}
	if len(params.Properties) != 3 {
		t.Errorf("expected 3 properties, got %d", len(params.Properties))
	}

	op, ok := params.Properties["operation"]
	if !ok {
		t.Fatal("operation property not found")
	}
	if len(op.Enum) != 4 {
		t.Errorf("expected 4 enum values, got %d", len(op.Enum))
	}
}

func TestConvertOllamaProperty(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		validate func(t *testing.T, result api.ToolProperty)
	}{
		{
			name: "string type",
			input: map[string]any{
				"type":        "string",
				"description": "A string property",
			},
			validate: func(t *testing.T, result api.ToolProperty) {
				if len(result.Type) != 1 || result.Type[0] != "string" {
					t.Errorf("expected type [string], got %v", result.Type)
				}
				if result.Description != "A string property" {
					t.Error("description mismatch")
				}
			},
		},
		{
			name: "multi-type property",
			input: map[string]any{
				"type": []any{"string", "number"},
			},
			validate: func(t *testing.T, result api.ToolProperty) {
				if len(result.Type) != 2 {
					t.Errorf("expected 2 types, got %d", len(result.Type))
				}
			},
		},
		{
			name: "array property with items",
			input: map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			validate: func(t *testing.T, result api.ToolProperty) {
				if result.Items == nil {
					t.Error("expected items to be set")
				}
			},
		},
		{
			name: "anyOf union",
			input: map[string]any{
				"anyOf": []any{
					map[string]any{"type": "string"},
					map[string]any{"type": "number"},
				},
			},
			validate: func(t *testing.T, result api.ToolProperty) {
				if len(result.AnyOf) != 2 {
					t.Errorf("expected 2 anyOf options, got %d", len(result.AnyOf))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, convertOllamaProperty(tt.input))
		})
	}
}

func TestConvertToolsToOpenAI(t *testing.T) {
	tools := ConvertToolsToOpenAI([]mcptypes.Tool{calculatorTool()})

	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	fn := tools[0].OfFunction
	if fn == nil {
		t.Fatal("expected function tool variant")
	}
	if fn.Function.Name != "calculate" {
		t.Errorf("name mismatch: %q", fn.Function.Name)
	}
	if fn.Function.Parameters["type"] != "object" {
		t.Error("parameters type mismatch")
	}
	if req, ok := fn.Function.Parameters["required"].([]string); !ok || len(req) != 3 {
		t.Error("required fields not carried over")
	}
}

func TestConvertToolsToAnthropic(t *testing.T) {
	tools := ConvertToolsToAnthropic([]mcptypes.Tool{calculatorTool()})

	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if tools[0].OfTool == nil {
		t.Fatal("expected tool variant")
	}
	if tools[0].OfTool.Name != "calculate" {
		t.Errorf("name mismatch: %q", tools[0].OfTool.Name)
	}
	if len(tools[0].OfTool.InputSchema.Required) != 3 {
		t.Error("required fields not carried over")
	}
}

func TestListAllToolsNamespacing(t *testing.T) {
	pm := NewProcessManager()
	pm.processes["weather"] = &ServerProcess{
		ID:      "weather",
		Running: true,
		Tools:   []mcptypes.Tool{{Name: "get_forecast"}},
	}

	agg := NewAggregator(pm)
	tools := agg.ListAllTools()

	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if tools[0].Name != "weather.get_forecast" {
		t.Errorf("expected namespaced name, got %q", tools[0].Name)
	}
}

func TestListAllToolsEmptyWhenNoServers(t *testing.T) {
	agg := NewAggregator(NewProcessManager())
	if tools := agg.ListAllTools(); len(tools) != 0 {
		t.Errorf("expected empty catalog, got %d tools", len(tools))
	}
}
