package mcp

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"sova/gigachat"
)

// ConvertToolsToGigaChat maps MCP tool schemas to the GigaChat functions
// dialect. The input schema is JSON Schema; GigaChat accepts the usual
// type/description/enum/items subset per property.
func ConvertToolsToGigaChat(mcpTools []mcptypes.Tool) []gigachat.Function {
	if len(mcpTools) == 0 {
		return nil
	}

	funcs := make([]gigachat.Function, 0, len(mcpTools))
	for _, tool := range mcpTools {
		fn := gigachat.Function{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: gigachat.FunctionParameters{
				Type:       tool.InputSchema.Type,
				Required:   tool.InputSchema.Required,
				Properties: make(map[string]gigachat.FunctionProperty),
			},
		}
		if fn.Parameters.Type == "" {
			fn.Parameters.Type = "object"
		}
		for name, prop := range tool.InputSchema.Properties {
			fn.Parameters.Properties[name] = convertGigaChatProperty(prop)
		}
		funcs = append(funcs, fn)
	}
	return funcs
}

func convertGigaChatProperty(propValue any) gigachat.FunctionProperty {
	prop := gigachat.FunctionProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		raw, err := json.Marshal(propValue)
		if err != nil {
			return prop
		}
		if err := json.Unmarshal(raw, &propMap); err != nil {
			return prop
		}
	}

	if t, ok := propMap["type"].(string); ok {
		prop.Type = t
	}
	if desc, ok := propMap["description"].(string); ok {
		prop.Description = desc
	}
	if enum, ok := propMap["enum"].([]any); ok {
		prop.Enum = enum
	}
	if items, ok := propMap["items"]; ok {
		prop.Items = items
	}
	return prop
}

// ConvertToolsToOllama maps MCP tool schemas to the Ollama API tool format.
func ConvertToolsToOllama(mcpTools []mcptypes.Tool) []api.Tool {
	ollamaTools := make([]api.Tool, 0, len(mcpTools))
	for _, tool := range mcpTools {
		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  convertOllamaParameters(tool.InputSchema),
			},
		})
	}
	return ollamaTools
}

func convertOllamaParameters(schema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       schema.Type,
		Required:   schema.Required,
		Properties: make(map[string]api.ToolProperty),
	}
	if schema.Defs != nil {
		params.Defs = schema.Defs
	}
	for name, prop := range schema.Properties {
		params.Properties[name] = convertOllamaProperty(prop)
	}
	return params
}

func convertOllamaProperty(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		raw, err := json.Marshal(propValue)
		if err != nil {
			return toolProp
		}
		if err := json.Unmarshal(raw, &propMap); err != nil {
			return toolProp
		}
	}

	// type may be a single string or a list of types.
	if typeVal, ok := propMap["type"]; ok {
		switch t := typeVal.(type) {
		case string:
			toolProp.Type = api.PropertyType{t}
		case []string:
			toolProp.Type = api.PropertyType(t)
		case []any:
			types := make([]string, 0, len(t))
			for _, v := range t {
				if s, ok := v.(string); ok {
					types = append(types, s)
				}
			}
			toolProp.Type = api.PropertyType(types)
		}
	}
	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}
	if enum, ok := propMap["enum"].([]any); ok {
		toolProp.Enum = enum
	}
	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}
	if anyOf, ok := propMap["anyOf"].([]any); ok {
		props := make([]api.ToolProperty, 0, len(anyOf))
		for _, item := range anyOf {
			props = append(props, convertOllamaProperty(item))
		}
		toolProp.AnyOf = props
	}
	return toolProp
}

// ConvertToolsToOpenAI maps MCP tool schemas to the OpenAI function tool
// format. Both sides are JSON Schema, so the input schema passes through as
// a parameter map.
func ConvertToolsToOpenAI(mcpTools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(mcpTools))
	for i, tool := range mcpTools {
		params := openai.FunctionParameters{
			"type":       tool.InputSchema.Type,
			"properties": tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			params["required"] = tool.InputSchema.Required
		}
		if tool.InputSchema.Defs != nil {
			params["$defs"] = tool.InputSchema.Defs
		}

		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  params,
			},
		)
	}
	return result
}

// ConvertToolsToAnthropic maps MCP tool schemas to Anthropic tool params.
func ConvertToolsToAnthropic(mcpTools []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(mcpTools))
	for i, tool := range mcpTools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: tool.InputSchema.Properties,
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema.Required = tool.InputSchema.Required
		}
		if tool.InputSchema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{
				"$defs": tool.InputSchema.Defs,
			}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}
	return result
}
