package provider

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"sova/gigachat"
	"sova/model"
)

// ConvertToGigaChatMessages converts conversation messages to the GigaChat
// wire format. Tool results become role=function messages keyed by function
// name; assistant tool requests are restored as function_call so the model
// can match results to its own calls.
func ConvertToGigaChatMessages(messages []model.Message) []gigachat.Message {
	result := make([]gigachat.Message, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleTool:
			result[i] = gigachat.Message{
				Role:    "function",
				Name:    msg.ToolName,
				Content: msg.Content,
			}
		case model.RoleAssistant:
			gm := gigachat.Message{Role: "assistant", Content: msg.Content}
			if len(msg.ToolCalls) > 0 {
				gm.FunctionCall = &gigachat.FunctionCall{
					Name:      msg.ToolCalls[0].Name,
					Arguments: msg.ToolCalls[0].Arguments,
				}
			}
			result[i] = gm
		default:
			result[i] = gigachat.Message{Role: msg.Role, Content: msg.Content}
		}
	}
	return result
}

// ConvertToOllamaMessages converts conversation messages to Ollama api
// messages. Ollama keys tool results by tool name.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		am := api.Message{
			Role:    msg.Role,
			Content: msg.Content,
		}
		if msg.Role == model.RoleTool {
			am.ToolName = msg.ToolName
		}
		if len(msg.ToolCalls) > 0 {
			am.ToolCalls = convertToOllamaToolCalls(msg.ToolCalls)
		}
		result[i] = am
	}
	return result
}

func convertToOllamaToolCalls(calls []model.ToolCall) []api.ToolCall {
	result := make([]api.ToolCall, len(calls))
	for i, call := range calls {
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		}
	}
	return result
}

// ConvertFromOllamaToolCalls converts Ollama tool calls to the
// provider-agnostic form. Returns nil for empty input.
func ConvertFromOllamaToolCalls(ollamaCalls []api.ToolCall) []model.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]model.ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		result[i] = model.ToolCall{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}
	}
	return result
}

// ConvertToOpenAIMessages converts conversation messages to OpenAI chat
// params. Tool results carry their tool_call_id; assistant messages that
// requested tools carry the original tool_calls so the API accepts the
// follow-up tool messages.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case model.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				result[i] = openai.ChatCompletionMessageParamUnion{
					OfAssistant: convertToOpenAIAssistant(msg),
				}
			} else {
				result[i] = openai.AssistantMessage(msg.Content)
			}
		case model.RoleTool:
			result[i] = openai.ToolMessage(msg.Content, msg.ToolCallID)
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}
	return result
}

func convertToOpenAIAssistant(msg model.Message) *openai.ChatCompletionAssistantMessageParam {
	param := &openai.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" {
		param.Content.OfString = openai.String(msg.Content)
	}

	param.ToolCalls = make([]openai.ChatCompletionMessageToolCallUnionParam, len(msg.ToolCalls))
	for i, call := range msg.ToolCalls {
		args, err := json.Marshal(call.Arguments)
		if err != nil {
			args = []byte("{}")
		}
		param.ToolCalls[i] = openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: string(args),
				},
			},
		}
	}
	return param
}

// ConvertToAnthropicMessages converts conversation messages to Anthropic
// params. System messages are collected separately because Anthropic takes
// them as a top-level parameter. Tool results become tool_result blocks in
// user messages, tool requests become tool_use blocks in assistant messages.
func ConvertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})

		case model.RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, call.Arguments, call.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			anthropicMsgs = append(anthropicMsgs, anthropic.NewAssistantMessage(blocks...))

		case model.RoleTool:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)),
			)

		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)
		}
	}

	return anthropicMsgs, systemBlocks
}

// ParseToolArguments parses a JSON arguments string into a map. Malformed
// arguments yield an empty map rather than an error; the tool itself will
// reject them with a useful message.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return make(map[string]any)
	}
	return args
}
