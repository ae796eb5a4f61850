package anthropic

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/effective-security/llmkit/pkg/llms"
)

func unsupported(input, reason string) error {
	return &llms.UnsupportedInputError{Provider: llms.ProviderAnthropic, Input: input, Reason: reason}
}

// ProcessMessages converts messages to Anthropic message parameters.
// System messages are joined with a newline and returned as the system prompt.
func ProcessMessages(messages []llms.Message) ([]sdkanthropic.MessageParam, string, error) {
	chatMessages, systemBlocks, _, err := convertMessages(messages)
	if err != nil {
		return nil, "", err
	}
	system := make([]string, len(systemBlocks))
	for i, b := range systemBlocks {
		system[i] = b.Text
	}
	return chatMessages, strings.Join(system, "\n"), nil
}

// HandleSystemMessage returns the text of a system message part.
// System messages are sent in the system parameter, not as chat messages.
func HandleSystemMessage(msg llms.Message) (string, error) {
	if len(msg.Parts) > 0 {
		if textContent, ok := msg.Parts[0].(llms.TextContent); ok {
			return textContent.Text, nil
		}
	}
	return "", unsupported("system message", "invalid content type, only text is supported")
}

// HandleHumanMessage converts a human message to a user message.
// Text and base64 images are supported.
func HandleHumanMessage(msg llms.Message) (sdkanthropic.MessageParam, error) {
	var contents []sdkanthropic.ContentBlockParamUnion

	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			contents = append(contents, sdkanthropic.NewTextBlock(p.Text))
		case llms.BinaryContent:
			if !strings.HasPrefix(p.MIMEType, "image/") {
				return sdkanthropic.MessageParam{}, unsupported(p.MIMEType, "unsupported binary content type")
			}
			encodedData := base64.StdEncoding.EncodeToString(p.Data)
			contents = append(contents, sdkanthropic.NewImageBlockBase64(p.MIMEType, encodedData))
		case llms.ImageURLContent:
			return sdkanthropic.MessageParam{}, unsupported("image URL", "images must be sent as binary content")
		default:
			return sdkanthropic.MessageParam{}, unsupported("human message part", "unsupported part type")
		}
	}

	if len(contents) == 0 {
		return sdkanthropic.MessageParam{}, unsupported("empty content", "no valid content in human message")
	}
	return sdkanthropic.NewUserMessage(contents...), nil
}

// HandleAIMessage converts an AI message to an assistant message.
// Tool call arguments must be valid JSON.
func HandleAIMessage(msg llms.Message) (sdkanthropic.MessageParam, error) {
	var contents []sdkanthropic.ContentBlockParamUnion

	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.ToolCall:
			if p.FunctionCall == nil {
				return sdkanthropic.MessageParam{}, unsupported("tool call", "missing function call")
			}
			var inputJSON json.RawMessage
			if err := json.Unmarshal([]byte(p.FunctionCall.Arguments), &inputJSON); err != nil {
				return sdkanthropic.MessageParam{}, unsupported("tool call", "failed to unmarshal tool call arguments: "+err.Error())
			}
			contents = append(contents, sdkanthropic.NewToolUseBlock(p.ID, inputJSON, p.FunctionCall.Name))
		case llms.TextContent:
			contents = append(contents, sdkanthropic.NewTextBlock(p.Text))
		default:
			return sdkanthropic.MessageParam{}, unsupported("AI message part", "unsupported part type")
		}
	}

	if len(contents) == 0 {
		return sdkanthropic.MessageParam{}, unsupported("empty content", "no valid content in AI message")
	}
	return sdkanthropic.NewAssistantMessage(contents...), nil
}

// HandleToolMessage converts tool call responses to a user message with
// tool result blocks.
func HandleToolMessage(msg llms.Message) (sdkanthropic.MessageParam, error) {
	var contents []sdkanthropic.ContentBlockParamUnion

	for _, part := range msg.Parts {
		toolCallResponse, ok := part.(llms.ToolCallResponse)
		if !ok {
			return sdkanthropic.MessageParam{}, unsupported("tool message", "invalid content type, expected a tool call response")
		}
		contents = append(contents, sdkanthropic.NewToolResultBlock(
			toolCallResponse.ToolCallID,
			toolCallResponse.Content,
			false, // isError
		))
	}

	if len(contents) == 0 {
		return sdkanthropic.MessageParam{}, unsupported("empty content", "no valid content in tool message")
	}
	return sdkanthropic.NewUserMessage(contents...), nil
}

// ToTools converts tool definitions to Anthropic tool parameters.
// It returns nil if no tools are provided.
func ToTools(tools []llms.Tool) []sdkanthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	sdkTools := make([]sdkanthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool.Function == nil {
			continue
		}
		inputSchema := sdkanthropic.ToolInputSchemaParam{
			Type: "object",
		}
		if params := tool.Function.Parameters; params != nil {
			// the SDK takes a plain map, the schema keeps properties ordered
			if params.Properties != nil {
				properties := make(map[string]any, params.Properties.Len())
				for pair := params.Properties.Oldest(); pair != nil; pair = pair.Next() {
					properties[pair.Key] = pair.Value
				}
				inputSchema.Properties = properties
			}
			if len(params.Required) > 0 {
				inputSchema.Required = params.Required
			}
		}

		sdkTools = append(sdkTools, sdkanthropic.ToolUnionParam{
			OfTool: &sdkanthropic.ToolParam{
				Name:        tool.Function.Name,
				Description: sdkanthropic.String(tool.Function.Description),
				InputSchema: inputSchema,
			},
		})
	}
	if len(sdkTools) == 0 {
		return nil
	}
	return sdkTools
}
