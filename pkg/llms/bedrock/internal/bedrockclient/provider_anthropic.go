package bedrockclient

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/effective-security/llmkit/pkg/llms"
)

// Ref: https://docs.aws.amazon.com/bedrock/latest/userguide/model-parameters-anthropic-claude-messages.html
// Also: https://docs.anthropic.com/claude/reference/messages_post

// anthropicBinGenerationInputSource is the source of the content.
type anthropicBinGenerationInputSource struct {
	// The type of the source. Required
	// One of: "base64"
	Type string `json:"type"`
	// The MIME type of the source. Required
	// One of: []"image/jpeg", "image/png", "image/gif", "image/bmp", "image/webp"]
	MediaType string `json:"media_type"`
	// The data of the source. Required
	// For example if type is "base64" then data is a base64 encoded string
	Data string `json:"data"`
}

// anthropicTextGenerationInputContent is a single message in the input.
type anthropicTextGenerationInputContent struct {
	// The type of the content. Required.
	// One of: "text", "image", "tool_use", "tool_result"
	Type string `json:"type"`
	// The source of the content. Required if type is "image"
	Source *anthropicBinGenerationInputSource `json:"source,omitempty"`
	// The text content. Required if type is "text"
	Text string `json:"text,omitempty"`
	// Tool use fields
	ID    string          `json:"id,omitempty"`    // Required if type is "tool_use"
	Name  string          `json:"name,omitempty"`  // Required if type is "tool_use"
	Input json.RawMessage `json:"input,omitempty"` // Required if type is "tool_use"
	// Tool result fields
	ToolUseID string `json:"tool_use_id,omitempty"` // Required if type is "tool_result"
	Content   string `json:"content,omitempty"`     // Required if type is "tool_result"
	IsError   bool   `json:"is_error,omitempty"`    // Optional for type "tool_result"
}

type anthropicTextGenerationInputMessage struct {
	// The role of the message. Required
	// One of: ["user", "assistant"]
	// For system prompt, use the system field in the input
	Role string `json:"role"`
	// The content of the message. Required
	Content []anthropicTextGenerationInputContent `json:"content"`
}

// anthropicTool represents a tool that can be used by the model
type anthropicTool struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	InputSchema anthropicInputSchema `json:"input_schema"`
}

// anthropicInputSchema represents the JSON schema for tool input
type anthropicInputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// anthropicTextGenerationInput is the input to the model.
type anthropicTextGenerationInput struct {
	// The version of the model to use. Required
	AnthropicVersion string `json:"anthropic_version"`
	// The maximum number of tokens to generate per result. Required
	MaxTokens int `json:"max_tokens"`
	// The system prompt to use. Optional
	System string `json:"system,omitempty"`
	// The messages to use. Required
	Messages []*anthropicTextGenerationInputMessage `json:"messages"`
	// The amount of randomness injected into the response. Optional, default = 1
	Temperature float64 `json:"temperature,omitempty"`
	// The probability mass from which tokens are sampled. Optional, default = 1
	TopP float64 `json:"top_p,omitempty"`
	// Only sample from the top K options for each subsequent token.
	// Use top_k to remove long tail low probability responses.
	// Optional, default = 250
	TopK int `json:"top_k,omitempty"`
	// Sequences that will cause the model to stop generating tokens. Optional
	StopSequences []string `json:"stop_sequences,omitempty"`
	// Tools to use. Optional
	Tools []anthropicTool `json:"tools,omitempty"`
}

// anthropicTextGenerationOutputContent represents a content block in the output
type anthropicTextGenerationOutputContent struct {
	Type string `json:"type"`
	// Text content fields
	Text string `json:"text,omitempty"`
	// Tool use fields
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// anthropicTextGenerationOutput is the generated output.
type anthropicTextGenerationOutput struct {
	// Type of the content.
	// For messages, it is "message"
	Type string `json:"type"`
	// Conversational role of the generated message.
	// This will always be "assistant".
	Role string `json:"role"`
	// This is an array of content blocks, each of which has a type that determines its shape.
	// Can be "text" or "tool_use".
	Content []anthropicTextGenerationOutputContent `json:"content"`
	// The reason for the completion of the generation.
	// One of: ["end_turn", "max_tokens", "stop_sequence", "tool_use"]
	StopReason string `json:"stop_reason"`
	// Which custom stop sequence was matched, if any.
	StopSequence string `json:"stop_sequence"`
	Usage        struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// Finish reason for the completion of the generation.
const (
	AnthropicCompletionReasonEndTurn      = "end_turn"
	AnthropicCompletionReasonMaxTokens    = "max_tokens"
	AnthropicCompletionReasonStopSequence = "stop_sequence"
	AnthropicCompletionReasonToolUse      = "tool_use"
)

// The latest version of the model.
const (
	AnthropicLatestVersion = "bedrock-2023-05-31"
)

// Role attribute for the anthropic message.
const (
	AnthropicSystem        = "system"
	AnthropicRoleUser      = "user"
	AnthropicRoleAssistant = "assistant"
)

// Type attribute for the anthropic message.
const (
	AnthropicMessageTypeText       = "text"
	AnthropicMessageTypeImage      = "image"
	AnthropicMessageTypeToolUse    = "tool_use"
	AnthropicMessageTypeToolResult = "tool_result"
)

// BuildAnthropicBody returns the Messages API body for Claude models.
func BuildAnthropicBody(messages []Message, options llms.CallOptions) ([]byte, error) {
	inputContents, systemPrompt, err := processInputMessagesAnthropic(messages)
	if err != nil {
		return nil, err
	}
	if len(inputContents) == 0 {
		return nil, &llms.UnsupportedInputError{Provider: llms.ProviderBedrock, Input: "empty content", Reason: "request must contain a user message"}
	}

	// Convert tools to Anthropic format
	var tools []anthropicTool
	for _, tool := range options.Tools {
		if tool.Function == nil {
			return nil, &llms.UnsupportedInputError{Provider: llms.ProviderBedrock, Input: "tool " + tool.Type, Reason: "only function tools are supported"}
		}
		schema := anthropicInputSchema{Type: "object"}
		if params := tool.Function.Parameters; params != nil {
			if params.Properties != nil {
				schema.Properties = make(map[string]any)
				for pair := params.Properties.Oldest(); pair != nil; pair = pair.Next() {
					schema.Properties[pair.Key] = pair.Value
				}
			}
			schema.Required = params.Required
		}
		tools = append(tools, anthropicTool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: schema,
		})
	}

	input := anthropicTextGenerationInput{
		AnthropicVersion: AnthropicLatestVersion,
		MaxTokens:        getMaxTokens(options.MaxTokens, 2048),
		System:           systemPrompt,
		Messages:         inputContents,
		Temperature:      options.Temperature,
		TopP:             options.TopP,
		TopK:             options.TopK,
		StopSequences:    options.StopWords,
		Tools:            tools,
	}
	return json.Marshal(input)
}

// ParseAnthropicOutput maps a Messages API response to a ContentResponse.
// Text blocks are joined in one choice, tool use blocks in another.
func ParseAnthropicOutput(body []byte) (*llms.ContentResponse, error) {
	var output anthropicTextGenerationOutput
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "decode anthropic output", Err: err}
	}
	if len(output.Content) == 0 {
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "no content"}
	}

	usage := llms.Usage{
		InputTokens:  output.Usage.InputTokens,
		OutputTokens: output.Usage.OutputTokens,
		TotalTokens:  output.Usage.InputTokens + output.Usage.OutputTokens,
	}

	// Process content blocks - handle both text and tool use
	var choices []*llms.ContentChoice
	var textContent strings.Builder
	var hasText bool
	var toolCalls []llms.ToolCall

	for _, c := range output.Content {
		switch c.Type {
		case AnthropicMessageTypeText:
			hasText = true
			textContent.WriteString(c.Text)
		case AnthropicMessageTypeToolUse:
			args := string(c.Input)
			if args == "" {
				args = "{}"
			}
			toolCalls = append(toolCalls, llms.ToolCall{
				ID:   c.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      c.Name,
					Arguments: args,
				},
			})
		}
	}

	if hasText {
		choices = append(choices, &llms.ContentChoice{
			Content:        textContent.String(),
			StopReason:     output.StopReason,
			GenerationInfo: usage.GenerationInfo(),
		})
	}
	if len(toolCalls) > 0 {
		choices = append(choices, &llms.ContentChoice{
			ToolCalls:      toolCalls,
			StopReason:     output.StopReason,
			GenerationInfo: usage.GenerationInfo(),
		})
	}
	if len(choices) == 0 {
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "no text or tool use content"}
	}
	return &llms.ContentResponse{
		Choices: choices,
	}, nil
}

type streamingCompletionResponseChunk struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
	Message struct {
		ID    string `json:"id"`
		Usage struct {
			InputTokens  int64 `json:"input_tokens"`
			OutputTokens int64 `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// anthropicStream keeps the input token count of message_start
// for the usage of the final chunk.
type anthropicStream struct {
	inputTokens int64
}

func (s *anthropicStream) parse(data []byte) (llms.Chunk, bool, error) {
	var chunk llms.Chunk
	var resp streamingCompletionResponseChunk
	if err := json.Unmarshal(data, &resp); err != nil {
		return chunk, false, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "decode stream chunk", Err: err}
	}

	switch resp.Type {
	case "message_start":
		s.inputTokens = resp.Message.Usage.InputTokens
	case "content_block_delta":
		chunk.Text = resp.Delta.Text
	case "message_delta":
		chunk.StopReason = resp.Delta.StopReason
		chunk.Usage = &llms.Usage{
			InputTokens:  s.inputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  s.inputTokens + resp.Usage.OutputTokens,
		}
	case "message_stop":
		return chunk, true, nil
	case "error":
		return chunk, false, &llms.ProviderError{
			Provider:   llms.ProviderBedrock,
			StatusCode: http.StatusInternalServerError,
			Type:       resp.Error.Type,
			Message:    resp.Error.Message,
		}
	}
	return chunk, false, nil
}

// process the input messages to anthropic supported input
// returns the input content and system prompt.
func processInputMessagesAnthropic(messages []Message) ([]*anthropicTextGenerationInputMessage, string, error) {
	chunkedMessages := make([][]Message, 0, len(messages))
	currentChunk := make([]Message, 0, len(messages))
	var lastRole llms.Role
	for _, message := range messages {
		if message.Role != lastRole {
			if len(currentChunk) > 0 {
				chunkedMessages = append(chunkedMessages, currentChunk)
			}
			currentChunk = make([]Message, 0, len(messages))
		}
		currentChunk = append(currentChunk, message)
		lastRole = message.Role
	}
	if len(currentChunk) > 0 {
		chunkedMessages = append(chunkedMessages, currentChunk)
	}

	inputContents := make([]*anthropicTextGenerationInputMessage, 0, len(messages))
	var systemPrompt string
	for _, chunk := range chunkedMessages {
		role, err := getAnthropicRole(chunk[0].Role)
		if err != nil {
			return nil, "", err
		}
		if role == AnthropicSystem {
			if systemPrompt != "" {
				return nil, "", unsupported("system message", "multiple system prompts")
			}
			for _, message := range chunk {
				c := getAnthropicInputContent(message)
				if c.Type != AnthropicMessageTypeText {
					return nil, "", unsupported("system message", "system prompt must be text")
				}
				systemPrompt += c.Text
			}
			continue
		}
		content := make([]anthropicTextGenerationInputContent, 0, len(chunk))
		for _, message := range chunk {
			content = append(content, getAnthropicInputContent(message))
		}
		inputContents = append(inputContents, &anthropicTextGenerationInputMessage{
			Role:    role,
			Content: content,
		})
	}
	return inputContents, systemPrompt, nil
}

// process the role of the message to anthropic supported role.
func getAnthropicRole(role llms.Role) (string, error) {
	switch role {
	case llms.RoleSystem:
		return AnthropicSystem, nil

	case llms.RoleAI:
		return AnthropicRoleAssistant, nil

	case llms.RoleGeneric:
		fallthrough
	case llms.RoleHuman:
		return AnthropicRoleUser, nil
	case llms.RoleTool:
		return AnthropicRoleUser, nil
	default:
		return "", unsupported(string(role), "role not supported")
	}
}

func getAnthropicInputContent(message Message) anthropicTextGenerationInputContent {
	var c anthropicTextGenerationInputContent
	switch message.Type {
	case AnthropicMessageTypeText:
		c = anthropicTextGenerationInputContent{
			Type: message.Type,
			Text: message.Content,
		}
	case AnthropicMessageTypeImage:
		c = anthropicTextGenerationInputContent{
			Type: message.Type,
			Source: &anthropicBinGenerationInputSource{
				Type:      "base64",
				MediaType: message.MimeType,
				Data:      base64.StdEncoding.EncodeToString([]byte(message.Content)),
			},
		}
	case AnthropicMessageTypeToolUse:
		// Handle tool use (from AI messages)
		var input json.RawMessage
		if message.ToolInput != "" {
			input = json.RawMessage(message.ToolInput)
		}
		c = anthropicTextGenerationInputContent{
			Type:  message.Type,
			ID:    message.ToolCallID,
			Name:  message.ToolName,
			Input: input,
		}
	case AnthropicMessageTypeToolResult:
		// Handle tool result (from tool response messages)
		c = anthropicTextGenerationInputContent{
			Type:      message.Type,
			ToolUseID: message.ToolCallID,
			Content:   message.Content,
		}
	}
	return c
}
