package googleai

import (
	"encoding/json"
	"strings"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/xlog"
	"google.golang.org/genai"
)

func unsupported(input, reason string) error {
	return &llms.UnsupportedInputError{Provider: llms.ProviderGoogleAI, Input: input, Reason: reason}
}

// convertParts converts llms parts to genai parts.
func convertParts(parts []llms.ContentPart) ([]*genai.Part, error) {
	convertedParts := make([]*genai.Part, 0, len(parts))
	for _, part := range parts {
		out := new(genai.Part)

		switch p := part.(type) {
		case llms.TextContent:
			out.Text = p.Text
		case llms.BinaryContent:
			out.InlineData = &genai.Blob{MIMEType: p.MIMEType, Data: p.Data}
		case llms.ImageURLContent:
			return nil, unsupported("image_url", "images must be sent as binary content")
		case llms.ToolCall:
			fc := p.FunctionCall
			if fc == nil {
				return nil, unsupported("tool call", "tool call has no function")
			}
			var argsMap map[string]any
			if fc.Arguments != "" {
				if err := json.Unmarshal([]byte(fc.Arguments), &argsMap); err != nil {
					return nil, unsupported("tool call", "failed to unmarshal tool call arguments: "+err.Error())
				}
			}
			out.FunctionCall = &genai.FunctionCall{
				ID:   p.ID,
				Name: fc.Name,
				Args: argsMap,
			}
		case llms.ToolCallResponse:
			out.FunctionResponse = &genai.FunctionResponse{
				ID:   p.ToolCallID,
				Name: p.Name,
				Response: map[string]any{
					"response": p.Content,
				},
			}
		default:
			return nil, unsupported("content part", "unsupported content part")
		}

		convertedParts = append(convertedParts, out)
	}
	return convertedParts, nil
}

// convertMessages returns the conversation and the system instruction.
// System messages are merged into one instruction.
func convertMessages(messages []llms.Message) ([]*genai.Content, *genai.Content, error) {
	var system *genai.Content
	history := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		parts, err := convertParts(m.Parts)
		if err != nil {
			return nil, nil, err
		}
		if len(parts) == 0 {
			continue
		}

		c := &genai.Content{Parts: parts}
		switch m.Role {
		case llms.RoleSystem:
			for _, p := range parts {
				if p.Text == "" {
					return nil, nil, unsupported("system message", "invalid content type, only text is supported")
				}
			}
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, parts...)
			continue
		case llms.RoleAI:
			c.Role = RoleModel
		case llms.RoleHuman, llms.RoleGeneric, llms.RoleTool:
			c.Role = RoleUser
		default:
			return nil, nil, unsupported(string(m.Role), "role not supported")
		}
		history = append(history, c)
	}
	return history, system, nil
}

// convertCandidates converts candidates to a response, one choice per candidate.
func convertCandidates(candidates []*genai.Candidate, usage *genai.GenerateContentResponseUsageMetadata) (*llms.ContentResponse, error) {
	var contentResponse llms.ContentResponse

	for _, candidate := range candidates {
		buf := strings.Builder{}
		var toolCalls []llms.ToolCall

		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				switch {
				case part.Thought:
					continue
				case part.FunctionCall != nil:
					b, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						return nil, &llms.MalformedResponseError{Provider: llms.ProviderGoogleAI, Reason: "encode function call arguments", Err: err}
					}
					toolCalls = append(toolCalls, llms.ToolCall{
						ID:   part.FunctionCall.ID,
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      part.FunctionCall.Name,
							Arguments: string(b),
						},
					})
				case part.Text != "":
					buf.WriteString(part.Text)
				default:
					logger.KV(xlog.DEBUG, "reason", "skip_part")
				}
			}
		}

		metadata := make(map[string]any)
		metadata[CITATIONS] = candidate.CitationMetadata
		metadata[SAFETY] = candidate.SafetyRatings
		metadata["Index"] = candidate.Index
		if usage != nil {
			u := convertUsage(usage)
			for k, v := range u.GenerationInfo() {
				metadata[k] = v
			}
			metadata["CacheReadTokens"] = int64(usage.CachedContentTokenCount)
		}

		contentResponse.Choices = append(contentResponse.Choices,
			&llms.ContentChoice{
				Content:        buf.String(),
				StopReason:     string(candidate.FinishReason),
				GenerationInfo: metadata,
				ToolCalls:      toolCalls,
			})
	}
	return &contentResponse, nil
}

func convertUsage(usage *genai.GenerateContentResponseUsageMetadata) llms.Usage {
	u := llms.Usage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount + usage.ToolUsePromptTokenCount + usage.ThoughtsTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}
