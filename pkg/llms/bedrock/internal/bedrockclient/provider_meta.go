package bedrockclient

import (
	"encoding/json"

	"github.com/effective-security/llmkit/pkg/llms"
)

// Ref: https://docs.aws.amazon.com/bedrock/latest/userguide/model-parameters-meta.html

type metaTextGenerationInput struct {
	Prompt      string  `json:"prompt"`
	MaxGenLen   int     `json:"max_gen_len,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

// metaTextGenerationOutput is the response, and every streamed chunk.
type metaTextGenerationOutput struct {
	Generation           string `json:"generation"`
	PromptTokenCount     int64  `json:"prompt_token_count"`
	GenerationTokenCount int64  `json:"generation_token_count"`
	StopReason           string `json:"stop_reason"`
}

// BuildMetaBody returns the body for Llama models.
// Only text content is supported.
func BuildMetaBody(messages []Message, options llms.CallOptions) ([]byte, error) {
	if err := textOnly(messages, options); err != nil {
		return nil, err
	}
	input := metaTextGenerationInput{
		Prompt:      processInputMessagesGeneric(messages),
		MaxGenLen:   getMaxTokens(options.MaxTokens, 512),
		Temperature: options.Temperature,
		TopP:        options.TopP,
	}
	return json.Marshal(input)
}

// ParseMetaOutput maps a Llama response to a ContentResponse.
func ParseMetaOutput(body []byte) (*llms.ContentResponse, error) {
	var output metaTextGenerationOutput
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "decode meta output", Err: err}
	}
	usage := llms.Usage{
		InputTokens:  output.PromptTokenCount,
		OutputTokens: output.GenerationTokenCount,
		TotalTokens:  output.PromptTokenCount + output.GenerationTokenCount,
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:        output.Generation,
				StopReason:     output.StopReason,
				GenerationInfo: usage.GenerationInfo(),
			},
		},
	}, nil
}

// metaStream sums the generated tokens, chunks carry their own count.
type metaStream struct {
	inputTokens  int64
	outputTokens int64
}

func (s *metaStream) parse(data []byte) (llms.Chunk, bool, error) {
	var chunk llms.Chunk
	var resp metaTextGenerationOutput
	if err := json.Unmarshal(data, &resp); err != nil {
		return chunk, false, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "decode stream chunk", Err: err}
	}
	if resp.PromptTokenCount > 0 {
		s.inputTokens = resp.PromptTokenCount
	}
	s.outputTokens += resp.GenerationTokenCount
	chunk.Text = resp.Generation
	if resp.StopReason != "" {
		chunk.StopReason = resp.StopReason
		chunk.Usage = &llms.Usage{
			InputTokens:  s.inputTokens,
			OutputTokens: s.outputTokens,
			TotalTokens:  s.inputTokens + s.outputTokens,
		}
		return chunk, true, nil
	}
	return chunk, false, nil
}
