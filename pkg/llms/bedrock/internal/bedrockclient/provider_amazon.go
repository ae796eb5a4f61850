package bedrockclient

import (
	"encoding/json"

	"github.com/effective-security/llmkit/pkg/llms"
)

// Ref: https://docs.aws.amazon.com/bedrock/latest/userguide/model-parameters-titan-text.html

type amazonTextGenerationConfig struct {
	MaxTokens     int      `json:"maxTokenCount,omitempty"`
	Temperature   float64  `json:"temperature,omitempty"`
	TopP          float64  `json:"topP,omitempty"`
	StopSequences []string `json:"stopSequences,omitempty"`
}

type amazonTextGenerationInput struct {
	InputText  string                     `json:"inputText"`
	TextConfig amazonTextGenerationConfig `json:"textGenerationConfig"`
}

type amazonTextGenerationOutput struct {
	InputTextTokenCount int64 `json:"inputTextTokenCount"`
	Results             []struct {
		TokenCount       int64  `json:"tokenCount"`
		OutputText       string `json:"outputText"`
		CompletionReason string `json:"completionReason"`
	} `json:"results"`
}

type amazonStreamChunk struct {
	OutputText                string `json:"outputText"`
	Index                     int    `json:"index"`
	InputTextTokenCount       int64  `json:"inputTextTokenCount"`
	TotalOutputTextTokenCount int64  `json:"totalOutputTextTokenCount"`
	CompletionReason          string `json:"completionReason"`
}

// Finish reason for the completion of the generation.
const (
	AmazonCompletionReasonFinish    = "FINISH"
	AmazonCompletionReasonMaxTokens = "LENGTH"
)

// BuildAmazonBody returns the body for Titan text models.
// Only text content is supported.
func BuildAmazonBody(messages []Message, options llms.CallOptions) ([]byte, error) {
	if err := textOnly(messages, options); err != nil {
		return nil, err
	}
	input := amazonTextGenerationInput{
		InputText: processInputMessagesGeneric(messages),
		TextConfig: amazonTextGenerationConfig{
			MaxTokens:     getMaxTokens(options.MaxTokens, 512),
			Temperature:   options.Temperature,
			TopP:          options.TopP,
			StopSequences: options.StopWords,
		},
	}
	return json.Marshal(input)
}

// ParseAmazonOutput maps a Titan response to a ContentResponse with a
// choice per result.
func ParseAmazonOutput(body []byte) (*llms.ContentResponse, error) {
	var output amazonTextGenerationOutput
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "decode amazon output", Err: err}
	}
	if len(output.Results) == 0 {
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "no results"}
	}

	choices := make([]*llms.ContentChoice, len(output.Results))
	for i, result := range output.Results {
		usage := llms.Usage{
			InputTokens:  output.InputTextTokenCount,
			OutputTokens: result.TokenCount,
			TotalTokens:  output.InputTextTokenCount + result.TokenCount,
		}
		choices[i] = &llms.ContentChoice{
			Content:        result.OutputText,
			StopReason:     result.CompletionReason,
			GenerationInfo: usage.GenerationInfo(),
		}
	}
	return &llms.ContentResponse{
		Choices: choices,
	}, nil
}

func parseAmazonChunk(data []byte) (llms.Chunk, bool, error) {
	var chunk llms.Chunk
	var resp amazonStreamChunk
	if err := json.Unmarshal(data, &resp); err != nil {
		return chunk, false, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "decode stream chunk", Err: err}
	}
	chunk.Text = resp.OutputText
	if resp.CompletionReason != "" {
		chunk.StopReason = resp.CompletionReason
		chunk.Usage = &llms.Usage{
			InputTokens:  resp.InputTextTokenCount,
			OutputTokens: resp.TotalOutputTextTokenCount,
			TotalTokens:  resp.InputTextTokenCount + resp.TotalOutputTextTokenCount,
		}
		return chunk, true, nil
	}
	return chunk, false, nil
}

// textOnly returns UnsupportedInputError for models that take a single prompt.
func textOnly(messages []Message, options llms.CallOptions) error {
	if len(options.Tools) > 0 {
		return unsupported("tools", "the model does not support tools")
	}
	for _, m := range messages {
		if m.Type != AnthropicMessageTypeText {
			return unsupported(m.Type, "the model supports only text content")
		}
	}
	return nil
}
