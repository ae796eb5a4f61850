package generic

import (
	"strings"

	"github.com/effective-security/llmkit/pkg/provider"
)

// Keys of the handle Extra settings read by the generic provider.
const (
	ExtraPromptPath     = "prompt_path"
	ExtraSystemPath     = "system_path"
	ExtraMessagesPath   = "messages_path"
	ExtraModelPath      = "model_path"
	ExtraTextPath       = "text_path"
	ExtraStopPath       = "stop_path"
	ExtraUsagePath      = "usage_path"
	ExtraChunkPath      = "chunk_path"
	ExtraDonePath       = "done_path"
	ExtraStreamFlagPath = "stream_flag_path"
	ExtraStreamFormat   = "stream_format"
	ExtraGeneratePath   = "generate_path"
	ExtraStreamPath     = "stream_path"
	ExtraAuthHeader     = "auth_header"
	ExtraAuthScheme     = "auth_scheme"
)

// StreamFormat is the framing of a streamed response.
type StreamFormat string

const (
	// StreamNDJSON is one JSON object per line.
	StreamNDJSON StreamFormat = "ndjson"
	// StreamSSE is Server-Sent Events with a JSON object in each data field.
	StreamSSE StreamFormat = "sse"
)

// Config describes how requests and responses map to JSON fields.
// Paths use the gjson/sjson dot syntax, e.g. "choices.0.message.content".
type Config struct {
	// PromptPath receives the prompt text when MessagesPath is empty.
	PromptPath string `json:"prompt_path" yaml:"prompt_path"`
	// SystemPath receives the system prompt, if set.
	SystemPath string `json:"system_path,omitempty" yaml:"system_path,omitempty"`
	// MessagesPath receives the conversation as [{"role","content"}].
	MessagesPath string `json:"messages_path,omitempty" yaml:"messages_path,omitempty"`
	// ModelPath receives the model name, if a model is configured.
	ModelPath string `json:"model_path,omitempty" yaml:"model_path,omitempty"`

	// TextPath is the generated text in a response. It must be present.
	TextPath string `json:"text_path" yaml:"text_path"`
	StopPath string `json:"stop_path,omitempty" yaml:"stop_path,omitempty"`
	// UsagePath is an object with input_tokens/output_tokens/total_tokens
	// or prompt_tokens/completion_tokens.
	UsagePath string `json:"usage_path,omitempty" yaml:"usage_path,omitempty"`

	// ChunkPath is the text delta of a streamed chunk.
	ChunkPath string `json:"chunk_path" yaml:"chunk_path"`
	// DonePath is a boolean that marks the last chunk of a stream.
	DonePath string `json:"done_path,omitempty" yaml:"done_path,omitempty"`
	// StreamFlagPath is set to true in streaming requests.
	StreamFlagPath string       `json:"stream_flag_path,omitempty" yaml:"stream_flag_path,omitempty"`
	StreamFormat   StreamFormat `json:"stream_format,omitempty" yaml:"stream_format,omitempty"`

	// GeneratePath and StreamPath are appended to the endpoint.
	GeneratePath string `json:"generate_path,omitempty" yaml:"generate_path,omitempty"`
	StreamPath   string `json:"stream_path,omitempty" yaml:"stream_path,omitempty"`

	// AuthHeader carries the API key, Authorization by default.
	AuthHeader string `json:"auth_header,omitempty" yaml:"auth_header,omitempty"`
	// AuthScheme prefixes the API key, "Bearer" by default.
	// Set to "none" to send the key as is.
	AuthScheme string `json:"auth_scheme,omitempty" yaml:"auth_scheme,omitempty"`
}

// DefaultConfig returns the config of a minimal text endpoint:
// {"content": "..."} in, {"text": "..."} out.
func DefaultConfig() Config {
	return Config{
		PromptPath:     "content",
		ModelPath:      "model",
		TextPath:       "text",
		StopPath:       "stop_reason",
		UsagePath:      "usage",
		ChunkPath:      "text",
		DonePath:       "done",
		StreamFlagPath: "stream",
		StreamFormat:   StreamNDJSON,
		AuthHeader:     "Authorization",
		AuthScheme:     "Bearer",
	}
}

// ConfigFromHandle returns DefaultConfig overridden by the handle Extra settings.
func ConfigFromHandle(h *provider.Handle) Config {
	c := DefaultConfig()
	c.PromptPath = h.ExtraOr(ExtraPromptPath, c.PromptPath)
	c.SystemPath = h.ExtraOr(ExtraSystemPath, c.SystemPath)
	c.MessagesPath = h.ExtraOr(ExtraMessagesPath, c.MessagesPath)
	c.ModelPath = h.ExtraOr(ExtraModelPath, c.ModelPath)
	c.TextPath = h.ExtraOr(ExtraTextPath, c.TextPath)
	c.StopPath = h.ExtraOr(ExtraStopPath, c.StopPath)
	c.UsagePath = h.ExtraOr(ExtraUsagePath, c.UsagePath)
	c.ChunkPath = h.ExtraOr(ExtraChunkPath, c.ChunkPath)
	c.DonePath = h.ExtraOr(ExtraDonePath, c.DonePath)
	c.StreamFlagPath = h.ExtraOr(ExtraStreamFlagPath, c.StreamFlagPath)
	c.StreamFormat = StreamFormat(strings.ToLower(h.ExtraOr(ExtraStreamFormat, string(c.StreamFormat))))
	c.GeneratePath = h.ExtraOr(ExtraGeneratePath, c.GeneratePath)
	c.StreamPath = h.ExtraOr(ExtraStreamPath, c.StreamPath)
	c.AuthHeader = h.ExtraOr(ExtraAuthHeader, c.AuthHeader)
	c.AuthScheme = h.ExtraOr(ExtraAuthScheme, c.AuthScheme)
	return c
}
