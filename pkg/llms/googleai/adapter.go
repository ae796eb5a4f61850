package googleai

import (
	"context"
	"iter"
	"strings"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llms/googleai/internal/genaiutils"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/xlog"
	"google.golang.org/genai"
)

var (
	_ pipeline.Adapter[*llms.Request, *Payload, *genai.GenerateContentResponse, *llms.ContentResponse] = (*Adapter)(nil)
	_ pipeline.StreamDispatcher[*Payload]                                                              = (*Adapter)(nil)
)

// Payload is a GenerateContent call.
type Payload struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// Adapter maps requests to GenerateContent calls.
type Adapter struct {
	client        *genai.Client
	harmThreshold genai.HarmBlockThreshold
}

// Adapt builds the call. It does not modify req and performs no I/O.
func (a *Adapter) Adapt(req *llms.Request, h *provider.Handle) (*Payload, error) {
	if err := req.Validate(h.Provider()); err != nil {
		return nil, err
	}
	opts := req.CallOptions(h.CallOptions())

	contents, system, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return nil, unsupported("empty content", "request must contain a user message")
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		StopSequences:     opts.StopWords,
		CandidateCount:    int32(opts.CandidateCount),
		MaxOutputTokens:   int32(opts.MaxTokens),
		Temperature:       genaiutils.Float32Ptr(float32(opts.Temperature)),
		TopP:              genaiutils.Float32Ptr(float32(opts.TopP)),
		TopK:              genaiutils.Float32Ptr(float32(opts.TopK)),
		Seed:              genaiutils.Int32Ptr(int32(opts.Seed)),
	}
	if a.harmThreshold != "" {
		for _, category := range []genai.HarmCategory{
			genai.HarmCategoryDangerousContent,
			genai.HarmCategoryHarassment,
			genai.HarmCategoryHateSpeech,
			genai.HarmCategorySexuallyExplicit,
		} {
			cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
				Category:  category,
				Threshold: a.harmThreshold,
			})
		}
	}

	if cfg.Tools, err = genaiutils.ConvertTools(opts.Tools); err != nil {
		return nil, err
	}
	if len(cfg.Tools) > 0 {
		if cfg.ToolConfig, err = genaiutils.ConvertToolChoice(opts.ToolChoice); err != nil {
			return nil, err
		}
	} else if rf := opts.ResponseFormat; rf != nil && (rf.Type == "json_object" || rf.Type == "json_schema") {
		cfg.ResponseMIMEType = ResponseMIMETypeJson
		cfg.ResponseSchema = genaiutils.ConvertResponseFormatJSONSchema(rf.JSONSchema)
	}

	return &Payload{
		Model:    opts.Model,
		Contents: contents,
		Config:   cfg,
	}, nil
}

// Invoke calls GenerateContent once.
func (a *Adapter) Invoke(ctx context.Context, p *Payload, _ *provider.Handle) (*genai.GenerateContentResponse, error) {
	resp, err := a.client.Models.GenerateContent(ctx, p.Model, p.Contents, p.Config)
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

// AdaptResponse maps a response to a ContentResponse with a choice per candidate.
func (a *Adapter) AdaptResponse(raw *genai.GenerateContentResponse) (*llms.ContentResponse, error) {
	if raw == nil || len(raw.Candidates) == 0 {
		reason := "no candidates"
		if raw != nil && raw.PromptFeedback != nil && raw.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + string(raw.PromptFeedback.BlockReason)
		}
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderGoogleAI, Reason: reason}
	}
	return convertCandidates(raw.Candidates, raw.UsageMetadata)
}

// InvokeStream calls GenerateContentStream and yields the text of the first
// candidate. Usage is reported with the finish reason.
func (a *Adapter) InvokeStream(ctx context.Context, p *Payload, _ *provider.Handle) iter.Seq2[llms.Chunk, error] {
	return func(yield func(llms.Chunk, error) bool) {
		for resp, err := range a.client.Models.GenerateContentStream(ctx, p.Model, p.Contents, p.Config) {
			if err != nil {
				yield(llms.Chunk{}, mapError(err))
				return
			}
			chunk, done := streamChunk(resp)
			if chunk.Text != "" || chunk.StopReason != "" {
				if !yield(chunk, nil) {
					return
				}
			}
			if done {
				logger.ContextKV(ctx, xlog.DEBUG, "status", "stream_done", "model", p.Model)
				return
			}
		}
	}
}

func streamChunk(resp *genai.GenerateContentResponse) (llms.Chunk, bool) {
	var chunk llms.Chunk
	if resp == nil || len(resp.Candidates) == 0 {
		return chunk, false
	}
	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			if !part.Thought {
				sb.WriteString(part.Text)
			}
		}
		chunk.Text = sb.String()
	}
	if candidate.FinishReason == "" {
		return chunk, false
	}
	chunk.StopReason = string(candidate.FinishReason)
	if resp.UsageMetadata != nil {
		u := convertUsage(resp.UsageMetadata)
		chunk.Usage = &u
	}
	return chunk, true
}
