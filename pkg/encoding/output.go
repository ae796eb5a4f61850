package encoding

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/schema"
	"github.com/effective-security/xlog"
)

// Output decodes model text into values of type T.
type Output[T any] struct {
	enc      SchemaEncoder
	mode     Mode
	validate bool
}

// NewOutput returns a decoder for T in the given mode.
// Decoded values are validated with their `validate` tags.
func NewOutput[T any](mode Mode) (*Output[T], error) {
	if mode == "" {
		mode = ModeDefault
	}
	var zero T
	enc, err := NewSchemaEncoder(mode, zero)
	if err != nil {
		return nil, err
	}
	return &Output[T]{
		enc:      enc,
		mode:     mode,
		validate: true,
	}, nil
}

// WithValidation turns validation of decoded values on or off.
func (p *Output[T]) WithValidation(validate bool) *Output[T] {
	p.validate = validate
	return p
}

// Mode returns the output mode.
func (p *Output[T]) Mode() Mode {
	return p.mode
}

// Encoder returns the underlying encoder.
func (p *Output[T]) Encoder() SchemaEncoder {
	return p.enc
}

// GetFormatInstructions returns the prompt text describing the output.
func (p *Output[T]) GetFormatInstructions() string {
	return p.enc.GetFormatInstructions()
}

// Parse decodes and validates text.
func (p *Output[T]) Parse(text string) (*T, error) {
	var target T
	if err := p.enc.Unmarshal([]byte(text), &target); err != nil {
		return nil, errors.Wrap(err, "failed to decode")
	}
	if v, ok := p.enc.(Validator); ok && p.validate {
		if err := v.Validate(&target); err != nil {
			return nil, errors.Wrap(err, "failed to validate")
		}
	}
	return &target, nil
}

// Type returns the name of the parser.
func (p *Output[T]) Type() string {
	var zero T
	return fmt.Sprintf("%T %s parser", zero, p.mode)
}

// WithInstructions returns a copy of messages with the format instructions
// appended to the last human message, or added as a new human message.
// The input slice is not modified.
func (p *Output[T]) WithInstructions(messages []llms.Message) []llms.Message {
	instructions := p.GetFormatInstructions()
	res := make([]llms.Message, len(messages), len(messages)+1)
	copy(res, messages)
	if instructions == "" {
		return res
	}
	for i := len(res) - 1; i >= 0; i-- {
		if res[i].Role == llms.RoleHuman {
			parts := make([]llms.ContentPart, 0, len(res[i].Parts)+1)
			parts = append(parts, res[i].Parts...)
			res[i].Parts = append(parts, llms.TextPart(instructions))
			return res
		}
	}
	return append(res, llms.MessageFromTextParts(llms.RoleHuman, instructions))
}

// CallOptions returns the response format options the provider can enforce
// for the mode, if any.
func (p *Output[T]) CallOptions(pt llms.ProviderType) ([]llms.CallOption, error) {
	switch p.mode {
	case ModeJSONSchema, ModeJSONSchemaStrict:
		enc, ok := p.enc.(*JSONEncoder)
		if !ok || !pt.Supports(llms.CapabilityJSONSchema) {
			break
		}
		rf, err := enc.ResponseFormat(p.mode == ModeJSONSchemaStrict)
		if err != nil {
			return nil, err
		}
		return []llms.CallOption{llms.WithResponseFormat(rf)}, nil
	}
	if isJSON(p.mode) && pt.Supports(llms.CapabilityJSONResponse) {
		return []llms.CallOption{llms.WithResponseFormat(schema.JSONResponseFormat)}, nil
	}
	return nil, nil
}

func isJSON(mode Mode) bool {
	return mode == ModeJSON || mode == ModeJSONSchema || mode == ModeJSONSchemaStrict
}

// Generate asks the model for a response in the given mode and decodes it into T.
// The raw response is returned with the value, or alone when decoding fails,
// in which case the error is a MalformedResponseError.
func Generate[T any](ctx context.Context, model llms.Model, messages []llms.Message, mode Mode, options ...llms.CallOption) (*T, *llms.ContentResponse, error) {
	out, err := NewOutput[T](mode)
	if err != nil {
		return nil, nil, err
	}
	pt := model.GetProviderType()
	extra, err := out.CallOptions(pt)
	if err != nil {
		return nil, nil, &llms.InvalidOptionError{Provider: pt, Option: "response_format", Value: mode, Reason: err.Error()}
	}

	opts := make([]llms.CallOption, 0, len(options)+len(extra))
	opts = append(opts, extra...)
	opts = append(opts, options...)

	resp, err := model.GenerateContent(ctx, out.WithInstructions(messages), opts...)
	if err != nil {
		return nil, nil, err
	}

	val, err := out.Parse(resp.Text())
	if err != nil {
		logger.ContextKV(ctx, xlog.DEBUG, "reason", "parse", "mode", mode, "model", model.GetName(), "err", err.Error())
		return nil, resp, &llms.MalformedResponseError{Provider: pt, Reason: "structured output", Err: err}
	}
	return val, resp, nil
}
