// Package genaiutils converts tool and schema definitions to genai types.
package genaiutils

import (
	"fmt"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/schema"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// ConvertTools returns a single genai tool declaring every function.
// Only function tools are supported.
func ConvertTools(tools []llms.Tool) ([]*genai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for i, tool := range tools {
		if tool.Type != "function" || tool.Function == nil {
			return nil, &llms.UnsupportedInputError{
				Provider: llms.ProviderGoogleAI,
				Input:    fmt.Sprintf("tool [%d] %s", i, tool.Type),
				Reason:   "only function tools are supported",
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  ConvertJSONSchemaDefinition(tool.Function.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// ConvertToolChoice maps "auto", "none", "required"/"any" and a named
// function to a function calling config. Nil means the provider default.
func ConvertToolChoice(choice any) (*genai.ToolConfig, error) {
	var cfg genai.FunctionCallingConfig
	switch c := choice.(type) {
	case nil:
		return nil, nil
	case string:
		switch c {
		case "", "auto":
			cfg.Mode = genai.FunctionCallingConfigModeAuto
		case "none":
			cfg.Mode = genai.FunctionCallingConfigModeNone
		case "required", "any":
			cfg.Mode = genai.FunctionCallingConfigModeAny
		default:
			cfg.Mode = genai.FunctionCallingConfigModeAny
			cfg.AllowedFunctionNames = []string{c}
		}
	case llms.ToolChoice:
		if c.Function == nil || c.Function.Name == "" {
			return nil, invalidToolChoice(c)
		}
		cfg.Mode = genai.FunctionCallingConfigModeAny
		cfg.AllowedFunctionNames = []string{c.Function.Name}
	case *llms.ToolChoice:
		if c == nil {
			return nil, nil
		}
		return ConvertToolChoice(*c)
	default:
		return nil, invalidToolChoice(c)
	}
	return &genai.ToolConfig{FunctionCallingConfig: &cfg}, nil
}

func invalidToolChoice(v any) error {
	return &llms.InvalidOptionError{
		Provider: llms.ProviderGoogleAI,
		Option:   "tool_choice",
		Value:    fmt.Sprint(v),
		Reason:   "expected auto, none, required or a function name",
	}
}

// ConvertResponseFormatJSONSchema converts a json_schema response format to a genai.Schema.
func ConvertResponseFormatJSONSchema(jschema *schema.ResponseFormatJSONSchema) *genai.Schema {
	if jschema == nil || jschema.Schema == nil {
		return nil
	}

	var convert func(p *schema.ResponseFormatJSONSchemaProperty) *genai.Schema
	convert = func(p *schema.ResponseFormatJSONSchemaProperty) *genai.Schema {
		if p == nil {
			return nil
		}

		out := &genai.Schema{
			Type:        ConvertJSONSchemaType(p.Type),
			Title:       p.Title,
			Description: p.Description,
			Required:    p.Required,
			Enum:        enumStrings(p.Enum),
		}
		if len(p.Properties) > 0 {
			out.Properties = make(map[string]*genai.Schema, len(p.Properties))
			for k, v := range p.Properties {
				out.Properties[k] = convert(v)
			}
		}
		if p.Items != nil {
			out.Items = convert(p.Items)
		}
		return out
	}

	return convert(jschema.Schema)
}

// ConvertJSONSchemaDefinition converts a jsonschema.Schema to a genai.Schema.
// Property order is kept in PropertyOrdering.
func ConvertJSONSchemaDefinition(jschema *jsonschema.Schema) *genai.Schema {
	if jschema == nil {
		return nil
	}

	out := &genai.Schema{
		Type:        ConvertJSONSchemaType(jschema.Type),
		Title:       jschema.Title,
		Description: jschema.Description,
		Required:    jschema.Required,
		Enum:        enumStrings(jschema.Enum),
	}

	if jschema.Properties != nil && jschema.Properties.Len() > 0 {
		out.Properties = make(map[string]*genai.Schema, jschema.Properties.Len())
		for pair := jschema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			out.Properties[pair.Key] = ConvertJSONSchemaDefinition(pair.Value)
			out.PropertyOrdering = append(out.PropertyOrdering, pair.Key)
		}
	}
	if jschema.Items != nil {
		out.Items = ConvertJSONSchemaDefinition(jschema.Items)
	}
	return out
}

func enumStrings(values []any) []string {
	if len(values) == 0 {
		return nil
	}
	res := make([]string, len(values))
	for i, v := range values {
		res[i] = fmt.Sprint(v)
	}
	return res
}

// ConvertJSONSchemaType converts a JSON schema type name to a genai.Type.
func ConvertJSONSchemaType(dt string) genai.Type {
	switch dt {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

// Float32Ptr returns nil for zero, the provider default.
func Float32Ptr(f float32) *float32 {
	if f == 0 {
		return nil
	}
	return &f
}

// Int32Ptr returns nil for zero, the provider default.
func Int32Ptr(i int32) *int32 {
	if i == 0 {
		return nil
	}
	return &i
}
