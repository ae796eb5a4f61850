package anthropic

import (
	"github.com/effective-security/llmkit/pkg/schema"
)

type outputFormat struct {
	Type   string         `json:"type"`
	Schema map[string]any `json:"schema"`
}

// outputConfig is the output_config request field for structured output.
type outputConfig struct {
	Format outputFormat `json:"format"`
}

// toAnthropicOutputConfig returns the output config for a json_schema
// response format, or nil for any other format.
func toAnthropicOutputConfig(rf *schema.ResponseFormat) *outputConfig {
	if rf == nil || rf.Type != "json_schema" || rf.JSONSchema == nil || rf.JSONSchema.Schema == nil {
		return nil
	}
	return &outputConfig{
		Format: outputFormat{
			Type:   "json_schema",
			Schema: convertToAnthropicSchema(rf.JSONSchema.Schema),
		},
	}
}

func convertToAnthropicSchema(prop *schema.ResponseFormatJSONSchemaProperty) map[string]any {
	if prop == nil {
		return nil
	}

	res := map[string]any{}
	if prop.Type != "" {
		res["type"] = prop.Type
	}
	if prop.Description != "" {
		res["description"] = prop.Description
	}
	if len(prop.Enum) > 0 {
		res["enum"] = prop.Enum
	}
	if prop.Ref != "" {
		res["$ref"] = prop.Ref
	}
	if len(prop.Properties) > 0 {
		props := make(map[string]any, len(prop.Properties))
		for name, p := range prop.Properties {
			props[name] = convertToAnthropicSchema(p)
		}
		res["properties"] = props
	}
	if len(prop.Required) > 0 {
		res["required"] = prop.Required
	}
	if prop.Items != nil {
		res["items"] = convertToAnthropicSchema(prop.Items)
	}
	if prop.AdditionalProperties != nil {
		res["additionalProperties"] = *prop.AdditionalProperties
	}
	return res
}
