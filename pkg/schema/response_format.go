package schema

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

// ResponseFormat is the provider-enforced format of a model response.
type ResponseFormat struct {
	Type       string                    `json:"type"`
	JSONSchema *ResponseFormatJSONSchema `json:"json_schema,omitempty"`
}

// ResponseFormatJSONSchema is the named schema of a json_schema response format.
type ResponseFormatJSONSchema struct {
	Name   string                            `json:"name"`
	Strict bool                              `json:"strict"`
	Schema *ResponseFormatJSONSchemaProperty `json:"schema"`
}

// ResponseFormatJSONSchemaProperty is the subset of JSON schema accepted by
// provider response formats.
type ResponseFormatJSONSchemaProperty struct {
	Type                 string                                       `json:"type"`
	Title                string                                       `json:"title,omitempty"`
	Description          string                                       `json:"description,omitempty"`
	Enum                 []any                                        `json:"enum,omitempty"`
	Default              any                                          `json:"default,omitempty"`
	Examples             []any                                        `json:"examples,omitempty"`
	Items                *ResponseFormatJSONSchemaProperty            `json:"items,omitempty"`
	Properties           map[string]*ResponseFormatJSONSchemaProperty `json:"properties,omitempty"`
	AdditionalProperties *bool                                        `json:"additionalProperties,omitempty"`
	Required             []string                                     `json:"required,omitempty"`
	Ref                  string                                       `json:"$ref,omitempty"`
}

// JSONResponseFormat asks for any JSON object, for providers without schema support.
var JSONResponseFormat = &ResponseFormat{Type: "json_object"}

// NewResponseFormat returns a json_schema response format for the type.
func NewResponseFormat(t reflect.Type, strict bool) (*ResponseFormat, error) {
	sc, err := New(t)
	if err != nil {
		return nil, err
	}
	return &ResponseFormat{
		Type: "json_schema",
		JSONSchema: &ResponseFormatJSONSchema{
			Name:   t.Name(),
			Strict: strict,
			Schema: toProperty(sc.Parameters),
		},
	}, nil
}

// toProperty converts the schema tree.
// Objects are closed unless the source allows additional properties.
func toProperty(in *jsonschema.Schema) *ResponseFormatJSONSchemaProperty {
	if in == nil {
		return nil
	}

	p := &ResponseFormatJSONSchemaProperty{
		Type:                 in.Type,
		Title:                in.Title,
		Description:          in.Description,
		Enum:                 in.Enum,
		Default:              in.Default,
		Examples:             in.Examples,
		Required:             in.Required,
		Ref:                  in.Ref,
		Items:                toProperty(in.Items),
		AdditionalProperties: additionalProperties(in),
	}

	if in.Properties != nil && in.Properties.Len() > 0 {
		p.Properties = make(map[string]*ResponseFormatJSONSchemaProperty, in.Properties.Len())
		for pair := in.Properties.Oldest(); pair != nil; pair = pair.Next() {
			p.Properties[pair.Key] = toProperty(pair.Value)
		}
	}
	return p
}

func additionalProperties(in *jsonschema.Schema) *bool {
	switch {
	case in.AdditionalProperties != nil:
		v := true
		return &v
	case in.Type == "object":
		v := false
		return &v
	default:
		return nil
	}
}
