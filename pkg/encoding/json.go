package encoding

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/bububa/ljson"
	"github.com/effective-security/llmkit/pkg/llmutils"
	"github.com/effective-security/llmkit/pkg/schema"
)

// JSONEncoder describes the output with a JSON schema and decodes
// JSON that may be wrapped in prose or code fences.
type JSONEncoder struct {
	typ    reflect.Type
	schema *schema.Schema
}

// NewJSONEncoder returns a JSON encoder for values of type t.
func NewJSONEncoder(t reflect.Type) (*JSONEncoder, error) {
	sc, err := schema.New(t)
	if err != nil {
		return nil, err
	}
	return &JSONEncoder{
		typ:    t,
		schema: sc,
	}, nil
}

func (e *JSONEncoder) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal skips prose and code fences around the JSON object.
func (e *JSONEncoder) Unmarshal(data []byte, v any) error {
	return ljson.Unmarshal(llmutils.CleanJSON(data), v)
}

func (e *JSONEncoder) Validate(v any) error {
	return validateStruct(v)
}

// Schema returns the JSON schema of the output type.
func (e *JSONEncoder) Schema() *schema.Schema {
	return e.schema
}

// ResponseFormat returns the response format for providers that
// enforce the schema.
func (e *JSONEncoder) ResponseFormat(strict bool) (*schema.ResponseFormat, error) {
	return schema.NewResponseFormat(e.typ, strict)
}

func (e *JSONEncoder) GetFormatInstructions() string {
	var b bytes.Buffer
	b.WriteString("\nRespond with JSON in the following JSON schema:\n")
	b.WriteString("```json\n")
	b.WriteString(e.schema.String())
	b.WriteString("\n```")
	b.WriteString("\nMake sure to return an instance of the JSON, not the schema itself.\n")
	b.WriteString("Use the exact field names as they are defined in the schema.\n")
	return b.String()
}
