// Package encoding describes structured output formats to a model and
// decodes the model's text back into Go values.
package encoding

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/go-playground/validator/v10"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit/pkg", "encoding")

// SchemaEncoder converts values to and from the text a model produces.
type SchemaEncoder interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	// GetFormatInstructions returns the prompt text that describes the expected output
	GetFormatInstructions() string
}

// Validator is implemented by encoders that validate decoded values.
type Validator interface {
	Validate(v any) error
}

// Mode is the structured output format.
type Mode = string

const (
	ModeJSON       Mode = "json"
	ModeJSONSchema Mode = "json_schema"
	// ModeJSONSchemaStrict requires every property, not all providers support it
	ModeJSONSchemaStrict Mode = "json_schema_strict"
	ModeYAML             Mode = "yaml"
	ModeTOML             Mode = "toml"
	ModePlainText        Mode = "plain_text"
)

// ModeDefault is the mode used when none is given.
var ModeDefault = ModeJSONSchema

// ErrUnknownMode is returned for a mode without an encoder.
var ErrUnknownMode = errors.New("no encoder for mode")

var validate = validator.New()

// NewSchemaEncoder returns the encoder of the mode for values of the type of sample.
func NewSchemaEncoder(mode Mode, sample any) (SchemaEncoder, error) {
	if mode == "" {
		mode = ModeDefault
	}
	t := reflect.TypeOf(sample)
	switch mode {
	case ModeJSON, ModeJSONSchema, ModeJSONSchemaStrict:
		return NewJSONEncoder(t)
	case ModeYAML:
		return NewYAMLEncoder(t), nil
	case ModeTOML:
		return NewTOMLEncoder(t), nil
	case ModePlainText:
		return NewTextEncoder(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownMode, "%q", mode)
	}
}

func validateStruct(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(rv.Interface())
}

var (
	_ SchemaEncoder = (*JSONEncoder)(nil)
	_ SchemaEncoder = (*YAMLEncoder)(nil)
	_ SchemaEncoder = (*TOMLEncoder)(nil)
	_ SchemaEncoder = (*TextEncoder)(nil)
	_ Validator     = (*JSONEncoder)(nil)
	_ Validator     = (*YAMLEncoder)(nil)
	_ Validator     = (*TOMLEncoder)(nil)
)
