package encoding

import (
	"bytes"
	"reflect"

	"github.com/BurntSushi/toml"
	"github.com/effective-security/llmkit/pkg/llmutils"
	"github.com/effective-security/xlog"
)

// TOMLEncoder describes the output with a TOML example.
type TOMLEncoder struct {
	typ reflect.Type
}

// NewTOMLEncoder returns a TOML encoder for values of type t.
func NewTOMLEncoder(t reflect.Type) *TOMLEncoder {
	return &TOMLEncoder{typ: t}
}

func (e *TOMLEncoder) Marshal(v any) ([]byte, error) {
	return toml.Marshal(v)
}

func (e *TOMLEncoder) Unmarshal(data []byte, v any) error {
	return toml.Unmarshal(llmutils.BytesTrimBackticks(data), v)
}

func (e *TOMLEncoder) Validate(v any) error {
	return validateStruct(v)
}

func (e *TOMLEncoder) GetFormatInstructions() string {
	bs, err := e.Marshal(example(e.typ))
	if err != nil {
		logger.KV(xlog.DEBUG, "reason", "example", "type", e.typ, "err", err.Error())
		return ""
	}
	var b bytes.Buffer
	b.WriteString("\nRespond with TOML in the following TOML schema:\n")
	b.WriteString("```toml\n")
	b.Write(bs)
	b.WriteString("```")
	b.WriteString("\nMake sure to return an instance of the TOML, not the schema itself.\n")
	return b.String()
}
