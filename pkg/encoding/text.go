package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TextEncoder passes text through unchanged.
type TextEncoder struct{}

// NewTextEncoder returns a plain text encoder.
func NewTextEncoder() *TextEncoder {
	return new(TextEncoder)
}

func (e *TextEncoder) Marshal(v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case *string:
		return []byte(*s), nil
	case []byte:
		return s, nil
	case fmt.Stringer:
		return []byte(s.String()), nil
	}
	return json.Marshal(v)
}

// Unmarshal trims surrounding white space from text targets,
// other targets are decoded as JSON.
func (e *TextEncoder) Unmarshal(data []byte, v any) error {
	switch s := v.(type) {
	case *string:
		*s = string(bytes.TrimSpace(data))
	case *[]byte:
		*s = bytes.TrimSpace(data)
	default:
		return json.Unmarshal(data, v)
	}
	return nil
}

func (e *TextEncoder) GetFormatInstructions() string {
	return ""
}
