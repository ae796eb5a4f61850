package llms

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Part type names used in the JSON form of a Message.
const (
	PartTypeText         = "text"
	PartTypeImageURL     = "image_url"
	PartTypeBinary       = "binary"
	PartTypeToolCall     = "tool_call"
	PartTypeToolResponse = "tool_response"
)

// ErrUnknownPartType is returned when decoding a part with an unknown type.
var ErrUnknownPartType = errors.New("unknown content part type")

// partJSON is the wire form of a ContentPart.
type partJSON struct {
	Type         string            `json:"type"`
	Text         string            `json:"text,omitempty"`
	ImageURL     *ImageURLContent  `json:"image_url,omitempty"`
	Binary       *BinaryContent    `json:"binary,omitempty"`
	ToolCall     *ToolCall         `json:"tool_call,omitempty"`
	ToolResponse *ToolCallResponse `json:"tool_response,omitempty"`
}

type messageJSON struct {
	Role  Role       `json:"role"`
	Parts []partJSON `json:"parts"`
}

// MarshalJSON implements json.Marshaler for Message
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		Role:  m.Role,
		Parts: make([]partJSON, 0, len(m.Parts)),
	}
	for _, part := range m.Parts {
		var pj partJSON
		switch p := part.(type) {
		case TextContent:
			pj = partJSON{Type: PartTypeText, Text: p.Text}
		case ImageURLContent:
			pj = partJSON{Type: PartTypeImageURL, ImageURL: &p}
		case BinaryContent:
			pj = partJSON{Type: PartTypeBinary, Binary: &p}
		case ToolCall:
			pj = partJSON{Type: PartTypeToolCall, ToolCall: &p}
		case ToolCallResponse:
			pj = partJSON{Type: PartTypeToolResponse, ToolResponse: &p}
		default:
			return nil, errors.WithMessagef(ErrUnknownPartType, "%T", part)
		}
		out.Parts = append(out.Parts, pj)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for Message
func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	m.Role = in.Role
	m.Parts = make([]ContentPart, 0, len(in.Parts))
	for i, pj := range in.Parts {
		switch {
		case pj.Type == PartTypeText:
			m.Parts = append(m.Parts, TextContent{Text: pj.Text})
		case pj.Type == PartTypeImageURL && pj.ImageURL != nil:
			m.Parts = append(m.Parts, *pj.ImageURL)
		case pj.Type == PartTypeBinary && pj.Binary != nil:
			m.Parts = append(m.Parts, *pj.Binary)
		case pj.Type == PartTypeToolCall && pj.ToolCall != nil:
			m.Parts = append(m.Parts, *pj.ToolCall)
		case pj.Type == PartTypeToolResponse && pj.ToolResponse != nil:
			m.Parts = append(m.Parts, *pj.ToolResponse)
		default:
			return errors.WithMessagef(ErrUnknownPartType, "part [%d]: %q", i, pj.Type)
		}
	}
	return nil
}
