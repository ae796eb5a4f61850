package bedrockclient

import (
	"github.com/effective-security/llmkit/pkg/llms"
)

// StreamParser decodes a chunk event payload. done is true on the last chunk.
type StreamParser func(data []byte) (chunk llms.Chunk, done bool, err error)

// SupportsFamily returns true if text generation is implemented for the family.
func SupportsFamily(family string) bool {
	switch family {
	case FamilyAnthropic, FamilyAmazon, FamilyMeta:
		return true
	}
	return false
}

// BuildBody returns the request body in the format of the model family.
func BuildBody(family string, messages []Message, options llms.CallOptions) ([]byte, error) {
	switch family {
	case FamilyAnthropic:
		return BuildAnthropicBody(messages, options)
	case FamilyAmazon:
		return BuildAmazonBody(messages, options)
	case FamilyMeta:
		return BuildMetaBody(messages, options)
	default:
		return nil, unsupportedFamily(family)
	}
}

// ParseOutput decodes a response body in the format of its family.
func ParseOutput(r *Response) (*llms.ContentResponse, error) {
	switch r.Family {
	case FamilyAnthropic:
		return ParseAnthropicOutput(r.Body)
	case FamilyAmazon:
		return ParseAmazonOutput(r.Body)
	case FamilyMeta:
		return ParseMetaOutput(r.Body)
	default:
		return nil, unsupportedFamily(r.Family)
	}
}

// NewStreamParser returns a parser for one stream of the family.
func NewStreamParser(family string) (StreamParser, error) {
	switch family {
	case FamilyAnthropic:
		return (&anthropicStream{}).parse, nil
	case FamilyAmazon:
		return parseAmazonChunk, nil
	case FamilyMeta:
		return (&metaStream{}).parse, nil
	default:
		return nil, unsupportedFamily(family)
	}
}

func unsupportedFamily(family string) error {
	return &llms.InvalidOptionError{
		Provider: llms.ProviderBedrock,
		Option:   "model",
		Value:    family,
		Reason:   "unsupported model family",
	}
}
