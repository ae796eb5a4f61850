package llmutils

import (
	"fmt"
	"io"
	"strings"

	"github.com/effective-security/llmkit/pkg/llms"
)

// PrintMessages writes a line per message part, prefixed with the role.
func PrintMessages(w io.Writer, msgs []llms.Message) {
	for _, msg := range msgs {
		role := strings.ToUpper(string(msg.Role))
		for _, part := range msg.Parts {
			if s := describePart(part); s != "" {
				fmt.Fprintf(w, "%s: %s\n", role, s)
			}
		}
	}
}

func describePart(part llms.ContentPart) string {
	switch p := part.(type) {
	case llms.TextContent:
		return p.Text
	case llms.ImageURLContent:
		return p.URL
	case llms.BinaryContent:
		return fmt.Sprintf("BinaryContent MIME=%q, size=%d", p.MIMEType, len(p.Data))
	case llms.ToolCall:
		return p.String()
	case llms.ToolCallResponse:
		return fmt.Sprintf("ToolCallResponse ID=%s, Name=%s, Content=%s", p.ToolCallID, p.Name, p.Content)
	default:
		return ""
	}
}

// CountMessagesContentSize returns the number of bytes in the roles and
// parts of msgs.
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size int
	for _, msg := range msgs {
		size += len(msg.Role)
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case llms.TextContent:
				size += len(p.Text)
			case llms.ImageURLContent:
				size += len(p.URL) + len(p.Detail)
			case llms.BinaryContent:
				size += len(p.MIMEType) + len(p.Data)
			case llms.ToolCall:
				size += toolCallSize(p)
			case llms.ToolCallResponse:
				size += len(p.ToolCallID) + len(p.Name) + len(p.Content)
			}
		}
	}
	return uint64(size)
}

// CountResponseContentSize returns the number of bytes in the text and
// tool calls of resp.
func CountResponseContentSize(resp *llms.ContentResponse) uint64 {
	if resp == nil {
		return 0
	}
	var size int
	for _, choice := range resp.Choices {
		size += len(choice.Content)
		for _, tc := range choice.ToolCalls {
			size += toolCallSize(tc)
		}
	}
	return uint64(size)
}

func toolCallSize(tc llms.ToolCall) int {
	n := len(tc.ID) + len(tc.Type)
	if tc.FunctionCall != nil {
		n += len(tc.FunctionCall.Name) + len(tc.FunctionCall.Arguments)
	}
	return n
}

// CountTokens returns the token usage reported in resp.
func CountTokens(resp *llms.ContentResponse) (in, out, total int64) {
	u := resp.Usage()
	return u.InputTokens, u.OutputTokens, u.TotalTokens
}
