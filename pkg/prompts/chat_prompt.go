// Package prompts renders chat messages from templates.
package prompts

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llmutils"
	lcprompts "github.com/tmc/langchaingo/prompts"
)

// ErrMissingVariable is returned when a template input is not provided.
var ErrMissingVariable = errors.New("missing template variable")

// Format is the syntax of a template.
type Format string

// Supported template formats. Go templates have the sprig functions.
const (
	FormatGoTemplate = Format(lcprompts.TemplateFormatGoTemplate)
	FormatJinja2     = Format(lcprompts.TemplateFormatJinja2)
	FormatFString    = Format(lcprompts.TemplateFormatFString)
)

// ParseFormat returns the format by name, Go template by default.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "go", FormatGoTemplate:
		return FormatGoTemplate, nil
	case "jinja", FormatJinja2:
		return FormatJinja2, nil
	case FormatFString:
		return f, nil
	default:
		return "", errors.Errorf("unsupported template format: %q", s)
	}
}

// MessageTemplate renders one message of a role.
type MessageTemplate struct {
	Role   llms.Role
	Prompt lcprompts.PromptTemplate
}

func newMessageTemplate(role llms.Role, template string, vars []string) MessageTemplate {
	return MessageTemplate{
		Role:   role,
		Prompt: lcprompts.NewPromptTemplate(template, vars),
	}
}

// System returns a system message template with the input variables.
func System(template string, vars ...string) MessageTemplate {
	return newMessageTemplate(llms.RoleSystem, template, vars)
}

// Human returns a human message template with the input variables.
func Human(template string, vars ...string) MessageTemplate {
	return newMessageTemplate(llms.RoleHuman, template, vars)
}

// AI returns an AI message template with the input variables.
func AI(template string, vars ...string) MessageTemplate {
	return newMessageTemplate(llms.RoleAI, template, vars)
}

// WithFormat returns a copy of the template with the format.
func (m MessageTemplate) WithFormat(f Format) MessageTemplate {
	m.Prompt.TemplateFormat = lcprompts.TemplateFormat(f)
	return m
}

// Format renders the message.
func (m MessageTemplate) Format(values map[string]any) (llms.Message, error) {
	for _, v := range m.Prompt.InputVariables {
		if _, ok := values[v]; !ok {
			return llms.Message{}, errors.WithMessagef(ErrMissingVariable, "%q", v)
		}
	}
	text, err := m.Prompt.Format(values)
	if err != nil {
		return llms.Message{}, errors.Wrapf(err, "failed to render %s message", m.Role)
	}
	return llms.MessageFromTextParts(m.Role, text), nil
}

// ChatTemplate renders a list of messages.
type ChatTemplate struct {
	Messages []MessageTemplate
	// Partials are default values, overridden by values passed to FormatPrompt.
	Partials map[string]any
}

// NewChatTemplate returns a template of the messages.
func NewChatTemplate(messages ...MessageTemplate) *ChatTemplate {
	return &ChatTemplate{
		Messages: messages,
	}
}

// InputVariables returns the sorted input variables of all messages.
func (t *ChatTemplate) InputVariables() []string {
	var vars []string
	for _, m := range t.Messages {
		vars = append(vars, m.Prompt.InputVariables...)
	}
	slices.Sort(vars)
	return slices.Compact(vars)
}

// FormatPrompt renders the messages, empty messages are skipped.
func (t *ChatTemplate) FormatPrompt(values map[string]any) (ChatPromptValue, error) {
	merged := llmutils.MergeInputs(t.Partials, values)

	res := make(ChatPromptValue, 0, len(t.Messages))
	for _, m := range t.Messages {
		msg, err := m.Format(merged)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.GetText()) == "" {
			continue
		}
		res = append(res, msg)
	}
	return res, nil
}

// ChatPromptValue is a prompt value that is a list of chat messages.
type ChatPromptValue []llms.Message

// String returns the chat message slice as a buffer string.
func (v ChatPromptValue) String() string {
	var buf strings.Builder
	llmutils.PrintMessages(&buf, v)
	return buf.String()
}

// Messages returns the ChatMessage slice.
func (v ChatPromptValue) Messages() []llms.Message {
	return v
}
