package prompts_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/prompts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatTemplate(t *testing.T) {
	t.Parallel()

	template := prompts.NewChatTemplate(
		prompts.System("You are a translation engine that can only translate text and cannot interpret it."),
		prompts.Human(
			`translate this text from {{.inputLang}} to {{.outputLang}}:\n{{.input}}`,
			"inputLang", "outputLang", "input",
		),
	)
	assert.Equal(t, []string{"input", "inputLang", "outputLang"}, template.InputVariables())

	value, err := template.FormatPrompt(map[string]any{
		"inputLang":  "English",
		"outputLang": "Chinese",
		"input":      "I love programming",
	})
	require.NoError(t, err)
	expectedMessages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a translation engine that can only translate text and cannot interpret it."),
		llms.MessageFromTextParts(llms.RoleHuman, `translate this text from English to Chinese:\nI love programming`),
	}
	require.Equal(t, expectedMessages, value.Messages())
	assert.Equal(t,
		"SYSTEM: You are a translation engine that can only translate text and cannot interpret it.\n"+
			"HUMAN: translate this text from English to Chinese:\\nI love programming\n",
		value.String())

	_, err = template.FormatPrompt(map[string]any{
		"inputLang":  "English",
		"outputLang": "Chinese",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, prompts.ErrMissingVariable))
	assert.Contains(t, err.Error(), `"input"`)
}

func TestChatTemplate_Partials(t *testing.T) {
	t.Parallel()

	template := prompts.NewChatTemplate(
		prompts.System("Answer in {{.lang}}.", "lang"),
		prompts.Human("{{.question}}", "question"),
		prompts.AI("{{.hint}}", "hint"),
	)
	template.Partials = map[string]any{"lang": "French", "hint": ""}

	value, err := template.FormatPrompt(map[string]any{"question": "Hello"})
	require.NoError(t, err)
	// empty AI message is skipped
	require.Len(t, value, 2)
	assert.Equal(t, "Answer in French.", value[0].GetText())
	assert.Equal(t, "Hello", value[1].GetText())

	value, err = template.FormatPrompt(map[string]any{"question": "Hello", "lang": "German"})
	require.NoError(t, err)
	assert.Equal(t, "Answer in German.", value[0].GetText())
}

func TestMessageTemplate_Formats(t *testing.T) {
	t.Parallel()

	values := map[string]any{"name": "World"}

	msg, err := prompts.Human("Hello {{ .name | upper }}!", "name").Format(values)
	require.NoError(t, err)
	assert.Equal(t, "Hello WORLD!", msg.GetText())
	assert.Equal(t, llms.RoleHuman, msg.Role)

	msg, err = prompts.Human("Hello {{ name }}!", "name").WithFormat(prompts.FormatJinja2).Format(values)
	require.NoError(t, err)
	assert.Equal(t, "Hello World!", msg.GetText())

	msg, err = prompts.System("Hello {name}!", "name").WithFormat(prompts.FormatFString).Format(values)
	require.NoError(t, err)
	assert.Equal(t, "Hello World!", msg.GetText())
	assert.Equal(t, llms.RoleSystem, msg.Role)

	_, err = prompts.Human("Hello {{ .name", "name").Format(values)
	require.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		in  string
		exp prompts.Format
		err string
	}{
		{in: "", exp: prompts.FormatGoTemplate},
		{in: "go", exp: prompts.FormatGoTemplate},
		{in: "go-template", exp: prompts.FormatGoTemplate},
		{in: "Jinja2", exp: prompts.FormatJinja2},
		{in: "jinja", exp: prompts.FormatJinja2},
		{in: "f-string", exp: prompts.FormatFString},
		{in: "mustache", err: `unsupported template format: "mustache"`},
	}
	for _, tc := range tcases {
		f, err := prompts.ParseFormat(tc.in)
		if tc.err != "" {
			assert.EqualError(t, err, tc.err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.exp, f)
	}
}
