package llmutils_test

import (
	"testing"

	"github.com/effective-security/llmkit/pkg/llmutils"
	"github.com/stretchr/testify/assert"
)

func TestCleanJSON(t *testing.T) {
	t.Parallel()

	// an answer that quotes JSON inside a JSON string is kept whole
	nested := "{\n\t\"answer\": \"use this filter:\\n```json\\n{\\\"limit\\\": 5}\\n```\",\n\t\"actions\": []\n}"

	tests := []struct {
		name string
		in   string
		exp  string
	}{
		{name: "fenced object", in: "\n```json\n\n{\"city\": \"Oslo\"}\n\n```\n\n", exp: `{"city": "Oslo"}`},
		{name: "prose and array", in: "Sure, here it is:\n```json\n[{\"city\": \"Oslo\"}, {\"city\": \"Bergen\"}]\n```\nAnything else?", exp: `[{"city": "Oslo"}, {"city": "Bergen"}]`},
		{name: "bare", in: `{"ok":true}`, exp: `{"ok":true}`},
		{name: "nested", in: nested, exp: nested},
		{name: "no json", in: "I don't know", exp: "I don't know"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.exp, string(llmutils.CleanJSON([]byte(tc.in))), tc.name)
	}
}

func TestBytesTrimBackticks(t *testing.T) {
	t.Parallel()

	doc := "title = \"Go\"\nkeywords = [\"go\"]"
	for _, in := range []string{
		"\n```toml\n" + doc + "\n```\n",
		"```\n" + doc + "\n```",
		"Here is the TOML:\n```toml\n" + doc + "\n```\nDone.",
		doc,
	} {
		assert.Equal(t, doc, string(llmutils.BytesTrimBackticks([]byte(in))))
	}

	assert.Equal(t, `{"a":1}`, string(llmutils.BytesTrimBackticks([]byte("```{\"a\":1}```"))))
	assert.Equal(t, "name: go", string(llmutils.BytesTrimBackticks([]byte("```yaml\nname: go\n"))), "unterminated fence")
}

type release struct {
	Name    string   `json:"name"`
	Version int      `json:"version"`
	Notes   []string `json:"notes,omitempty"`
}

func TestToJSONIndent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "{\n\t\"name\": \"llmkit\",\n\t\"version\": 2\n}", llmutils.ToJSONIndent(release{Name: "llmkit", Version: 2}))
	assert.Equal(t, "", llmutils.ToJSONIndent(make(chan int)))
}

func TestToYAML(t *testing.T) {
	t.Parallel()

	// keys follow the json tags and are sorted
	assert.Equal(t, "name: llmkit\nnotes:\n- first\nversion: 2\n", llmutils.ToYAML(release{Name: "llmkit", Version: 2, Notes: []string{"first"}}))
	assert.Equal(t, "", llmutils.ToYAML(func() {}))
}
