package anthropic_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/effective-security/llmkit/pkg/encoding"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type contact struct {
	Name  string `json:"name" jsonschema:"description=Full name"`
	Email string `json:"email,omitempty"`
}

type triage struct {
	Summary  string     `json:"summary" jsonschema:"description=One line summary" validate:"required"`
	Priority string     `json:"priority" jsonschema:"enum=p1,enum=p2,enum=p3"`
	Labels   []string   `json:"labels,omitempty"`
	Reporter *contact   `json:"reporter,omitempty"`
	Watchers []*contact `json:"watchers,omitempty"`
}

// textServer replies with a single text block and hands the request body to check.
func textServer(t *testing.T, text string, check func(body []byte)) *httptest.Server {
	t.Helper()
	reply, err := json.Marshal(map[string]any{
		"id":          "msg_so",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-sonnet-4-5",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 40, "output_tokens": 12},
	})
	require.NoError(t, err)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		check(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(reply)
	}))
}

func ticketMessages() []llms.Message {
	return []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "login fails after the upgrade, reported by Ann"),
	}
}

func TestGenerate_OutputConfig(t *testing.T) {
	t.Parallel()

	srv := textServer(t, `{"summary":"login fails","priority":"p1","reporter":{"name":"Ann"}}`, func(body []byte) {
		format := gjson.GetBytes(body, "output_config.format")
		assert.Equal(t, "json_schema", format.Get("type").String())

		sc := format.Get("schema")
		assert.Equal(t, "object", sc.Get("type").String())
		assert.False(t, sc.Get("additionalProperties").Bool())
		assert.Equal(t, `["summary","priority"]`, sc.Get("required").Raw)
		assert.Equal(t, "One line summary", sc.Get("properties.summary.description").String())
		assert.Equal(t, `["p1","p2","p3"]`, sc.Get("properties.priority.enum").Raw)
		assert.Equal(t, "string", sc.Get("properties.labels.items.type").String())

		// nested types are inlined, the API does not resolve references
		assert.Equal(t, "Full name", sc.Get("properties.reporter.properties.name.description").String())
		assert.Equal(t, "object", sc.Get("properties.watchers.items.type").String())
		assert.False(t, gjson.GetBytes(body, "output_config.format.schema.properties.reporter.$ref").Exists())
	})
	defer srv.Close()

	val, resp, err := encoding.Generate[triage](context.Background(), newLLM(t, srv), ticketMessages(), encoding.ModeJSONSchema)
	require.NoError(t, err)
	assert.Equal(t, "login fails", val.Summary)
	assert.Equal(t, "p1", val.Priority)
	require.NotNil(t, val.Reporter)
	assert.Equal(t, "Ann", val.Reporter.Name)
	assert.Equal(t, int64(52), resp.Usage().TotalTokens)
}

func TestGenerate_JSONWithoutSchema(t *testing.T) {
	t.Parallel()

	srv := textServer(t, "```json\n{\"summary\":\"login fails\",\"priority\":\"p2\"}\n```", func(body []byte) {
		assert.False(t, gjson.GetBytes(body, "output_config").Exists())
		assert.Contains(t, gjson.GetBytes(body, "messages.0.content.1.text").String(), "JSON")
	})
	defer srv.Close()

	val, _, err := encoding.Generate[triage](context.Background(), newLLM(t, srv), ticketMessages(), encoding.ModeJSON)
	require.NoError(t, err)
	assert.Equal(t, "p2", val.Priority)
}

func TestGenerate_NotStructured(t *testing.T) {
	t.Parallel()

	srv := textServer(t, "I could not classify this ticket.", func([]byte) {})
	defer srv.Close()

	val, resp, err := encoding.Generate[triage](context.Background(), newLLM(t, srv), ticketMessages(), encoding.ModeJSONSchemaStrict)
	assert.Nil(t, val)
	require.NotNil(t, resp)
	assert.Equal(t, "I could not classify this ticket.", resp.Text())

	var mre *llms.MalformedResponseError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, llms.ProviderAnthropic, mre.Provider)
}

func TestAdapt_ResponseFormatWithoutSchema(t *testing.T) {
	t.Parallel()

	a, h := newAdapter(t)
	for _, rf := range []*schema.ResponseFormat{
		schema.JSONResponseFormat,
		{Type: "json_schema"},
		{Type: "json_schema", JSONSchema: &schema.ResponseFormatJSONSchema{Name: "empty"}},
	} {
		payload, err := a.Adapt(llms.NewRequest(ticketMessages(), llms.WithResponseFormat(rf)), h)
		require.NoError(t, err)
		assert.Empty(t, payload.RequestOptions, "no output_config for %+v", rf)
	}

	rf, err := schema.NewResponseFormat(reflect.TypeOf(triage{}), true)
	require.NoError(t, err)
	payload, err := a.Adapt(llms.NewRequest(ticketMessages(), llms.WithResponseFormat(rf)), h)
	require.NoError(t, err)
	assert.Len(t, payload.RequestOptions, 1)
}
