package llms_test

import (
	"encoding/json"
	"testing"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Message_JSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		msg  llms.Message
		js   string
	}{
		{
			"text",
			llms.MessageFromTextParts(llms.RoleHuman, "a", "b"),
			`{"role":"human","parts":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`,
		},
		{
			"binary",
			llms.MessageFromParts(llms.RoleHuman, llms.BinaryPart("image/png", []byte{0x00, 0x01, 0x02})),
			`{"role":"human","parts":[{"type":"binary","binary":{"mime_type":"image/png","data":"AAEC"}}]}`,
		},
		{
			"image",
			llms.MessageFromParts(llms.RoleHuman, llms.ImageURLContent{URL: "https://example.com/image.png", Detail: "low"}),
			`{"role":"human","parts":[{"type":"image_url","image_url":{"url":"https://example.com/image.png","detail":"low"}}]}`,
		},
		{
			"tool_call",
			llms.MessageFromParts(llms.RoleAI, llms.ToolCall{
				ID:           "t42",
				Type:         "function",
				FunctionCall: &llms.FunctionCall{Name: "get_weather", Arguments: `{"location":"Paris"}`},
			}),
			`{"role":"ai","parts":[{"type":"tool_call","tool_call":{"id":"t42","type":"function","function":{"name":"get_weather","arguments":"{\"location\":\"Paris\"}"}}}]}`,
		},
		{
			"tool_response",
			llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "t42", Name: "get_weather", Content: "sunny"}),
			`{"role":"tool","parts":[{"type":"tool_response","tool_response":{"tool_call_id":"t42","name":"get_weather","content":"sunny"}}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			js, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.js, string(js))

			var decoded llms.Message
			require.NoError(t, json.Unmarshal(js, &decoded))
			assert.Equal(t, tt.msg, decoded)
		})
	}
}

func Test_Message_JSON_UnknownPart(t *testing.T) {
	t.Parallel()
	var m llms.Message
	err := json.Unmarshal([]byte(`{"role":"human","parts":[{"type":"audio"}]}`), &m)
	require.Error(t, err)
	assert.ErrorIs(t, err, llms.ErrUnknownPartType)

	err = json.Unmarshal([]byte(`{"role":"human","parts":[{"type":"binary"}]}`), &m)
	require.Error(t, err)
}
