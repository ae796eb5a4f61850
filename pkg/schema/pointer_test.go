package schema_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/effective-security/llmkit/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ticketValue struct {
	Subject  string `json:"subject" jsonschema:"title=Subject,description=Short subject of the ticket"`
	Assignee string `json:"assignee,omitempty" jsonschema:"title=Assignee,description=Owner of the ticket"`
}

type ticketPointer struct {
	Subject  string  `json:"subject" jsonschema:"title=Subject,description=Short subject of the ticket"`
	Assignee *string `json:"assignee,omitempty" jsonschema:"title=Assignee,description=Owner of the ticket"`
}

func TestResponseFormat_OptionalFields(t *testing.T) {
	t.Parallel()

	for _, typ := range []reflect.Type{
		reflect.TypeOf(ticketValue{}),
		reflect.TypeOf(ticketPointer{}),
	} {
		t.Run(typ.Name(), func(t *testing.T) {
			t.Parallel()

			rf, err := schema.NewResponseFormat(typ, true)
			require.NoError(t, err)
			assert.Equal(t, "json_schema", rf.Type)
			assert.Equal(t, typ.Name(), rf.JSONSchema.Name)
			assert.True(t, rf.JSONSchema.Strict)

			sc := rf.JSONSchema.Schema
			require.NotNil(t, sc)
			assert.Contains(t, sc.Properties, "assignee")
			assert.Equal(t, "string", sc.Properties["assignee"].Type)
			assert.Equal(t, []string{"subject"}, sc.Required)
			require.NotNil(t, sc.AdditionalProperties)
			assert.False(t, *sc.AdditionalProperties)
			assert.Nil(t, sc.Properties["subject"].AdditionalProperties)
		})
	}
}

func TestResponseFormat_Marshal(t *testing.T) {
	t.Parallel()

	rf, err := schema.NewResponseFormat(reflect.TypeOf(ticketValue{}), false)
	require.NoError(t, err)

	b, err := json.MarshalIndent(rf, "", "  ")
	require.NoError(t, err)
	exp := `{
  "type": "json_schema",
  "json_schema": {
    "name": "ticketValue",
    "strict": false,
    "schema": {
      "type": "object",
      "properties": {
        "assignee": {
          "type": "string",
          "title": "Assignee",
          "description": "Owner of the ticket"
        },
        "subject": {
          "type": "string",
          "title": "Subject",
          "description": "Short subject of the ticket"
        }
      },
      "additionalProperties": false,
      "required": [
        "subject"
      ]
    }
  }
}`
	assert.Equal(t, exp, string(b))

	b, err = json.Marshal(schema.JSONResponseFormat)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"json_object"}`, string(b))
}
