package genaiutils

import (
	"reflect"
	"testing"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type stop struct {
	City  string  `json:"city" jsonschema:"description=City name"`
	Night bool    `json:"night,omitempty"`
	Cost  float64 `json:"cost,omitempty"`
}

type itinerary struct {
	Title string   `json:"title" jsonschema:"title=Title"`
	Pace  string   `json:"pace" jsonschema:"enum=slow,enum=fast"`
	Days  int      `json:"days"`
	Stops []stop   `json:"stops,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

func TestConvertJSONSchemaDefinition(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ConvertJSONSchemaDefinition(nil))

	sc, err := schema.New(reflect.TypeOf(itinerary{}))
	require.NoError(t, err)

	out := ConvertJSONSchemaDefinition(sc.Parameters)
	assert.Equal(t, genai.TypeObject, out.Type)
	assert.Equal(t, []string{"title", "pace", "days", "stops", "tags"}, out.PropertyOrdering)
	assert.Equal(t, []string{"title", "pace", "days"}, out.Required)

	assert.Equal(t, "Title", out.Properties["title"].Title)
	assert.Equal(t, []string{"slow", "fast"}, out.Properties["pace"].Enum)
	assert.Equal(t, genai.TypeInteger, out.Properties["days"].Type)
	assert.Equal(t, genai.TypeString, out.Properties["tags"].Items.Type)

	stops := out.Properties["stops"]
	assert.Equal(t, genai.TypeArray, stops.Type)
	require.NotNil(t, stops.Items)
	assert.Equal(t, []string{"city", "night", "cost"}, stops.Items.PropertyOrdering)
	assert.Equal(t, "City name", stops.Items.Properties["city"].Description)
	assert.Equal(t, genai.TypeBoolean, stops.Items.Properties["night"].Type)
	assert.Equal(t, genai.TypeNumber, stops.Items.Properties["cost"].Type)
}

func TestConvertResponseFormatJSONSchema(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ConvertResponseFormatJSONSchema(nil))
	assert.Nil(t, ConvertResponseFormatJSONSchema(&schema.ResponseFormatJSONSchema{Name: "empty"}))

	rf, err := schema.NewResponseFormat(reflect.TypeOf(itinerary{}), true)
	require.NoError(t, err)

	out := ConvertResponseFormatJSONSchema(rf.JSONSchema)
	assert.Equal(t, genai.TypeObject, out.Type)
	assert.Len(t, out.Properties, 5)
	assert.Equal(t, []string{"title", "pace", "days"}, out.Required)
	assert.Equal(t, []string{"slow", "fast"}, out.Properties["pace"].Enum)
	assert.Equal(t, genai.TypeObject, out.Properties["stops"].Items.Type)
	assert.Equal(t, "City name", out.Properties["stops"].Items.Properties["city"].Description)
}

func TestConvertJSONSchemaType(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]genai.Type{
		"object":  genai.TypeObject,
		"array":   genai.TypeArray,
		"string":  genai.TypeString,
		"number":  genai.TypeNumber,
		"integer": genai.TypeInteger,
		"boolean": genai.TypeBoolean,
		"null":    genai.TypeUnspecified,
		"":        genai.TypeUnspecified,
	} {
		assert.Equal(t, want, ConvertJSONSchemaType(name), name)
	}
}

func TestConvertTools(t *testing.T) {
	t.Parallel()

	tools, err := ConvertTools(nil)
	require.NoError(t, err)
	assert.Nil(t, tools)

	sc, err := schema.New(reflect.TypeOf(stop{}))
	require.NoError(t, err)

	tools, err = ConvertTools([]llms.Tool{
		{Type: "function", Function: &llms.FunctionDefinition{Name: "book", Description: "books a stop", Parameters: sc.Parameters}},
		{Type: "function", Function: &llms.FunctionDefinition{Name: "cancel"}},
	})
	require.NoError(t, err)
	require.Len(t, tools, 1, "functions are declared on one tool")

	decls := tools[0].FunctionDeclarations
	require.Len(t, decls, 2)
	assert.Equal(t, "book", decls[0].Name)
	assert.Equal(t, "books a stop", decls[0].Description)
	assert.Equal(t, []string{"city"}, decls[0].Parameters.Required)
	assert.Equal(t, "cancel", decls[1].Name)
	assert.Nil(t, decls[1].Parameters)

	for _, bad := range []llms.Tool{
		{Type: "retrieval"},
		{Type: "function"},
	} {
		_, err = ConvertTools([]llms.Tool{{Type: "function", Function: &llms.FunctionDefinition{Name: "book"}}, bad})
		var uie *llms.UnsupportedInputError
		require.ErrorAs(t, err, &uie)
		assert.Equal(t, llms.ProviderGoogleAI, uie.Provider)
		assert.Equal(t, "tool [1] "+bad.Type, uie.Input)
	}
}

func TestConvertToolChoice(t *testing.T) {
	t.Parallel()

	named := llms.ToolChoice{Type: "function", Function: &llms.FunctionReference{Name: "book"}}

	tests := []struct {
		name    string
		choice  any
		mode    genai.FunctionCallingConfigMode
		allowed []string
	}{
		{name: "empty", choice: "", mode: genai.FunctionCallingConfigModeAuto},
		{name: "auto", choice: "auto", mode: genai.FunctionCallingConfigModeAuto},
		{name: "none", choice: "none", mode: genai.FunctionCallingConfigModeNone},
		{name: "required", choice: "required", mode: genai.FunctionCallingConfigModeAny},
		{name: "any", choice: "any", mode: genai.FunctionCallingConfigModeAny},
		{name: "function name", choice: "cancel", mode: genai.FunctionCallingConfigModeAny, allowed: []string{"cancel"}},
		{name: "tool choice", choice: named, mode: genai.FunctionCallingConfigModeAny, allowed: []string{"book"}},
		{name: "tool choice pointer", choice: &named, mode: genai.FunctionCallingConfigModeAny, allowed: []string{"book"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ConvertToolChoice(tc.choice)
			require.NoError(t, err)
			require.NotNil(t, cfg.FunctionCallingConfig)
			assert.Equal(t, tc.mode, cfg.FunctionCallingConfig.Mode)
			assert.Equal(t, tc.allowed, cfg.FunctionCallingConfig.AllowedFunctionNames)
		})
	}

	cfg, err := ConvertToolChoice(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg)
	cfg, err = ConvertToolChoice((*llms.ToolChoice)(nil))
	require.NoError(t, err)
	assert.Nil(t, cfg)

	for _, bad := range []any{llms.ToolChoice{Type: "function"}, 3} {
		_, err := ConvertToolChoice(bad)
		var ioe *llms.InvalidOptionError
		require.ErrorAs(t, err, &ioe)
		assert.Equal(t, "tool_choice", ioe.Option)
	}
}

func TestPointers(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Float32Ptr(0))
	assert.Equal(t, float32(0.5), *Float32Ptr(0.5))
	assert.Nil(t, Int32Ptr(0))
	assert.Equal(t, int32(42), *Int32Ptr(42))
}
