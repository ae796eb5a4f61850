package llms

import (
	"context"
	"iter"
	"strings"
)

//go:generate mockgen -source=llms.go -destination=../mocks/mockllms/llms_mock.go -package mockllms

// ProviderType is the type of provider.
type ProviderType string

const (
	// ProviderAnthropic is the type of provider.
	ProviderAnthropic ProviderType = "ANTHROPIC"
	// ProviderAzure is the type of provider.
	ProviderAzure ProviderType = "AZURE"
	// ProviderAzureAD is the type of provider.
	ProviderAzureAD ProviderType = "AZURE_AD"
	// ProviderBedrock is the type of provider.
	ProviderBedrock ProviderType = "BEDROCK"
	// ProviderGoogleAI is the type of provider.
	ProviderGoogleAI ProviderType = "GOOGLEAI"
	// ProviderOpenAI is the type of provider.
	ProviderOpenAI ProviderType = "OPENAI"
	// ProviderPerplexity is the type of provider.
	ProviderPerplexity ProviderType = "PERPLEXITY"
	// ProviderGeneric is a JSON over HTTP endpoint with configurable field paths.
	ProviderGeneric ProviderType = "GENERIC"
	// ProviderTavily is the Tavily web search API.
	ProviderTavily ProviderType = "TAVILY"
	// ProviderUnstructured is the Unstructured document partition API.
	ProviderUnstructured ProviderType = "UNSTRUCTURED"
)

// ParseProviderType returns the ProviderType for the given name,
// "OPEN_AI" is accepted as an alias of OPENAI.
func ParseProviderType(s string) ProviderType {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "OPEN_AI" {
		return ProviderOpenAI
	}
	return ProviderType(s)
}

// Model is an interface multi-modal models implement.
type Model interface {
	// GetProviderType returns the type of provider.
	GetProviderType() ProviderType
	// GetName returns the name of the model.
	GetName() string
	// GenerateContent asks the model to generate content from a sequence of
	// messages. It's the most general interface for multi-modal LLMs that support
	// chat-like interactions.
	GenerateContent(ctx context.Context, messages []Message, options ...CallOption) (*ContentResponse, error)
}

// Streamer is implemented by models that can deliver a response incrementally.
//
// The returned sequence is lazy: no request is made until the caller starts
// ranging over it, and breaking out of the loop cancels the underlying call.
// A sequence can be consumed once.
type Streamer interface {
	StreamContent(ctx context.Context, messages []Message, options ...CallOption) iter.Seq2[Chunk, error]
}

// Embedder is implemented by providers that can produce vector embeddings.
type Embedder interface {
	// CreateEmbedding returns one vector per input text, in the input order.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentLoader loads documents from a source, such as a path or URL.
type DocumentLoader interface {
	Load(ctx context.Context, source string) ([]Document, error)
}

// Retriever returns documents relevant to a query.
type Retriever interface {
	GetRelevantDocuments(ctx context.Context, query string) ([]Document, error)
}

// Capability is a bitmask indicating supported features of an LLM provider.
type Capability uint64

const (
	// Basic text or chat generation
	CapabilityText Capability = 1 << iota

	// Structured response formats
	CapabilityJSONResponse
	CapabilityJSONSchema

	// Function/tool calling
	CapabilityFunctionCalling

	// Incremental responses
	CapabilityStreaming

	// Vector embeddings
	CapabilityEmbeddings

	// Multimodal (images, audio, etc.)
	CapabilityVision

	// System prompt support
	CapabilitySystemPrompt

	// Document loading and search
	CapabilityDocuments
)

var providerCapabilities = map[ProviderType]Capability{
	ProviderOpenAI: CapabilityText |
		CapabilityJSONResponse |
		CapabilityJSONSchema |
		CapabilityFunctionCalling |
		CapabilityStreaming |
		CapabilityEmbeddings |
		CapabilitySystemPrompt |
		CapabilityVision,

	ProviderAnthropic: CapabilityText |
		CapabilityJSONResponse |
		CapabilityJSONSchema |
		CapabilityFunctionCalling |
		CapabilityStreaming |
		CapabilitySystemPrompt |
		CapabilityVision,

	ProviderGoogleAI: CapabilityText |
		CapabilitySystemPrompt |
		CapabilityJSONResponse |
		CapabilityJSONSchema |
		CapabilityFunctionCalling |
		CapabilityStreaming |
		CapabilityEmbeddings |
		CapabilityVision,

	// Use Bedrock with Anthropic models
	ProviderBedrock: CapabilityText |
		CapabilityJSONResponse |
		CapabilityFunctionCalling |
		CapabilityEmbeddings |
		CapabilitySystemPrompt |
		CapabilityVision,

	ProviderPerplexity: CapabilityText |
		CapabilitySystemPrompt |
		CapabilityStreaming |
		CapabilityJSONResponse |
		CapabilityJSONSchema,

	ProviderAzure: CapabilityText |
		CapabilityJSONResponse |
		CapabilityJSONSchema |
		CapabilityFunctionCalling |
		CapabilityStreaming |
		CapabilityEmbeddings |
		CapabilitySystemPrompt,

	ProviderAzureAD: CapabilityText, // Proxy passthrough

	ProviderGeneric: CapabilityText | CapabilityStreaming,

	ProviderTavily:       CapabilityDocuments,
	ProviderUnstructured: CapabilityDocuments,
}

func ProviderCapabilities(pt ProviderType) Capability {
	return providerCapabilities[pt]
}

func (p ProviderType) Supports(cap Capability) bool {
	return ProviderCapabilities(p)&cap != 0
}
