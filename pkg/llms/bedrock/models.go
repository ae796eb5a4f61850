package bedrock

// Model IDs with a supported request format.
// Ref: https://docs.aws.amazon.com/bedrock/latest/userguide/model-ids.html
const (
	ModelAmazonTitanTextLiteV1    = "amazon.titan-text-lite-v1"
	ModelAmazonTitanTextExpressV1 = "amazon.titan-text-express-v1"
	ModelAmazonTitanTextPremierV1 = "amazon.titan-text-premier-v1:0"

	ModelAnthropicClaudeV3Haiku    = "anthropic.claude-3-haiku-20240307-v1:0"
	ModelAnthropicClaudeV35Haiku   = "anthropic.claude-3-5-haiku-20241022-v1:0"
	ModelAnthropicClaudeV35Sonnet  = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	ModelAnthropicClaudeV37Sonnet  = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"
	ModelAnthropicClaudeSonnet4    = "us.anthropic.claude-sonnet-4-20250514-v1:0"
	ModelAnthropicClaudeSonnet45   = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	ModelAnthropicClaudeOpus41     = "us.anthropic.claude-opus-4-1-20250805-v1:0"
	ModelMetaLlama3_8bInstructV1   = "meta.llama3-8b-instruct-v1:0"
	ModelMetaLlama3_70bInstructV1  = "meta.llama3-70b-instruct-v1:0"
	ModelMetaLlama32_11bInstructV1 = "us.meta.llama3-2-11b-instruct-v1:0"

	ModelAmazonTitanEmbedTextV2 = "amazon.titan-embed-text-v2:0"
	ModelCohereEmbedEnglishV3   = "cohere.embed-english-v3"
)

// DefaultEmbeddingModel is used when neither the handle nor the options name one.
const DefaultEmbeddingModel = ModelAmazonTitanEmbedTextV2
