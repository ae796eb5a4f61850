package bedrockclient

import (
	"context"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit/pkg/llms", "bedrock")

// Model families, the vendor part of a model ID.
const (
	FamilyAmazon    = "amazon"
	FamilyAnthropic = "anthropic"
	FamilyCohere    = "cohere"
	FamilyMeta      = "meta"
)

// Client is a Bedrock runtime client.
type Client struct {
	client *bedrockruntime.Client
}

// Message is a chunk of text or an data
// that will be sent to the provider.
//
// The provider may then transform the message to its own
// format before sending it to the LLM model API.
type Message struct {
	Role    llms.Role
	Content string
	// Type may be "text", "image", "tool_use", "tool_result"
	Type string
	// MimeType is the MIME type
	MimeType string
	// Tool-specific fields
	ToolCallID string // For tool results
	ToolName   string // For tool use
	ToolInput  string // For tool use (JSON)
}

// Request is a model invocation body.
type Request struct {
	ModelID string
	Family  string
	Body    []byte
}

// Response is a model response body with the family that decodes it.
type Response struct {
	Family string
	Body   []byte
}

// Family returns the vendor of the model.
// Inference profiles like "us.anthropic.claude-3-5-sonnet-20241022-v2:0"
// and direct model IDs like "anthropic.claude-3-sonnet-20240229-v1:0" are supported.
func Family(modelID string) string {
	parts := strings.Split(modelID, ".")
	if len(parts) >= 2 {
		// Check if first part is a region (like "us", "eu", etc.)
		if len(parts[0]) == 2 && strings.ToLower(parts[0]) == parts[0] {
			// This looks like a region prefix, use the second part as provider
			return parts[1]
		}
		// Otherwise use the first part as provider (direct model ID)
		return parts[0]
	}
	return parts[0]
}

// New returns a client for the configured handle. The SDK retryer is
// disabled, each call is a single request. It performs no I/O.
func New(h *provider.Handle, httpClient transport.Doer) *Client {
	creds := h.Credentials()
	opts := bedrockruntime.Options{
		Region:      h.Region(),
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(creds.APIKey, creds.Secret, creds.Token)),
		Retryer:     aws.NopRetryer{},
	}
	if ep := h.Endpoint(); ep != "" {
		opts.BaseEndpoint = aws.String(ep)
	}
	if httpClient != nil {
		opts.HTTPClient = httpClient
	}
	return &Client{
		client: bedrockruntime.New(opts),
	}
}

// InvokeModel sends the request body and returns the response body.
func (c *Client) InvokeModel(ctx context.Context, r *Request) (*Response, error) {
	logger.ContextKV(ctx, xlog.DEBUG, "model", r.ModelID, "family", r.Family)
	out, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(r.ModelID),
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
		Body:        r.Body,
	})
	if err != nil {
		return nil, MapError(err)
	}
	return &Response{
		Family: r.Family,
		Body:   out.Body,
	}, nil
}

// InvokeModelStream sends the request body and yields the payload of each
// chunk event. The stream is closed when the caller stops iterating.
func (c *Client) InvokeModelStream(ctx context.Context, r *Request) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		logger.ContextKV(ctx, xlog.DEBUG, "model", r.ModelID, "family", r.Family, "stream", true)
		out, err := c.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
			ModelId:     aws.String(r.ModelID),
			Accept:      aws.String("application/json"),
			ContentType: aws.String("application/json"),
			Body:        r.Body,
		})
		if err != nil {
			yield(nil, MapError(err))
			return
		}
		stream := out.GetStream()
		if stream == nil {
			yield(nil, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "no stream"})
			return
		}
		defer func() {
			_ = stream.Close()
		}()

		for e := range stream.Events() {
			if v, ok := e.(*types.ResponseStreamMemberChunk); ok {
				if !yield(v.Value.Bytes, nil) {
					return
				}
			}
		}
		if err = stream.Err(); err != nil {
			yield(nil, MapError(err))
		}
	}
}

var codeStatus = map[string]int{
	"ValidationException":           http.StatusBadRequest,
	"AccessDeniedException":         http.StatusForbidden,
	"UnrecognizedClientException":   http.StatusForbidden,
	"ResourceNotFoundException":     http.StatusNotFound,
	"ModelTimeoutException":         http.StatusRequestTimeout,
	"ModelErrorException":           424,
	"ModelStreamErrorException":     424,
	"ServiceQuotaExceededException": http.StatusBadRequest,
	"ThrottlingException":           http.StatusTooManyRequests,
	"InternalServerException":       http.StatusInternalServerError,
	"ModelNotReadyException":        http.StatusTooManyRequests,
	"ServiceUnavailableException":   http.StatusServiceUnavailable,
}

// MapError converts AWS SDK errors to the llms error taxonomy.
// ThrottlingException is a RateLimitError.
func MapError(err error) error {
	status := 0
	var header http.Header
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		status = re.HTTPStatusCode()
		if re.Response != nil && re.Response.Response != nil {
			header = re.Response.Header
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if status == 0 {
			status = codeStatus[code]
		}
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if code == "ThrottlingException" || status == http.StatusTooManyRequests {
			rl := llms.NewRateLimitError(llms.ProviderBedrock, http.StatusTooManyRequests, apiErr.ErrorMessage(),
				llms.ParseRetryAfter(header, time.Now()))
			rl.Type = code
			return rl
		}
		return &llms.ProviderError{
			Provider:   llms.ProviderBedrock,
			StatusCode: status,
			Type:       code,
			Message:    apiErr.ErrorMessage(),
		}
	}

	var de *smithy.DeserializationError
	if errors.As(err, &de) {
		return &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "decode response", Err: err}
	}
	return &llms.TransportError{Provider: llms.ProviderBedrock, Op: "invoke", Err: err}
}

func unsupported(input, reason string) error {
	return &llms.UnsupportedInputError{Provider: llms.ProviderBedrock, Input: input, Reason: reason}
}

func getMaxTokens(maxTokens, defaultValue int) int {
	if maxTokens <= 0 {
		return defaultValue
	}
	return maxTokens
}

// Helper function to process input text chat
// messages as a single string.
func processInputMessagesGeneric(messages []Message) string {
	var sb strings.Builder
	var hasRole bool
	for _, message := range messages {
		if message.Role != "" {
			hasRole = true
			sb.WriteString("\n")
			sb.WriteString(string(message.Role))
			sb.WriteString(": ")
		}
		if message.Type == "text" {
			sb.WriteString(message.Content)
		}
	}
	if hasRole {
		sb.WriteString("\n")
		sb.WriteString("AI: ")
	}
	return sb.String()
}
