// Package tavily implements a web search retriever on the Tavily API.
package tavily

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit/pkg/retrievers", "tavily")

// Search depths.
const (
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

// MetadataURL and MetadataTitle are set on every returned document.
const (
	MetadataURL   = "url"
	MetadataTitle = "title"
)

// ensure Retriever implements the llms.Retriever interface
var _ llms.Retriever = (*Retriever)(nil)

// Retriever searches the web and returns results as documents.
type Retriever struct {
	h             *provider.Handle
	httpClient    transport.Doer
	depth         string
	includeAnswer bool
}

// Option is a functional option for the retriever.
type Option func(*Retriever)

// WithHTTPClient allows setting a custom HTTP client.
func WithHTTPClient(client transport.Doer) Option {
	return func(r *Retriever) {
		r.httpClient = client
	}
}

// WithSearchDepth sets basic or advanced search.
func WithSearchDepth(depth string) Option {
	return func(r *Retriever) {
		r.depth = depth
	}
}

// WithAnswer asks for an aggregated answer, returned as the first document.
func WithAnswer(include bool) Option {
	return func(r *Retriever) {
		r.includeAnswer = include
	}
}

// New returns a retriever for the configured handle.
func New(h *provider.Handle, opts ...Option) (*Retriever, error) {
	if h == nil {
		return nil, errors.New("client handle is required")
	}
	if h.Provider() != llms.ProviderTavily {
		return nil, &llms.InvalidOptionError{Provider: h.Provider(), Option: "provider", Value: h.Provider(), Reason: "expected TAVILY"}
	}
	r := &Retriever{
		h:          h,
		httpClient: transport.DefaultDoer,
		depth:      DepthBasic,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.depth != DepthBasic && r.depth != DepthAdvanced {
		return nil, &llms.InvalidOptionError{Provider: h.Provider(), Option: "search_depth", Value: r.depth, Reason: "must be basic or advanced"}
	}
	return r, nil
}

// SearchResult is the result of a web search.
type SearchResult struct {
	Results []tavilyModels.SearchResult `json:"results" yaml:"results"`
	Answer  string                      `json:"answer,omitempty" yaml:"answer,omitempty"`
}

// Search runs the query. Failures are classified as for model providers:
// a 429 is a RateLimitError, other statuses a ProviderError.
func (r *Retriever) Search(ctx context.Context, query string) (*SearchResult, error) {
	if query == "" {
		return nil, &llms.UnsupportedInputError{Provider: r.h.Provider(), Input: "empty content", Reason: "query must not be empty"}
	}

	// the client has no context parameter, the recorder binds the call to ctx
	// and keeps the classified error
	rec := &recorder{ctx: ctx, doer: r.httpClient, provider: r.h.Provider()}
	client := tavilygo.NewClient(r.h.APIKey())
	client.BaseURL = r.h.Endpoint()
	client.HTTPClient = transport.HTTPClient(rec)

	logger.ContextKV(ctx, xlog.DEBUG, "url", r.h.Endpoint(), "depth", r.depth)
	resp, err := tavilygo.Search(client, tavilyModels.SearchRequest{
		Query:         query,
		SearchDepth:   r.depth,
		IncludeAnswer: r.includeAnswer,
	})
	if rec.err != nil {
		return nil, rec.err
	}
	if err != nil {
		return nil, &llms.MalformedResponseError{Provider: r.h.Provider(), Reason: "search", Err: err}
	}
	return &SearchResult{
		Results: resp.Results,
		Answer:  resp.Answer,
	}, nil
}

// GetRelevantDocuments implements the llms.Retriever interface.
func (r *Retriever) GetRelevantDocuments(ctx context.Context, query string) ([]llms.Document, error) {
	res, err := r.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return res.Documents(), nil
}

// Documents returns the answer, if any, followed by one document per result.
func (r *SearchResult) Documents() []llms.Document {
	docs := make([]llms.Document, 0, len(r.Results)+1)
	if r.Answer != "" {
		docs = append(docs, llms.Document{
			PageContent: r.Answer,
			Metadata:    map[string]any{"answer": true},
			Score:       1,
		})
	}
	for _, res := range r.Results {
		docs = append(docs, llms.Document{
			PageContent: res.Content,
			Metadata: map[string]any{
				MetadataURL:   res.URL,
				MetadataTitle: res.Title,
			},
			Score: float32(res.Score),
		})
	}
	return docs
}

func (r *SearchResult) String() string {
	var buf bytes.Buffer
	if r.Answer != "" {
		fmt.Fprintf(&buf, "ANSWER: %s\n", r.Answer)
	}

	for _, result := range r.Results {
		fmt.Fprintf(&buf, "- URL: %s\n", result.URL)
		fmt.Fprintf(&buf, "  TITLE: %s\n", result.Title)
		fmt.Fprintf(&buf, "  SCORE: %f\n", result.Score)
		fmt.Fprintf(&buf, "  CONTENT: %s\n", result.Content)
	}

	return buf.String()
}

type recorder struct {
	ctx      context.Context
	doer     transport.Doer
	provider llms.ProviderType
	err      error
}

func (r *recorder) Do(req *http.Request) (*http.Response, error) {
	resp, err := transport.Do(r.doer, r.provider, req.WithContext(r.ctx))
	if err != nil {
		r.err = err
	}
	return resp, err
}
