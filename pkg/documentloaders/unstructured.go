package documentloaders

import (
	"context"
	"encoding/json"
	"mime"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/xlog"
)

// Partition strategies of the Unstructured API.
const (
	StrategyAuto  = "auto"
	StrategyFast  = "fast"
	StrategyHiRes = "hi_res"
	StrategyOCR   = "ocr_only"
)

// Unstructured loads files through the Unstructured partition API,
// one document per text element.
type Unstructured struct {
	h          *provider.Handle
	httpClient transport.Doer
	strategy   string
	languages  []string
}

// UnstructuredOption configures the Unstructured loader.
type UnstructuredOption func(*Unstructured)

// WithStrategy sets the partition strategy, auto by default.
func WithStrategy(strategy string) UnstructuredOption {
	return func(u *Unstructured) {
		u.strategy = strategy
	}
}

// WithLanguages sets the OCR languages, e.g. "eng".
func WithLanguages(languages ...string) UnstructuredOption {
	return func(u *Unstructured) {
		u.languages = languages
	}
}

// WithLoaderHTTPClient sets the HTTP client.
func WithLoaderHTTPClient(client transport.Doer) UnstructuredOption {
	return func(u *Unstructured) {
		u.httpClient = client
	}
}

// NewUnstructured returns a loader for the configured handle.
func NewUnstructured(h *provider.Handle, opts ...UnstructuredOption) (*Unstructured, error) {
	if h == nil {
		return nil, errors.New("client handle is required")
	}
	if h.Provider() != llms.ProviderUnstructured {
		return nil, &llms.InvalidOptionError{Provider: h.Provider(), Option: "provider", Value: h.Provider(), Reason: "expected UNSTRUCTURED"}
	}
	u := &Unstructured{
		h:          h,
		httpClient: transport.DefaultDoer,
		strategy:   StrategyAuto,
	}
	for _, opt := range opts {
		opt(u)
	}
	switch u.strategy {
	case StrategyAuto, StrategyFast, StrategyHiRes, StrategyOCR:
	default:
		return nil, &llms.InvalidOptionError{Provider: h.Provider(), Option: "strategy", Value: u.strategy, Reason: "must be auto, fast, hi_res or ocr_only"}
	}
	return u, nil
}

type element struct {
	Type      string         `json:"type"`
	ElementID string         `json:"element_id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
}

// Load uploads the file at source and returns its text elements.
func (u *Unstructured) Load(ctx context.Context, source string) ([]llms.Document, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", source)
	}
	if len(data) == 0 {
		return nil, &llms.UnsupportedInputError{Provider: u.h.Provider(), Input: "empty content", Reason: source + " is empty"}
	}

	fields := map[string]string{
		"strategy": u.strategy,
	}
	if len(u.languages) > 0 {
		js, _ := json.Marshal(u.languages)
		fields["languages"] = string(js)
	}
	headers := map[string]string{
		"unstructured-api-key": u.h.APIKey(),
	}
	file := transport.File{
		FieldName:   "files",
		FileName:    filepath.Base(source),
		ContentType: mime.TypeByExtension(filepath.Ext(source)),
		Data:        data,
	}

	logger.ContextKV(ctx, xlog.DEBUG, "url", u.h.Endpoint(), "file", file.FileName, "size", len(data), "strategy", u.strategy)
	raw, err := transport.PostMultipart(ctx, u.httpClient, u.h.Provider(), u.h.Endpoint(), headers, fields, file)
	if err != nil {
		return nil, err
	}
	return ParseElements(source, raw)
}

// ParseElements maps a partition response to documents,
// elements without text are skipped.
func ParseElements(source string, raw []byte) ([]llms.Document, error) {
	var elements []element
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderUnstructured, Reason: "decode elements", Err: err}
	}

	docs := make([]llms.Document, 0, len(elements))
	for _, el := range elements {
		if el.Text == "" {
			continue
		}
		md := make(map[string]any, len(el.Metadata)+3)
		for k, v := range el.Metadata {
			md[k] = v
		}
		md[MetadataSource] = source
		md[MetadataElementType] = el.Type
		md[MetadataElementID] = el.ElementID
		docs = append(docs, llms.Document{
			PageContent: el.Text,
			Metadata:    md,
		})
	}
	return docs, nil
}
