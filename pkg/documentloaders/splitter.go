package documentloaders

import (
	"maps"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/tmc/langchaingo/textsplitter"
)

// Default chunking of the splitter.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Splitter splits documents into overlapping chunks, first on paragraphs,
// then lines, then words.
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
}

// NewSplitter returns a splitter with chunks of at most size characters
// that share overlap characters with the previous chunk.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, &llms.InvalidOptionError{Option: "chunk_size", Value: size, Reason: "must be positive"}
	}
	if overlap < 0 || overlap >= size {
		return nil, &llms.InvalidOptionError{Option: "chunk_overlap", Value: overlap, Reason: "must be less than chunk_size"}
	}
	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}, nil
}

// SplitText splits text into chunks.
func (s *Splitter) SplitText(text string) ([]string, error) {
	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, errors.Wrap(err, "failed to split text")
	}
	return chunks, nil
}

// SplitDocuments splits every document, chunks keep the metadata of their
// document and the chunk index.
func (s *Splitter) SplitDocuments(docs []llms.Document) ([]llms.Document, error) {
	var res []llms.Document
	for _, doc := range docs {
		chunks, err := s.SplitText(doc.PageContent)
		if err != nil {
			return nil, err
		}
		for i, chunk := range chunks {
			md := maps.Clone(doc.Metadata)
			if md == nil {
				md = map[string]any{}
			}
			md[MetadataChunk] = i
			res = append(res, llms.Document{
				PageContent: chunk,
				Metadata:    md,
			})
		}
	}
	return res, nil
}
