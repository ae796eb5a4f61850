// Package documentloaders loads documents from local files and from the
// Unstructured partition API, and splits them into chunks for embedding.
package documentloaders

import (
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit/pkg", "documentloaders")

// Metadata keys set on loaded documents.
const (
	MetadataSource      = "source"
	MetadataContentType = "content_type"
	MetadataElementType = "element_type"
	MetadataElementID   = "element_id"
	MetadataPageNumber  = "page_number"
	MetadataChunk       = "chunk"
)

var (
	_ llms.DocumentLoader = (*Text)(nil)
	_ llms.DocumentLoader = (*Unstructured)(nil)
)
