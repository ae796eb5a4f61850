package documentloaders

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/xlog"
)

// DefaultTextExtensions are the file extensions read from directories.
var DefaultTextExtensions = []string{".txt", ".md", ".markdown", ".rst", ".csv", ".json", ".yaml", ".yml", ".html"}

// Text loads text files. A source is a file, a directory or a glob pattern.
// Every file becomes one document.
type Text struct {
	extensions []string
	recursive  bool
}

// TextOption configures the Text loader.
type TextOption func(*Text)

// WithExtensions sets the file extensions read from directories.
func WithExtensions(ext ...string) TextOption {
	return func(t *Text) {
		t.extensions = ext
	}
}

// WithRecursive walks sub-directories.
func WithRecursive(recursive bool) TextOption {
	return func(t *Text) {
		t.recursive = recursive
	}
}

// NewText returns a text file loader.
func NewText(opts ...TextOption) *Text {
	t := &Text{
		extensions: DefaultTextExtensions,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load reads the files of source. It fails with UnsupportedInputError when
// no file matches or a file is not text.
func (t *Text) Load(ctx context.Context, source string) ([]llms.Document, error) {
	files, err := t.files(source)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &llms.UnsupportedInputError{Input: source, Reason: "no text files found"}
	}

	docs := make([]llms.Document, 0, len(files))
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to read %s", name)
		}
		ct := http.DetectContentType(data)
		if !isText(ct) {
			return nil, &llms.UnsupportedInputError{Input: ct, Reason: name + " is not a text file"}
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			logger.ContextKV(ctx, xlog.DEBUG, "reason", "empty", "file", name)
			continue
		}
		docs = append(docs, llms.Document{
			PageContent: string(data),
			Metadata: map[string]any{
				MetadataSource:      name,
				MetadataContentType: ct,
			},
		})
	}
	return docs, nil
}

func (t *Text) files(source string) ([]string, error) {
	if strings.ContainsAny(source, "*?[") {
		matches, err := filepath.Glob(source)
		if err != nil {
			return nil, &llms.UnsupportedInputError{Input: source, Reason: err.Error()}
		}
		return matches, nil
	}

	fi, err := os.Stat(source)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !fi.IsDir() {
		return []string{source}, nil
	}

	var files []string
	err = filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != source && !t.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if slices.Contains(t.extensions, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return files, nil
}

func isText(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") ||
		strings.HasPrefix(contentType, "application/json")
}
