package documentloaders_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/documentloaders"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestText(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "Hello")
	writeFile(t, dir, "b.md", "# Title\n\nbody")
	writeFile(t, dir, "empty.txt", "  \n")
	writeFile(t, dir, "skip.bin", "ignored")
	writeFile(t, dir, "sub/c.txt", "nested")

	l := documentloaders.NewText()

	docs, err := l.Load(ctx, a)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Hello", docs[0].PageContent)
	assert.Equal(t, a, docs[0].Metadata[documentloaders.MetadataSource])
	assert.Equal(t, "text/plain; charset=utf-8", docs[0].Metadata[documentloaders.MetadataContentType])

	docs, err = l.Load(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = documentloaders.NewText(documentloaders.WithRecursive(true)).Load(ctx, dir)
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	docs, err = l.Load(ctx, filepath.Join(dir, "*.md"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].PageContent, "# Title")
}

func TestText_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	l := documentloaders.NewText()

	var uie *llms.UnsupportedInputError

	_, err := l.Load(ctx, filepath.Join(dir, "*.txt"))
	require.True(t, errors.As(err, &uie))
	assert.Equal(t, "no text files found", uie.Reason)

	png := writeFile(t, dir, "img.txt", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	_, err = l.Load(ctx, png)
	require.True(t, errors.As(err, &uie))
	assert.Equal(t, "image/png", uie.Input)

	_, err = l.Load(ctx, filepath.Join(dir, "missing.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

const elements = `[
  {"type":"Title","element_id":"e1","text":"Report","metadata":{"filename":"report.pdf","page_number":1}},
  {"type":"PageBreak","element_id":"e2","text":"","metadata":{}},
  {"type":"NarrativeText","element_id":"e3","text":"Revenue grew.","metadata":{"filename":"report.pdf","page_number":2}}
]`

func TestUnstructured(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("unstructured-api-key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, documentloaders.StrategyFast, r.FormValue("strategy"))
		assert.Equal(t, `["eng"]`, r.FormValue("languages"))

		f, fh, err := r.FormFile("files")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "report.pdf", fh.Filename)
		body, _ := io.ReadAll(f)
		assert.Equal(t, "%PDF-1.4", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(elements))
	}))
	defer srv.Close()

	h, err := provider.Configure(provider.Unstructured, provider.Credentials{APIKey: "key"}, srv.URL, provider.Options{}, nil)
	require.NoError(t, err)

	l, err := documentloaders.NewUnstructured(h,
		documentloaders.WithStrategy(documentloaders.StrategyFast),
		documentloaders.WithLanguages("eng"),
		documentloaders.WithLoaderHTTPClient(srv.Client()))
	require.NoError(t, err)

	file := writeFile(t, t.TempDir(), "report.pdf", "%PDF-1.4")
	docs, err := l.Load(context.Background(), file)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Report", docs[0].PageContent)
	assert.Equal(t, "Title", docs[0].Metadata[documentloaders.MetadataElementType])
	assert.Equal(t, "Revenue grew.", docs[1].PageContent)
	assert.EqualValues(t, 2, docs[1].Metadata[documentloaders.MetadataPageNumber])
	assert.Equal(t, file, docs[1].Metadata[documentloaders.MetadataSource])
}

func TestUnstructured_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	status := http.StatusUnauthorized
	body := `{"detail":"API key is invalid"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := provider.Configure(provider.Unstructured, provider.Credentials{}, srv.URL, provider.Options{}, provider.Env{})
	var mce *llms.MissingCredentialsError
	require.True(t, errors.As(err, &mce))

	h, err := provider.Configure(provider.Unstructured, provider.Credentials{APIKey: "bad"}, srv.URL, provider.Options{}, nil)
	require.NoError(t, err)

	_, err = documentloaders.NewUnstructured(h, documentloaders.WithStrategy("magic"))
	var ioe *llms.InvalidOptionError
	require.True(t, errors.As(err, &ioe))

	l, err := documentloaders.NewUnstructured(h, documentloaders.WithLoaderHTTPClient(srv.Client()))
	require.NoError(t, err)

	file := writeFile(t, t.TempDir(), "a.txt", "text")
	_, err = l.Load(ctx, file)
	assert.Equal(t, http.StatusUnauthorized, llms.StatusCode(err))
	assert.False(t, llms.IsRetryable(err))

	_, err = documentloaders.ParseElements("x", []byte(`{"not":"a list"}`))
	var mre *llms.MalformedResponseError
	assert.True(t, errors.As(err, &mre))

	var uie *llms.UnsupportedInputError
	_, err = l.Load(ctx, writeFile(t, t.TempDir(), "empty.txt", ""))
	assert.True(t, errors.As(err, &uie))
}

func TestSplitter(t *testing.T) {
	t.Parallel()

	_, err := documentloaders.NewSplitter(0, 0)
	assert.Error(t, err)
	_, err = documentloaders.NewSplitter(10, 10)
	assert.Error(t, err)

	s, err := documentloaders.NewSplitter(20, 5)
	require.NoError(t, err)

	text := strings.Repeat("word ", 20)
	chunks, err := s.SplitText(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 20)
	}

	docs, err := s.SplitDocuments([]llms.Document{
		{PageContent: text, Metadata: map[string]any{"source": "a.txt"}},
		{PageContent: "short"},
	})
	require.NoError(t, err)
	require.Len(t, docs, len(chunks)+1)
	assert.Equal(t, "a.txt", docs[0].Metadata["source"])
	assert.Equal(t, 1, docs[1].Metadata[documentloaders.MetadataChunk])
	last := docs[len(docs)-1]
	assert.Equal(t, "short", last.PageContent)
	assert.Equal(t, 0, last.Metadata[documentloaders.MetadataChunk])
}
