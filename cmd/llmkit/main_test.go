package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/effective-security/llmkit/pkg/webapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string `json:"content"`
			Stream  bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Content == "slow down" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		if strings.HasPrefix(req.Content, "Summarize") {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"text": `{"title":"Go","summary":"Go is a programming language.","keywords":["go","language"]}`,
			})
			return
		}
		if req.Stream {
			_, _ = fmt.Fprintf(w, "{\"text\":%q}\n", req.Content)
			_, _ = fmt.Fprint(w, `{"text":" back","done":true,"stop_reason":"stop"}`+"\n")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":        req.Content + " back",
			"stop_reason": "stop",
			"usage":       map[string]any{"input_tokens": 3, "output_tokens": 2},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, endpoint string) string {
	t.Helper()
	cfg := fmt.Sprintf(`providers:
  - name: stub
    type: GENERIC
    endpoint: %s
    default_model: stub-echo
`, endpoint)
	path := filepath.Join(t.TempDir(), "llm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out, _, err := runWithStderr(t, stdin, args...)
	return out, err
}

func runWithStderr(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errw bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errw
	app.Reader = strings.NewReader(stdin)
	err := app.Run(append([]string{"llmkit"}, args...))
	return out.String(), errw.String(), err
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars(nil)
	require.NoError(t, err)
	assert.Nil(t, vars)

	vars, err = parseVars([]string{"name=World", " lang =Go=1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "World", "lang": "Go=1"}, vars)

	_, err = parseVars([]string{"name"})
	assert.EqualError(t, err, `invalid --var "name": expected key=value`)
	_, err = parseVars([]string{"=value"})
	assert.Error(t, err)
}

func TestGlobalFlags(t *testing.T) {
	_, err := run(t, "", "--log-level", "verbose", "providers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "verbose"`)

	_, err = run(t, "", "--output", "xml", "providers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid output "xml"`)
}

func TestProviders(t *testing.T) {
	out, err := run(t, "", "providers")
	require.NoError(t, err)
	assert.Contains(t, out, "GENERIC")
	assert.Contains(t, out, "OPENAI_API_KEY")

	out, err = run(t, "", "-o", "json", "providers")
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.NotEmpty(t, list)
}

func TestGenerate(t *testing.T) {
	cfg := writeConfig(t, stubServer(t).URL)

	out, err := run(t, "", "--config", cfg, "generate", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello back\n", out)

	out, err = run(t, "", "--config", cfg, "generate", "--var", "name=World", "--prompt", "Hello {{ .name }}")
	require.NoError(t, err)
	assert.Equal(t, "Hello World back\n", out)

	// prompt from stdin
	out, err = run(t, "Hello\n", "--config", cfg, "generate")
	require.NoError(t, err)
	assert.Equal(t, "Hello back\n", out)

	out, err = run(t, "", "--config", cfg, "-o", "json", "generate", "Hello")
	require.NoError(t, err)
	var res webapp.GenerateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Hello back", res.Text)
	assert.Equal(t, "generic", res.Provider)
	assert.Equal(t, "stub-echo", res.Model)
	assert.Equal(t, "stop", res.StopReason)

	out, err = run(t, "", "--config", cfg, "-o", "yaml", "generate", "Hello")
	require.NoError(t, err)
	assert.Contains(t, out, "text: Hello back\n")
	assert.Contains(t, out, "stop_reason: stop\n")

	_, err = run(t, "", "--config", cfg, "generate", "slow down")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	_, err = run(t, "", "--config", cfg, "generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "messages or prompt is required")

	_, err = run(t, "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "generate", "Hello")
	require.Error(t, err)
}

func TestGenerate_Verbose(t *testing.T) {
	cfg := writeConfig(t, stubServer(t).URL)

	out, stderr, err := runWithStderr(t, "", "--config", cfg, "--verbose", "generate", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello back\n", out)
	assert.Contains(t, stderr, "tokens: 3 in, 2 out, 5 total\n")
	assert.Contains(t, stderr, "invocations: 1, failed: 0")

	// usage is not printed without --verbose
	_, stderr, err = runWithStderr(t, "", "--config", cfg, "generate", "Hello")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "tokens:")
}

func TestOutput(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, outputYAML)
	require.NoError(t, p.value(webapp.GenerateResponse{Text: "hi", StopReason: "stop"}))
	assert.Contains(t, buf.String(), "stop_reason: stop\n")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	buf.Reset()
	p = newPrinter(&buf, outputJSON)
	require.NoError(t, p.value(map[string]string{"text": "hi"}))
	assert.Equal(t, "{\n\t\"text\": \"hi\"\n}\n", buf.String())

	// channels cannot be encoded
	assert.Error(t, p.value(make(chan int)))

	buf.Reset()
	p.reply("  Hello back\n\n")
	assert.Equal(t, "Hello back\n", buf.String())
}

func TestStream(t *testing.T) {
	cfg := writeConfig(t, stubServer(t).URL)

	out, err := run(t, "", "--config", cfg, "stream", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello back\n", out)

	out, err = run(t, "", "--config", cfg, "-o", "json", "stream", "Hello")
	require.NoError(t, err)
	var res webapp.GenerateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Hello back", res.Text)
	assert.Equal(t, "stop", res.StopReason)
}

func TestChat(t *testing.T) {
	cfg := writeConfig(t, stubServer(t).URL)

	out, err := run(t, "Hello\n\n/reset\nslow down\n/exit\nignored\n", "--config", cfg, "chat", "--chat-id", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Hello back\n", out)
}

func TestExtract(t *testing.T) {
	cfg := writeConfig(t, stubServer(t).URL)

	out, err := run(t, "", "--config", cfg, "-o", "json", "extract", "--mode", "json", "Go is a programming language.")
	require.NoError(t, err)
	var summary Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, Summary{
		Title:    "Go",
		Summary:  "Go is a programming language.",
		Keywords: []string{"go", "language"},
	}, summary)

	out, err = run(t, "", "--config", cfg, "extract", "--mode", "json", "Go is a programming language.")
	require.NoError(t, err)
	assert.Equal(t, "Go\n\nGo is a programming language.\n\nKeywords: go, language\n", out)

	_, err = run(t, "", "--config", cfg, "extract", "--mode", "xml", "text")
	require.Error(t, err)
}

func TestEmbed(t *testing.T) {
	cfg := writeConfig(t, stubServer(t).URL)

	_, err := run(t, "", "--config", cfg, "embed")
	assert.EqualError(t, err, "at least one text is required")

	_, err = run(t, "", "--config", cfg, "embed", "--model", "stub-echo", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not create embeddings")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first document"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("second document"), 0o600))

	out, err := run(t, "", "load", "--chunk-size", "0", dir)
	require.NoError(t, err)
	assert.Equal(t, "first document\n---\nsecond document\n", out)

	out, err = run(t, "", "-o", "json", "load", filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	var docs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "first document", docs[0]["page_content"])

	_, err = run(t, "", "load")
	assert.EqualError(t, err, "at least one path is required")
}

func TestSearch(t *testing.T) {
	cfg := writeConfig(t, stubServer(t).URL)

	_, err := run(t, "", "--config", cfg, "search")
	assert.EqualError(t, err, "query is required")

	_, err = run(t, "", "--config", cfg, "search", "golang")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider not found for type: TAVILY")
}
