package transport

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
)

// File is a file to upload in a multipart request.
type File struct {
	// FieldName is the form field name, e.g. "files".
	FieldName string
	// FileName is the file name sent to the server.
	FileName string
	// ContentType is the MIME type, application/octet-stream if empty.
	ContentType string
	Data        []byte
}

// EncodeMultipart builds a multipart/form-data body and returns it with its content type.
func EncodeMultipart(fields map[string]string, files ...File) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", errors.WithStack(err)
		}
	}

	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			`form-data; name="`+escapeQuotes(f.FieldName)+`"; filename="`+escapeQuotes(f.FileName)+`"`)
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		header.Set("Content-Type", ct)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", errors.WithStack(err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", errors.WithStack(err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.WithStack(err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// PostMultipart uploads files with form fields and returns the response body.
func PostMultipart(ctx context.Context, doer Doer, provider llms.ProviderType, url string, headers map[string]string, fields map[string]string, files ...File) ([]byte, error) {
	body, contentType, err := EncodeMultipart(fields, files...)
	if err != nil {
		return nil, err
	}

	h := make(map[string]string, len(headers)+2)
	for k, v := range headers {
		h[k] = v
	}
	h["Content-Type"] = contentType
	if h["Accept"] == "" {
		h["Accept"] = "application/json"
	}

	req, err := NewRequest(ctx, http.MethodPost, url, bytes.NewReader(body), h)
	if err != nil {
		return nil, err
	}
	resp, err := Do(doer, provider, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llms.TransportError{Provider: provider, Op: "read", URL: req.URL.Redacted(), Err: err}
	}
	return raw, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
