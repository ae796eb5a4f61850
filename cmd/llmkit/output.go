package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llmutils"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// printer writes command results in the output format.
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) *printer {
	if format == "" {
		format = outputText
	}
	return &printer{w: w, format: format}
}

func (p *printer) text() bool {
	return p.format == outputText
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(s string) {
	fmt.Fprintln(p.w, s)
}

// reply prints a model reply on its own line.
func (p *printer) reply(s string) {
	fmt.Fprint(p.w, llmutils.EnsureEndsWithNewline(s))
}

// value prints v as YAML, or as indented JSON otherwise.
// YAML keys follow the json tags.
func (p *printer) value(v any) error {
	var s string
	if p.format == outputYAML {
		s = llmutils.ToYAML(v)
	} else {
		s = llmutils.ToJSONIndent(v)
	}
	if s == "" {
		return errors.Errorf("failed to encode output: %T", v)
	}
	_, err := fmt.Fprint(p.w, llmutils.EnsureEndsWithNewline(s))
	return errors.WithStack(err)
}
