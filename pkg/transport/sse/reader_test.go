package sse

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type body struct {
	*strings.Reader
	closed bool
}

func (b *body) Close() error {
	b.closed = true
	return nil
}

func newBody(s string) *body {
	return &body{Reader: strings.NewReader(s)}
}

func TestReader_Next(t *testing.T) {
	t.Parallel()

	r := NewReader(newBody(": ping\n\nevent: message\nid: 1\ndata: first\n\ndata: line1\ndata: line2\n\ndata:nospace\n\n\n\ndata: [DONE]"))
	defer r.Close()

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, &Event{Event: "message", ID: "1", Data: "first"}, ev)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", ev.Data)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "nospace", ev.Data)

	// last event without a trailing blank line
	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "[DONE]", ev.Data)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReader_All(t *testing.T) {
	t.Parallel()

	b := newBody("data: a\n\ndata: b\n\ndata: c\n\n")
	var got []string
	for ev, err := range Events(b) {
		require.NoError(t, err)
		got = append(got, ev.Data)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.True(t, b.closed)

	// stop early
	b = newBody("data: a\n\ndata: b\n\n")
	for ev := range Events(b) {
		assert.Equal(t, "a", ev.Data)
		break
	}
	assert.True(t, b.closed)
}

func TestReader_Empty(t *testing.T) {
	t.Parallel()

	count := 0
	for range Events(newBody("")) {
		count++
	}
	assert.Equal(t, 0, count)
}
