// Package sse reads Server-Sent Events streams.
package sse

import (
	"bufio"
	"io"
	"iter"
	"strings"
)

// maxLineSize is the longest line accepted in a stream.
const maxLineSize = 1024 * 1024

// Event is a single server-sent event.
type Event struct {
	// Event is the event type from the "event:" line, empty for data-only events.
	Event string
	// Data is the payload from "data:" lines, joined with newlines.
	Data string
	// ID is the event ID from the "id:" line.
	ID string
}

// Reader reads events from a stream.
type Reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

// NewReader returns a Reader over body.
func NewReader(body io.ReadCloser) *Reader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{
		scanner: scanner,
		body:    body,
	}
}

// Next returns the next event, or io.EOF when the stream ends.
func (r *Reader) Next() (*Event, error) {
	var event Event
	var hasData bool

	for r.scanner.Scan() {
		line := r.scanner.Text()

		// blank line ends the event
		if line == "" {
			if hasData {
				return &event, nil
			}
			continue
		}

		// comment
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				event.Data += "\n" + value
			} else {
				event.Data = value
				hasData = true
			}
		case "event":
			event.Event = value
		case "id":
			event.ID = value
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// stream ended without a trailing blank line
	if hasData {
		return &event, nil
	}
	return nil, io.EOF
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	return r.body.Close()
}

// All returns the events of the stream. The stream is closed when the
// sequence ends or the caller stops iterating.
func (r *Reader) All() iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		defer r.Close()
		for {
			ev, err := r.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Events is a shortcut for NewReader(body).All().
func Events(body io.ReadCloser) iter.Seq2[*Event, error] {
	return NewReader(body).All()
}

func parseLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	// a single leading space is not part of the value
	if value != "" && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}
