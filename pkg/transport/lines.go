package transport

import (
	"bufio"
	"bytes"
	"io"
	"iter"
)

// maxLineSize is the longest line accepted in a stream.
const maxLineSize = 1024 * 1024

// Lines returns the non-empty lines of a newline-delimited JSON stream.
// The body is closed when the sequence ends or the caller stops.
func Lines(body io.ReadCloser) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			if !yield(bytes.Clone(line), nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, err)
		}
	}
}
