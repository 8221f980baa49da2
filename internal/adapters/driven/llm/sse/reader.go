// Package sse reads server-sent event streams returned by hosted LLM APIs.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event is one dispatched server-sent event.
type Event struct {
	// Name is the "event:" field, empty for unnamed events.
	Name string

	// Data is the concatenated "data:" lines.
	Data string
}

// Reader yields events from an SSE body.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next event. It returns io.EOF when the stream ends
// without a pending event.
func (r *Reader) Next() (Event, error) {
	var ev Event
	var data []string
	pending := false

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if pending {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	if pending {
		ev.Data = strings.Join(data, "\n")
		return ev, nil
	}
	return Event{}, io.EOF
}
