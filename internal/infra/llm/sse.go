package llm

import (
	"bufio"
	"io"
	"strings"
)

// sseEvent is one server-sent event: the event name (may be empty for
// unnamed events) and the concatenated data payload.
type sseEvent struct {
	name string
	data string
}

// sseReader incrementally parses a text/event-stream body. All three
// provider streaming APIs speak SSE, so the adapters share this one
// reader instead of each scanning lines themselves.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	sc := bufio.NewScanner(r)
	// Deltas are small but a single event can carry a whole buffered
	// response; allow up to 1 MiB per line.
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseReader{scanner: sc}
}

// next returns the following event, or io.EOF when the stream is done.
func (r *sseReader) next() (sseEvent, error) {
	var ev sseEvent
	var data []string

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if len(data) > 0 || ev.name != "" {
				ev.data = strings.Join(data, "\n")
				return ev, nil
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// Comment lines (":") and unknown fields are ignored.
	}

	if err := r.scanner.Err(); err != nil {
		return sseEvent{}, err
	}
	if len(data) > 0 || ev.name != "" {
		ev.data = strings.Join(data, "\n")
		return ev, nil
	}
	return sseEvent{}, io.EOF
}
