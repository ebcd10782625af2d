package translate

import (
	"bufio"
	"io"
	"strings"
)

// Event is one parsed server-sent event: an optional Anthropic-style "event:"
// line and its "data:" payload. OpenAI events carry no Event field.
type Event struct {
	Event string
	Data  string
}

// EventReader pulls one SSE event at a time from an upstream byte stream, so
// a streaming translator never buffers more than one event of back-pressure.
type EventReader struct {
	scanner *bufio.Scanner
}

// NewEventReader wraps r for pull-based SSE event reading.
func NewEventReader(r io.Reader) *EventReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	return &EventReader{scanner: scanner}
}

// Next returns the next event, or io.EOF once the stream is exhausted.
// Comment lines (":") and blank-only noise are skipped transparently.
func (e *EventReader) Next() (Event, error) {
	var event, data strings.Builder
	haveData := false

	for e.scanner.Scan() {
		line := e.scanner.Text()

		if line == "" {
			if haveData {
				return Event{Event: event.String(), Data: data.String()}, nil
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// comment, ignore
		case strings.HasPrefix(line, "event:"):
			event.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "event:")))
		case strings.HasPrefix(line, "data:"):
			if haveData {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			haveData = true
		}
	}

	if err := e.scanner.Err(); err != nil {
		return Event{}, err
	}
	if haveData {
		return Event{Event: event.String(), Data: data.String()}, nil
	}
	return Event{}, io.EOF
}

// EncodeOpenAI renders a bare OpenAI-style SSE frame: "data: <payload>\n\n".
func EncodeOpenAI(payload string) []byte {
	return []byte("data: " + payload + "\n\n")
}

// EncodeAnthropic renders an Anthropic-style SSE frame with an explicit
// event type line: "event: <type>\ndata: <payload>\n\n".
func EncodeAnthropic(eventType, payload string) []byte {
	return []byte("event: " + eventType + "\ndata: " + payload + "\n\n")
}

// doneMarker is OpenAI's literal stream terminator line.
const doneMarker = "[DONE]"
