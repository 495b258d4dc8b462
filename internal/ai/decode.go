package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

type EventKind int

const (
	// EventDelta carries one incremental fragment of assistant text.
	EventDelta EventKind = iota
	// EventEnd marks clean end-of-stream.
	EventEnd
	// EventMalformed carries a line that failed to parse; consumers drop it.
	EventMalformed
)

type Event struct {
	Kind EventKind
	Text string
	Raw  string
}

type streamEnvelope struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
}

// DecodeStream turns a chunked SSE-style body into an ordered event sequence.
// Lines prefixed "data:" carry a JSON envelope with an optional delta field;
// a missing or empty delta produces no event. Malformed envelopes are emitted
// as EventMalformed and never end the stream. The body is closed
// unconditionally, including when the consumer cancels ctx and abandons the
// channel mid-iteration.
//
// A read-level failure is reported on the error channel instead of EventEnd,
// so callers can distinguish a truncated stream from a finished one.
func DecodeStream(ctx context.Context, body io.ReadCloser) (<-chan Event, <-chan error) {
	events := make(chan Event, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)
		defer body.Close()

		emit := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		sc := bufio.NewScanner(body)
		// Partial lines span read boundaries; the scanner buffers them.
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				emit(Event{Kind: EventEnd})
				return
			}

			var env streamEnvelope
			if err := json.Unmarshal([]byte(data), &env); err != nil {
				if !emit(Event{Kind: EventMalformed, Raw: data}) {
					return
				}
				continue
			}
			if env.Type == "done" {
				emit(Event{Kind: EventEnd})
				return
			}
			if env.Delta == "" {
				continue
			}
			if !emit(Event{Kind: EventDelta, Text: env.Delta}) {
				return
			}
		}

		if err := sc.Err(); err != nil {
			errs <- err
			return
		}
		emit(Event{Kind: EventEnd})
	}()

	return events, errs
}
