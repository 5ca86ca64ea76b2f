// Package uploadclient drives admin bulk uploads against the server:
// it posts files, consumes the SSE progress stream incrementally, and
// aggregates multi-file progress into one percentage.
package uploadclient

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
)

// ErrConnectionLost is returned when the stream ends without a terminal
// complete or error event. That is never a silent success.
var ErrConnectionLost = errors.New("connection lost during upload")

const dataPrefix = "data: "

// Events receives decoded stream events. Any callback may be nil.
type Events struct {
	OnProgress func(processed, total, successCount, failureCount int, message string)
	OnComplete func(totalCount, successCount, failureCount int, message string)
	OnError    func(message string)
}

// envelope covers all event kinds; Type selects which fields are set.
type envelope struct {
	Type         string `json:"type"`
	Processed    int    `json:"processed"`
	Total        int    `json:"total"`
	SuccessCount int    `json:"successCount"`
	FailureCount int    `json:"failureCount"`
	TotalCount   int    `json:"totalCount"`
	Message      string `json:"message"`
}

// Consume reads the stream and dispatches events. Network chunks may
// split an event anywhere, including inside the JSON payload, so a
// rolling buffer holds the final (possibly incomplete) line until the
// next chunk completes it. A line that fails to parse is logged and
// skipped; one malformed event must not corrupt the rest of the stream.
// Consume returns once a terminal event was dispatched, or
// ErrConnectionLost if the transport ends without one.
func Consume(r io.Reader, ev Events) error {
	buf := make([]byte, 4096)
	var pending string

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			pending += string(buf[:n])
			lines := strings.Split(pending, "\n")
			pending = lines[len(lines)-1] // incomplete tail, keep for next chunk

			for _, line := range lines[:len(lines)-1] {
				if dispatch(line, ev) {
					return nil
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return ErrConnectionLost
			}
			return readErr
		}
	}
}

// dispatch handles one complete line and reports whether it was a
// terminal event.
func dispatch(line string, ev Events) bool {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return false
	}

	var e envelope
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, dataPrefix)), &e); err != nil {
		log.Printf("[upload] skipping malformed event line: %v", err)
		return false
	}

	switch e.Type {
	case "progress":
		if ev.OnProgress != nil {
			ev.OnProgress(e.Processed, e.Total, e.SuccessCount, e.FailureCount, e.Message)
		}
		return false
	case "complete":
		if ev.OnComplete != nil {
			ev.OnComplete(e.TotalCount, e.SuccessCount, e.FailureCount, e.Message)
		}
		return true
	case "error":
		if ev.OnError != nil {
			ev.OnError(e.Message)
		}
		return true
	default:
		log.Printf("[upload] skipping event with unknown type %q", e.Type)
		return false
	}
}
