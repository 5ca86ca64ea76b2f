// Package sse frames upload progress as Server-Sent Events. Each event
// is one `data: <JSON>` line followed by a blank line, flushed
// immediately so the client sees updates without buffering delay.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/infradash/infradash-backend/internal/ingest/domain"
)

// Emitter writes discrete events onto an open response stream. A write
// error means the transport died (client disconnect); callers must stop
// emitting and stop processing.
type Emitter struct {
	w       io.Writer
	flusher http.Flusher
}

// New builds an Emitter over w. flusher may be nil in tests; on a real
// response writer it must be the writer's http.Flusher.
func New(w io.Writer, flusher http.Flusher) *Emitter {
	return &Emitter{w: w, flusher: flusher}
}

// Progress emits a per-batch update from the current job state.
func (e *Emitter) Progress(state domain.JobState, message string) error {
	return e.send(domain.ProgressEvent{
		Type:         domain.EventProgress,
		Processed:    state.Processed,
		Total:        state.Total,
		SuccessCount: state.SuccessCount,
		FailureCount: state.FailureCount,
		Message:      message,
	})
}

// Complete emits the terminal success event with final totals.
func (e *Emitter) Complete(state domain.JobState, message string) error {
	return e.send(domain.CompleteEvent{
		Type:         domain.EventComplete,
		TotalCount:   state.Total,
		SuccessCount: state.SuccessCount,
		FailureCount: state.FailureCount,
		Message:      message,
	})
}

// Error emits the terminal failure event.
func (e *Emitter) Error(message string) error {
	return e.send(domain.ErrorEvent{Type: domain.EventError, Message: message})
}

func (e *Emitter) send(event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
