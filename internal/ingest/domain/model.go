package domain

import (
	"github.com/infradash/infradash-backend/internal/projects/domain"
)

// RawRecord is one element of the uploaded payload before validation.
// Values are whatever the JSON decoder produced; numeric fields arrive
// as json.Number because the payload is decoded with UseNumber.
type RawRecord map[string]interface{}

// ValidationFailure captures why one record was rejected. It is data,
// never a panic: one bad record must not abort its batch.
type ValidationFailure struct {
	Index      int      `json:"index"`
	ContractID string   `json:"contractId,omitempty"`
	Errors     []string `json:"errors"`
}

// Outcome is the result of validating one raw record: exactly one of
// Project or Failure is set.
type Outcome struct {
	Project *domain.Project
	Failure *ValidationFailure
}

// JobState is the in-memory progress of one upload. It is created once
// the payload parses, mutated once per batch, and discarded when the
// response stream ends. There is no job ID and no persistence.
type JobState struct {
	Total        int
	Processed    int
	SuccessCount int
	FailureCount int
}

// Event kinds on the progress stream.
const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// ProgressEvent is the wire shape of a per-batch update.
type ProgressEvent struct {
	Type         string `json:"type"`
	Processed    int    `json:"processed"`
	Total        int    `json:"total"`
	SuccessCount int    `json:"successCount"`
	FailureCount int    `json:"failureCount"`
	Message      string `json:"message"`
}

// CompleteEvent is the wire shape of the terminal success event.
type CompleteEvent struct {
	Type         string `json:"type"`
	TotalCount   int    `json:"totalCount"`
	SuccessCount int    `json:"successCount"`
	FailureCount int    `json:"failureCount"`
	Message      string `json:"message"`
}

// ErrorEvent is the wire shape of the terminal failure event.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
