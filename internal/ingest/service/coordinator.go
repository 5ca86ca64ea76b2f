// Package service drives one bulk upload end-to-end: parse the payload,
// validate and persist records in fixed-size batches, and report
// progress on the response stream after every batch.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	ingest "github.com/infradash/infradash-backend/internal/ingest/domain"
	"github.com/infradash/infradash-backend/internal/ingest/validator"
	"github.com/infradash/infradash-backend/internal/projects/domain"
)

// ErrEmptyPayload is returned when the upload parses to zero records.
var ErrEmptyPayload = errors.New("payload contains no records")

// Persister stores one batch of canonical projects and reports how many
// were actually stored. One attempt per batch; the coordinator never
// retries.
type Persister interface {
	StoreMany(ctx context.Context, projects []domain.Project) (int, error)
}

// Emitter writes progress, completion, and error events to the open
// stream. A returned error means the transport died.
type Emitter interface {
	Progress(state ingest.JobState, message string) error
	Complete(state ingest.JobState, message string) error
	Error(message string) error
}

// CacheInvalidator drops cached read views once an upload completes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Coordinator owns the batch loop for one upload. Batches run strictly
// in order: batch N's failure accounting must be visible before batch
// N+1's progress event.
type Coordinator struct {
	persister   Persister
	invalidator CacheInvalidator
	batchSize   int
	batchDelay  time.Duration
}

func NewCoordinator(persister Persister, invalidator CacheInvalidator, batchSize int, batchDelay time.Duration) *Coordinator {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Coordinator{
		persister:   persister,
		invalidator: invalidator,
		batchSize:   batchSize,
		batchDelay:  batchDelay,
	}
}

// ParseRecords decodes the uploaded body into a record list. A single
// object is treated as a one-element list. Numbers are decoded with
// UseNumber so monetary values survive as exact decimal strings. A
// structurally invalid payload returns an error; no job exists yet and
// the caller responds with a plain HTTP error instead of a stream.
func ParseRecords(r io.Reader) ([]ingest.RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	var records []ingest.RawRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&records); err == nil {
		if len(records) == 0 {
			return nil, ErrEmptyPayload
		}
		return records, nil
	}

	var single ingest.RawRecord
	dec = json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&single); err == nil {
		return []ingest.RawRecord{single}, nil
	}

	return nil, fmt.Errorf("payload is not a JSON object or array of objects")
}

// Run processes records through the validate/persist batch loop,
// emitting a progress event per batch and a terminal event at the end.
// The returned error is non-nil only when the stream itself failed; in
// that case no further batches were attempted. Validation and persist
// failures are counted, not returned.
func (c *Coordinator) Run(ctx context.Context, records []ingest.RawRecord, emit Emitter) (ingest.JobState, error) {
	state := ingest.JobState{Total: len(records)}

	for start := 0; start < len(records); start += c.batchSize {
		end := start + c.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		if err := ctx.Err(); err != nil {
			log.Printf("[ingest] upload aborted before batch %d-%d: %v", start, end, err)
			return state, err
		}

		c.processBatch(ctx, batch, start, &state)

		if err := emit.Progress(state, fmt.Sprintf("processed %d of %d records", state.Processed, state.Total)); err != nil {
			// client disconnected; stop burning CPU and store writes
			log.Printf("[ingest] progress write failed after %d/%d records: %v", state.Processed, state.Total, err)
			return state, err
		}

		// yield so the transport flushes incrementally instead of
		// buffering the whole job into one final burst
		if c.batchDelay > 0 && end < len(records) {
			select {
			case <-ctx.Done():
				return state, ctx.Err()
			case <-time.After(c.batchDelay):
			}
		}
	}

	if c.invalidator != nil {
		if err := c.invalidator.Invalidate(ctx); err != nil {
			log.Printf("[ingest] cache invalidation failed: %v", err)
		}
	}

	msg := fmt.Sprintf("upload complete: %d stored, %d failed", state.SuccessCount, state.FailureCount)
	if err := emit.Complete(state, msg); err != nil {
		return state, err
	}
	return state, nil
}

// processBatch validates and persists one batch, updating counters.
// Nothing escapes: an unexpected panic counts the whole batch as failed
// and the job moves on.
func (c *Coordinator) processBatch(ctx context.Context, batch []ingest.RawRecord, offset int, state *ingest.JobState) {
	counted := 0 // records of this batch already reflected in the counters
	defer func() {
		if r := recover(); r != nil {
			// count every record not yet accounted for in this batch as failed
			if remaining := len(batch) - counted; remaining > 0 {
				state.FailureCount += remaining
			}
			state.Processed = offset + len(batch)
			log.Printf("[ingest] batch at offset %d panicked: %v", offset, r)
		}
	}()

	valid := make([]domain.Project, 0, len(batch))
	for i, rec := range batch {
		outcome := validator.Validate(rec, offset+i)
		if outcome.Failure != nil {
			state.FailureCount++
			counted++
			log.Printf("[ingest] record %d (%s) rejected: %v",
				outcome.Failure.Index, outcome.Failure.ContractID, outcome.Failure.Errors)
			continue
		}
		valid = append(valid, *outcome.Project)
	}

	if len(valid) > 0 {
		stored, err := c.persister.StoreMany(ctx, valid)
		if err != nil {
			log.Printf("[ingest] batch at offset %d persist failed: %v", offset, err)
		}
		state.SuccessCount += stored
		counted += stored
		if stored < len(valid) {
			state.FailureCount += len(valid) - stored
			counted += len(valid) - stored
		}
	}

	state.Processed = offset + len(batch)
}
