package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingest "github.com/infradash/infradash-backend/internal/ingest/domain"
	"github.com/infradash/infradash-backend/internal/projects/domain"
)

type fakePersister struct {
	calls   int
	batches [][]domain.Project
	stored  map[string]domain.Project
	failOn  int // 1-based call index that fails wholesale; 0 = never
	shortBy int // store this many fewer than submitted, every call
}

func newFakePersister() *fakePersister {
	return &fakePersister{stored: make(map[string]domain.Project)}
}

func (f *fakePersister) StoreMany(_ context.Context, projects []domain.Project) (int, error) {
	f.calls++
	f.batches = append(f.batches, projects)
	if f.failOn > 0 && f.calls == f.failOn {
		return 0, errors.New("store unavailable")
	}
	n := len(projects) - f.shortBy
	if n < 0 {
		n = 0
	}
	for _, p := range projects[:n] {
		f.stored[p.ContractID] = p
	}
	return n, nil
}

type collectEmitter struct {
	progress  []ingest.JobState
	completes []ingest.JobState
	errors    []string
	failAfter int // 1-based write index at which every write starts failing
	writes    int
}

func (e *collectEmitter) write() error {
	e.writes++
	if e.failAfter > 0 && e.writes >= e.failAfter {
		return errors.New("write event: broken pipe")
	}
	return nil
}

func (e *collectEmitter) Progress(s ingest.JobState, _ string) error {
	if err := e.write(); err != nil {
		return err
	}
	e.progress = append(e.progress, s)
	return nil
}

func (e *collectEmitter) Complete(s ingest.JobState, _ string) error {
	if err := e.write(); err != nil {
		return err
	}
	e.completes = append(e.completes, s)
	return nil
}

func (e *collectEmitter) Error(msg string) error {
	if err := e.write(); err != nil {
		return err
	}
	e.errors = append(e.errors, msg)
	return nil
}

type panickingPersister struct {
	inner   *fakePersister
	panicOn int // 1-based call index that panics
	calls   int
}

func (p *panickingPersister) StoreMany(ctx context.Context, projects []domain.Project) (int, error) {
	p.calls++
	if p.calls == p.panicOn {
		panic("store exploded")
	}
	return p.inner.StoreMany(ctx, projects)
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) Invalidate(context.Context) error {
	f.calls++
	return nil
}

func makeRecord(id string) ingest.RawRecord {
	return ingest.RawRecord{
		"contractId":                 id,
		"contractName":               "Road Upgrading " + id,
		"contractor":                 "ACME Builders Corp.",
		"implementingOffice":         "Region V Regional Office",
		"contractCost":               json.Number("1000000"),
		"contractEffectivityDate":    "2024-01-01",
		"contractExpiryDate":         "2024-12-31",
		"status":                     "On-Going",
		"accomplishmentInPercentage": json.Number("40"),
		"region":                     "Region V",
	}
}

func makeRecords(n int) []ingest.RawRecord {
	out := make([]ingest.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, makeRecord(fmt.Sprintf("24Z%05d", i)))
	}
	return out
}

func TestParseRecords(t *testing.T) {
	t.Run("array payload", func(t *testing.T) {
		records, err := ParseRecords(strings.NewReader(`[{"contractId":"a"},{"contractId":"b"}]`))
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("single object behaves as a one-element list", func(t *testing.T) {
		records, err := ParseRecords(strings.NewReader(`{"contractId":"a"}`))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "a", records[0]["contractId"])
	})

	t.Run("numbers survive as json.Number", func(t *testing.T) {
		records, err := ParseRecords(strings.NewReader(`[{"contractCost":12500000.50}]`))
		require.NoError(t, err)
		assert.Equal(t, json.Number("12500000.50"), records[0]["contractCost"])
	})

	t.Run("structural garbage is an error", func(t *testing.T) {
		_, err := ParseRecords(strings.NewReader(`this is not json`))
		require.Error(t, err)
	})

	t.Run("empty array is rejected", func(t *testing.T) {
		_, err := ParseRecords(strings.NewReader(`[]`))
		assert.ErrorIs(t, err, ErrEmptyPayload)
	})
}

func TestRun_AllValid(t *testing.T) {
	persister := newFakePersister()
	inv := &fakeInvalidator{}
	c := NewCoordinator(persister, inv, 100, 0)
	emit := &collectEmitter{}

	state, err := c.Run(context.Background(), makeRecords(250), emit)
	require.NoError(t, err)

	assert.Equal(t, 250, state.Total)
	assert.Equal(t, 250, state.Processed)
	assert.Equal(t, 250, state.SuccessCount)
	assert.Equal(t, 0, state.FailureCount)
	assert.Equal(t, state.Total, state.SuccessCount+state.FailureCount)

	require.Len(t, emit.progress, 3, "one progress event per batch")
	assert.Equal(t, 100, emit.progress[0].Processed)
	assert.Equal(t, 200, emit.progress[1].Processed)
	assert.Equal(t, 250, emit.progress[2].Processed)
	require.Len(t, emit.completes, 1)

	require.Len(t, persister.batches, 3)
	assert.Len(t, persister.batches[0], 100)
	assert.Len(t, persister.batches[2], 50)

	assert.Equal(t, 1, inv.calls, "cache invalidated once on completion")
}

func TestRun_InvalidRecordCounted(t *testing.T) {
	records := makeRecords(100)
	delete(records[42], "contractId")

	persister := newFakePersister()
	c := NewCoordinator(persister, nil, 100, 0)
	emit := &collectEmitter{}

	state, err := c.Run(context.Background(), records, emit)
	require.NoError(t, err)

	assert.Equal(t, 99, state.SuccessCount)
	assert.Equal(t, 1, state.FailureCount)
	assert.Len(t, persister.batches[0], 99, "the 99 valid records are persisted")
}

func TestRun_PersistFailureCountsWholeBatch(t *testing.T) {
	persister := newFakePersister()
	persister.failOn = 1
	c := NewCoordinator(persister, nil, 100, 0)
	emit := &collectEmitter{}

	state, err := c.Run(context.Background(), makeRecords(250), emit)
	require.NoError(t, err, "a failed batch must not abort the job")

	assert.Equal(t, 100, state.FailureCount, "the whole first batch counts as failed")
	assert.Equal(t, 150, state.SuccessCount)
	assert.Equal(t, 3, persister.calls, "later batches still run")
	require.Len(t, emit.completes, 1)
	assert.Equal(t, state.Total, state.SuccessCount+state.FailureCount)
}

func TestRun_PanickingPersistCountsBatchOnce(t *testing.T) {
	// a batch that dies unexpectedly counts each of its records as
	// failed exactly once, including records already rejected by
	// validation before the panic
	records := makeRecords(10)
	delete(records[3], "contractId")

	persister := &panickingPersister{inner: newFakePersister(), panicOn: 1}
	c := NewCoordinator(persister, nil, 10, 0)
	emit := &collectEmitter{}

	state, err := c.Run(context.Background(), records, emit)
	require.NoError(t, err, "a panicking batch must not abort the job")

	assert.Equal(t, 10, state.Total)
	assert.Equal(t, 0, state.SuccessCount)
	assert.Equal(t, 10, state.FailureCount)
	assert.Equal(t, state.Total, state.SuccessCount+state.FailureCount)
	require.Len(t, emit.completes, 1)
}

func TestRun_PanickingBatchDoesNotStopLaterBatches(t *testing.T) {
	persister := &panickingPersister{inner: newFakePersister(), panicOn: 1}
	c := NewCoordinator(persister, nil, 100, 0)
	emit := &collectEmitter{}

	state, err := c.Run(context.Background(), makeRecords(200), emit)
	require.NoError(t, err)

	assert.Equal(t, 100, state.FailureCount, "only the panicked batch counts as failed")
	assert.Equal(t, 100, state.SuccessCount)
	assert.Equal(t, 2, persister.calls)
	assert.Equal(t, state.Total, state.SuccessCount+state.FailureCount)
}

func TestRun_ShortStoreCountsDifferenceAsFailed(t *testing.T) {
	persister := newFakePersister()
	persister.shortBy = 2
	c := NewCoordinator(persister, nil, 100, 0)
	emit := &collectEmitter{}

	state, err := c.Run(context.Background(), makeRecords(100), emit)
	require.NoError(t, err)

	assert.Equal(t, 98, state.SuccessCount)
	assert.Equal(t, 2, state.FailureCount)
}

func TestRun_TransportDeathStopsProcessing(t *testing.T) {
	persister := newFakePersister()
	c := NewCoordinator(persister, nil, 100, 0)
	emit := &collectEmitter{failAfter: 2} // first progress succeeds, second fails

	state, err := c.Run(context.Background(), makeRecords(300), emit)
	require.Error(t, err)

	assert.Equal(t, 2, persister.calls, "no further batches after the write failure")
	assert.Equal(t, 200, state.Processed)
	assert.Empty(t, emit.completes, "no terminal event on a dead transport")
	assert.Len(t, persister.stored, 200, "already-persisted batches stay persisted")
}

func TestRun_CancelledContextStopsBatchLoop(t *testing.T) {
	persister := newFakePersister()
	c := NewCoordinator(persister, nil, 100, 0)
	emit := &collectEmitter{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx, makeRecords(300), emit)
	require.Error(t, err)
	assert.Equal(t, 0, persister.calls)
}

func TestRun_CompletionFixture(t *testing.T) {
	// 1000 records, 50 with out-of-range accomplishment
	records := makeRecords(1000)
	for i := 0; i < 50; i++ {
		records[i*20]["accomplishmentInPercentage"] = json.Number("150")
	}

	persister := newFakePersister()
	c := NewCoordinator(persister, nil, 100, 0)
	emit := &collectEmitter{}

	state, err := c.Run(context.Background(), records, emit)
	require.NoError(t, err)

	require.Len(t, emit.completes, 1)
	final := emit.completes[0]
	assert.Equal(t, 1000, final.Total)
	assert.Equal(t, 950, final.SuccessCount)
	assert.Equal(t, 50, final.FailureCount)
	assert.Equal(t, state, final)
}

func TestRun_DuplicateIdentifierOverwrites(t *testing.T) {
	first := makeRecord("24Z00001")
	second := makeRecord("24Z00001")
	second["contractCost"] = json.Number("2000000")

	persister := newFakePersister()
	c := NewCoordinator(persister, nil, 100, 0)
	emit := &collectEmitter{}

	state, err := c.Run(context.Background(), []ingest.RawRecord{first, second}, emit)
	require.NoError(t, err)

	assert.Equal(t, 2, state.SuccessCount, "duplicate identifier is an overwrite, not a failure")
	require.Len(t, persister.stored, 1)
	assert.Equal(t, "2000000", persister.stored["24Z00001"].ContractCost.String())
}
