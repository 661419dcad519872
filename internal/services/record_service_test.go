package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenselog/internal/core"
	"expenselog/internal/metrics"
	"expenselog/internal/store/memory"
)

type fakePublisher struct {
	mu      sync.Mutex
	err     error
	events  []core.Record
	created []bool
}

func (p *fakePublisher) PublishRecordSaved(ctx context.Context, rec core.Record, created bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, rec)
	p.created = append(p.created, created)
	return p.err
}

type fakeMetrics struct {
	created, updated int
	storeErrors      []string
	publishErrors    int
	publishOK        int
}

func (m *fakeMetrics) RecordUpsert(created bool) {
	if created {
		m.created++
	} else {
		m.updated++
	}
}

func (m *fakeMetrics) RecordStoreError(op string) { m.storeErrors = append(m.storeErrors, op) }

func (m *fakeMetrics) RecordPublish(err error) {
	if err != nil {
		m.publishErrors++
	} else {
		m.publishOK++
	}
}

type failingStore struct{ err error }

func (f failingStore) Upsert(context.Context, core.Date, []core.Item) (core.Record, bool, error) {
	return core.Record{}, false, &core.StoreError{Op: "upsert", Err: f.err}
}

func (f failingStore) FindByDate(context.Context, core.Date) (core.Record, error) {
	return core.Record{}, &core.StoreError{Op: "find_by_date", Err: f.err}
}

func (f failingStore) FindAll(context.Context) ([]core.Record, error) {
	return nil, &core.StoreError{Op: "find_all", Err: f.err}
}

// deadlineStore records whether store calls carried a deadline.
type deadlineStore struct {
	*memory.Store
	sawDeadline bool
}

func (d *deadlineStore) FindAll(ctx context.Context) ([]core.Record, error) {
	_, d.sawDeadline = ctx.Deadline()
	return d.Store.FindAll(ctx)
}

func TestSubmit_CreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	m := &fakeMetrics{}
	svc := NewRecordService(memory.New(), pub, m, time.Second)
	date := core.NewDate(2024, 3, 5)

	res, err := svc.Submit(ctx, core.SubmitRequest{Date: date, Items: []core.Item{{Title: "lunch", Cost: 12.5}}})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, []core.Item{{Title: "lunch", Cost: 12.5}}, res.Record.Items)

	res, err = svc.Submit(ctx, core.SubmitRequest{Date: date, Items: []core.Item{{Title: "dinner", Cost: 20}}})
	require.NoError(t, err)
	assert.False(t, res.Created)

	rec, err := svc.FetchByDate(ctx, core.FetchRequest{Date: date})
	require.NoError(t, err)
	assert.Equal(t, []core.Item{{Title: "dinner", Cost: 20}}, rec.Items)

	assert.Equal(t, 1, m.created)
	assert.Equal(t, 1, m.updated)
	assert.Equal(t, 2, m.publishOK)
	assert.Equal(t, []bool{true, false}, pub.created)
}

func TestSubmit_PublishFailureDoesNotFail(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	m := &fakeMetrics{}
	svc := NewRecordService(memory.New(), pub, m, time.Second)

	res, err := svc.Submit(context.Background(), core.SubmitRequest{Date: core.NewDate(2024, 1, 1)})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotNil(t, res.Record.Items)
	assert.Equal(t, 1, m.publishErrors)
}

func TestSubmit_NilPublisherAndMetrics(t *testing.T) {
	svc := NewRecordService(memory.New(), nil, nil, 0)

	_, err := svc.Submit(context.Background(), core.SubmitRequest{Date: core.NewDate(2024, 1, 1)})
	assert.NoError(t, err)
	assert.Equal(t, DefaultStoreTimeout, svc.timeout)
}

func TestSubmit_UnsetMetricsRegistry(t *testing.T) {
	var reg *metrics.Registry
	svc := NewRecordService(failingStore{err: errors.New("disk full")}, nil, reg, time.Second)
	_, err := svc.Submit(context.Background(), core.SubmitRequest{Date: core.NewDate(2024, 1, 1)})
	assert.Error(t, err)

	svc = NewRecordService(memory.New(), &fakePublisher{}, reg, time.Second)
	res, err := svc.Submit(context.Background(), core.SubmitRequest{Date: core.NewDate(2024, 1, 1)})
	require.NoError(t, err)
	assert.True(t, res.Created)
}

// stalledPublisher blocks until its context ends, like a broker that
// accepts connections and never answers.
type stalledPublisher struct{ sawDeadline bool }

func (p *stalledPublisher) PublishRecordSaved(ctx context.Context, rec core.Record, created bool) error {
	_, p.sawDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestSubmit_SlowPublisherIsBounded(t *testing.T) {
	pub := &stalledPublisher{}
	m := &fakeMetrics{}
	svc := NewRecordService(memory.New(), pub, m, 100*time.Millisecond)

	start := time.Now()
	res, err := svc.Submit(context.Background(), core.SubmitRequest{Date: core.NewDate(2024, 1, 1)})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, pub.sawDeadline)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, 1, m.publishErrors)
}

func TestSubmit_StoreError(t *testing.T) {
	pub := &fakePublisher{}
	m := &fakeMetrics{}
	svc := NewRecordService(failingStore{err: errors.New("disk full")}, pub, m, time.Second)

	_, err := svc.Submit(context.Background(), core.SubmitRequest{Date: core.NewDate(2024, 1, 1)})
	var se *core.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"upsert"}, m.storeErrors)
	assert.Empty(t, pub.events, "nothing is published when the store write fails")
}

func TestFetchAll_EmptyIsNotFound(t *testing.T) {
	svc := NewRecordService(memory.New(), nil, nil, time.Second)

	_, err := svc.FetchAll(context.Background())
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.True(t, nf.All)
}

func TestFetchAll_ReturnsRecords(t *testing.T) {
	ctx := context.Background()
	svc := NewRecordService(memory.New(), nil, nil, time.Second)
	for _, d := range []core.Date{core.NewDate(2024, 1, 2), core.NewDate(2024, 1, 1)} {
		_, err := svc.Submit(ctx, core.SubmitRequest{Date: d})
		require.NoError(t, err)
	}

	all, err := svc.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2024-01-02", all[0].Date.String())
}

func TestFetchAll_StoreError(t *testing.T) {
	m := &fakeMetrics{}
	svc := NewRecordService(failingStore{err: errors.New("timeout")}, nil, m, time.Second)

	_, err := svc.FetchAll(context.Background())
	require.Error(t, err)
	assert.False(t, core.IsNotFound(err))
	assert.Equal(t, []string{"find_all"}, m.storeErrors)
}

func TestFetchByDate_NotFoundIsNotAStoreError(t *testing.T) {
	m := &fakeMetrics{}
	svc := NewRecordService(memory.New(), nil, m, time.Second)

	_, err := svc.FetchByDate(context.Background(), core.FetchRequest{Date: core.NewDate(2024, 3, 5)})
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
	assert.Empty(t, m.storeErrors)
}

func TestStoreCallsCarryTimeout(t *testing.T) {
	st := &deadlineStore{Store: memory.New()}
	svc := NewRecordService(st, nil, nil, time.Second)

	_, _ = svc.FetchAll(context.Background())
	assert.True(t, st.sawDeadline)
}

func TestPing(t *testing.T) {
	svc := NewRecordService(memory.New(), nil, nil, time.Second)
	assert.NoError(t, svc.Ping(context.Background()))

	// failingStore does not implement store.Pinger.
	svc = NewRecordService(failingStore{}, nil, nil, time.Second)
	assert.NoError(t, svc.Ping(context.Background()))
}
