package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"expenselog/internal/core"
	"expenselog/internal/log"
	"expenselog/internal/store"
)

const DefaultStoreTimeout = 5 * time.Second

// EventPublisher announces saved records. Implemented by *amqp.Client.
type EventPublisher interface {
	PublishRecordSaved(ctx context.Context, rec core.Record, created bool) error
}

// Metrics is the subset of the metrics registry the service reports to.
type Metrics interface {
	RecordUpsert(created bool)
	RecordStoreError(op string)
	RecordPublish(err error)
}

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	Record  core.Record
	Created bool
}

// RecordService orchestrates record operations across the store and the
// optional event publisher.
type RecordService struct {
	store   store.Store
	events  EventPublisher
	metrics Metrics
	timeout time.Duration
}

// NewRecordService wires a service around st. events and metrics may be nil.
// timeout bounds each store call and each event publish.
func NewRecordService(st store.Store, events EventPublisher, metrics Metrics, timeout time.Duration) *RecordService {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &RecordService{
		store:   st,
		events:  events,
		metrics: metrics,
		timeout: timeout,
	}
}

// Submit creates or replaces the record for req.Date. The store is written
// first; a failed event publish is logged and does not fail the call.
func (s *RecordService) Submit(ctx context.Context, req core.SubmitRequest) (SubmitResult, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, created, err := s.store.Upsert(storeCtx, req.Date, req.Items)
	if err != nil {
		s.storeFailed(err)
		return SubmitResult{}, fmt.Errorf("submit record for %s: %w", req.Date, err)
	}

	if s.metrics != nil {
		s.metrics.RecordUpsert(created)
	}
	slog.InfoContext(ctx, "Record saved",
		log.FieldDate, rec.Date.String(),
		log.FieldItemCount, len(rec.Items),
		log.FieldCreated, created)

	s.publish(ctx, rec, created)

	return SubmitResult{Record: rec, Created: created}, nil
}

// FetchAll returns every record, or *core.NotFoundError when there are none.
func (s *RecordService) FetchAll(ctx context.Context) ([]core.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records, err := s.store.FindAll(ctx)
	if err != nil {
		s.storeFailed(err)
		return nil, fmt.Errorf("fetch all records: %w", err)
	}
	if len(records) == 0 {
		return nil, &core.NotFoundError{All: true}
	}
	return records, nil
}

// FetchByDate returns the record for req.Date.
func (s *RecordService) FetchByDate(ctx context.Context, req core.FetchRequest) (core.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.store.FindByDate(ctx, req.Date)
	if err != nil {
		if !core.IsNotFound(err) {
			s.storeFailed(err)
		}
		return core.Record{}, fmt.Errorf("fetch record for %s: %w", req.Date, err)
	}
	return rec, nil
}

// Ping reports store connectivity for backends that support it.
func (s *RecordService) Ping(ctx context.Context) error {
	p, ok := s.store.(store.Pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return p.Ping(ctx)
}

func (s *RecordService) publish(ctx context.Context, rec core.Record, created bool) {
	if s.events == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping record event")
		return
	}

	// The record is already stored; a client hanging up must not cancel the
	// event, but a slow broker must not hold the response either.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err := s.events.PublishRecordSaved(pubCtx, rec, created)
	if s.metrics != nil {
		s.metrics.RecordPublish(err)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish record event",
			log.FieldDate, rec.Date.String(),
			log.FieldError, err)
	}
}

func (s *RecordService) storeFailed(err error) {
	if s.metrics == nil {
		return
	}
	op := "unknown"
	var se *core.StoreError
	if errors.As(err, &se) {
		op = se.Op
	}
	s.metrics.RecordStoreError(op)
}
