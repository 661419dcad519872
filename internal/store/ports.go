package store

import (
	"context"

	"expenselog/internal/core"
)

// Ports for record persistence backends.
type (
	// Store maps a calendar date to its list of items.
	Store interface {
		// Upsert atomically creates the record for date or replaces its items.
		// created reports whether no record existed before the call.
		Upsert(ctx context.Context, date core.Date, items []core.Item) (rec core.Record, created bool, err error)

		// FindByDate returns *core.NotFoundError when no record matches.
		FindByDate(ctx context.Context, date core.Date) (core.Record, error)

		// FindAll returns every stored record, possibly none.
		FindAll(ctx context.Context) ([]core.Record, error)
	}

	// Pinger is implemented by backends that can report connectivity.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
