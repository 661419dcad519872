package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"expenselog/internal/core"
)

const (
	upsertRecordQuery = `
INSERT INTO records (date, items) VALUES (?, ?)
ON CONFLICT(date) DO UPDATE SET
    items = excluded.items,
    revision = records.revision + 1,
    updated_at = CURRENT_TIMESTAMP
RETURNING revision`

	getRecordQuery   = `SELECT date, items FROM records WHERE date = ?`
	listRecordsQuery = `SELECT date, items FROM records ORDER BY id`
)

// recordRow is the SQLite representation of a record; items are stored as a
// JSON document.
type recordRow struct {
	Date  string `db:"date"`
	Items string `db:"items"`
}

type SQLiteRepository struct {
	db *sqlx.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Upsert implements store.Store with a single INSERT ... ON CONFLICT statement.
func (r *SQLiteRepository) Upsert(ctx context.Context, date core.Date, items []core.Item) (core.Record, bool, error) {
	rec := core.NewRecord(date, items)
	payload, err := json.Marshal(rec.Items)
	if err != nil {
		return core.Record{}, false, &core.StoreError{Op: "upsert", Err: fmt.Errorf("encode items: %w", err)}
	}

	var revision int64
	if err := r.db.GetContext(ctx, &revision, upsertRecordQuery, date.String(), string(payload)); err != nil {
		return core.Record{}, false, &core.StoreError{Op: "upsert", Err: err}
	}

	slog.DebugContext(ctx, "Record saved to SQLite",
		"date", date.String(),
		"items", len(rec.Items),
		"revision", revision)

	return rec, revision == 1, nil
}

// FindByDate implements store.Store
func (r *SQLiteRepository) FindByDate(ctx context.Context, date core.Date) (core.Record, error) {
	var row recordRow
	if err := r.db.GetContext(ctx, &row, getRecordQuery, date.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Record{}, &core.NotFoundError{Date: date}
		}
		return core.Record{}, &core.StoreError{Op: "find_by_date", Err: err}
	}
	rec, err := row.toRecord()
	if err != nil {
		return core.Record{}, &core.StoreError{Op: "find_by_date", Err: err}
	}
	return rec, nil
}

// FindAll implements store.Store
func (r *SQLiteRepository) FindAll(ctx context.Context) ([]core.Record, error) {
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, listRecordsQuery); err != nil {
		return nil, &core.StoreError{Op: "find_all", Err: err}
	}

	records := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, &core.StoreError{Op: "find_all", Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (row recordRow) toRecord() (core.Record, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Record{}, fmt.Errorf("decode date %q: %w", row.Date, err)
	}
	var items []core.Item
	if err := json.Unmarshal([]byte(row.Items), &items); err != nil {
		return core.Record{}, fmt.Errorf("decode items for %s: %w", row.Date, err)
	}
	return core.NewRecord(date, items), nil
}
