package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenselog/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteUpsertCreatesThenReplaces(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	date := core.NewDate(2024, 1, 1)

	rec, created, err := repo.Upsert(ctx, date, []core.Item{{Title: "A", Cost: 1.5}, {Title: "B", Cost: 2}})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "2024-01-01", rec.Date.String())

	rec, created, err = repo.Upsert(ctx, date, []core.Item{{Title: "C", Cost: 3}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []core.Item{{Title: "C", Cost: 3}}, rec.Items)

	got, err := repo.FindByDate(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, []core.Item{{Title: "C", Cost: 3}}, got.Items)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteFindByDatePreservesItemOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	date := core.NewDate(2024, 3, 5)
	items := []core.Item{{Title: "z", Cost: 1}, {Title: "a", Cost: 2}, {Title: "m", Cost: 0.25}}

	_, _, err := repo.Upsert(ctx, date, items)
	require.NoError(t, err)

	got, err := repo.FindByDate(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, items, got.Items)
}

func TestSQLiteNotFoundAndEmpty(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.FindByDate(ctx, core.NewDate(2024, 3, 5))
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteEmptyItemsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	date := core.NewDate(2024, 2, 29)

	_, created, err := repo.Upsert(ctx, date, nil)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := repo.FindByDate(ctx, date)
	require.NoError(t, err)
	assert.NotNil(t, got.Items)
	assert.Empty(t, got.Items)
}

func TestSQLiteFindAllInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	for _, d := range []core.Date{core.NewDate(2024, 3, 5), core.NewDate(2024, 1, 1)} {
		_, _, err := repo.Upsert(ctx, d, []core.Item{{Title: d.String(), Cost: 1}})
		require.NoError(t, err)
	}

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2024-03-05", all[0].Date.String())
	assert.Equal(t, "2024-01-01", all[1].Date.String())
}

func TestSQLiteConcurrentUpsertsSameDate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	date := core.NewDate(2024, 6, 1)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, c, err := repo.Upsert(ctx, date, []core.Item{{Title: "t", Cost: float64(i)}})
			assert.NoError(t, err)
			if c {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.db")

	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	_, _, err = repo.Upsert(ctx, core.NewDate(2024, 1, 1), []core.Item{{Title: "A", Cost: 1}})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.FindByDate(ctx, core.NewDate(2024, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, "A", got.Items[0].Title)
}
