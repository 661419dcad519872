package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"expenselog/internal/core"
)

func recordDocument(date time.Time, items ...bson.D) bson.D {
	arr := bson.A{}
	for _, it := range items {
		arr = append(arr, it)
	}
	return bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "date", Value: date},
		{Key: "items", Value: arr},
	}
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	mt.Run("upsert creates when no previous document", func(mt *mtest.T) {
		s := New(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: nil},
			bson.E{Key: "lastErrorObject", Value: bson.D{{Key: "n", Value: 1}, {Key: "updatedExisting", Value: false}}},
		))

		rec, created, err := s.Upsert(ctx, core.NewDate(2024, 3, 5), []core.Item{{Title: "lunch", Cost: 12.5}})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "2024-03-05", rec.Date.String())
		assert.Equal(t, []core.Item{{Title: "lunch", Cost: 12.5}}, rec.Items)

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "findAndModify", started.CommandName)
	})

	mt.Run("upsert updates when previous document exists", func(mt *mtest.T) {
		s := New(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: recordDocument(day, bson.D{{Key: "title", Value: "old"}, {Key: "cost", Value: 1.0}})},
			bson.E{Key: "lastErrorObject", Value: bson.D{{Key: "n", Value: 1}, {Key: "updatedExisting", Value: true}}},
		))

		rec, created, err := s.Upsert(ctx, core.NewDate(2024, 3, 5), []core.Item{{Title: "new", Cost: 2}})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, []core.Item{{Title: "new", Cost: 2}}, rec.Items)
	})

	mt.Run("upsert wraps command errors", func(mt *mtest.T) {
		s := New(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Message: "duplicate key error",
			Name:    "DuplicateKey",
		}))

		_, _, err := s.Upsert(ctx, core.NewDate(2024, 3, 5), nil)
		require.Error(t, err)
		var se *core.StoreError
		assert.ErrorAs(t, err, &se)
		assert.Equal(t, "upsert", se.Op)
	})

	mt.Run("find by date", func(mt *mtest.T) {
		s := New(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			recordDocument(day, bson.D{{Key: "title", Value: "lunch"}, {Key: "cost", Value: 12.5}})))

		rec, err := s.FindByDate(ctx, core.NewDate(2024, 3, 5))
		require.NoError(t, err)
		assert.Equal(t, "2024-03-05", rec.Date.String())
		assert.Equal(t, []core.Item{{Title: "lunch", Cost: 12.5}}, rec.Items)
	})

	mt.Run("find by date not found", func(mt *mtest.T) {
		s := New(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := s.FindByDate(ctx, core.NewDate(2024, 3, 5))
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
	})

	mt.Run("find all", func(mt *mtest.T) {
		s := New(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			recordDocument(day, bson.D{{Key: "title", Value: "lunch"}, {Key: "cost", Value: 12.5}}),
			recordDocument(day.AddDate(0, 0, 1)),
		))

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "2024-03-05", all[0].Date.String())
		assert.Equal(t, "2024-03-06", all[1].Date.String())
		assert.NotNil(t, all[1].Items)
		assert.Empty(t, all[1].Items)
	})

	mt.Run("find all empty", func(mt *mtest.T) {
		s := New(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		all, err := s.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
