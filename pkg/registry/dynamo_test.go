package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	tablecore "github.com/theory-cloud/tabletheory/pkg/core"
	tableerrors "github.com/theory-cloud/tabletheory/pkg/errors"
	tablemocks "github.com/theory-cloud/tabletheory/pkg/mocks"

	"github.com/theory-cloud/sfntasks/testkit"
)

func newDynamoStore(t *testing.T, db tablecore.DB, ids IDGenerator) *DynamoStore {
	t.Helper()
	store, err := NewDynamoStore(db, DynamoConfig{RetryAttempts: 1, RetryBaseDelay: time.Millisecond, IDs: ids})
	require.NoError(t, err)
	return store
}

func TestDynamoStore_Put(t *testing.T) {
	t.Parallel()

	db := new(tablemocks.MockDB)
	q := new(tablemocks.MockQuery)

	var stored *definitionItem
	db.On("Model", mock.Anything).Run(func(args mock.Arguments) {
		stored, _ = args.Get(0).(*definitionItem)
	}).Return(q).Once()
	q.On("WithContext", mock.Anything).Return(q).Once()
	q.On("IfNotExists").Return(q).Once()
	q.On("Create").Return(nil).Once()

	ids := testkit.NewManualIDGenerator()
	ids.Queue("01HV")
	store := newDynamoStore(t, db, ids)

	version, err := store.Put(context.Background(), &Record{
		Name:       "orders",
		Definition: json.RawMessage(def),
		Policy:     json.RawMessage(`{"Version":"2012-10-17","Statement":[]}`),
		Tasks:      []string{"Invoke"},
	})
	require.NoError(t, err)
	require.Equal(t, "01HV", version)
	require.NotNil(t, stored)
	require.Equal(t, "statemachine#orders", stored.PartitionKey)
	require.Equal(t, "version#01HV", stored.SortKey)
	require.Equal(t, def, stored.Definition)
	require.Equal(t, []string{"Invoke"}, stored.Tasks)
	db.AssertExpectations(t)
	q.AssertExpectations(t)
}

func TestDynamoStore_Put_RetriesThrottling(t *testing.T) {
	t.Parallel()

	db := new(tablemocks.MockDB)
	q := new(tablemocks.MockQuery)

	db.On("Model", mock.Anything).Return(q).Twice()
	q.On("WithContext", mock.Anything).Return(q).Twice()
	q.On("IfNotExists").Return(q).Twice()
	q.On("Create").Return(errors.New("ThrottlingException: slow down")).Once()
	q.On("Create").Return(nil).Once()

	_, err := newDynamoStore(t, db, nil).Put(context.Background(), &Record{Name: "orders", Definition: json.RawMessage(def)})
	require.NoError(t, err)
	q.AssertExpectations(t)
}

func TestDynamoStore_Put_Errors(t *testing.T) {
	t.Parallel()

	db := new(tablemocks.MockDB)
	q := new(tablemocks.MockQuery)
	db.On("Model", mock.Anything).Return(q)
	q.On("WithContext", mock.Anything).Return(q)
	q.On("IfNotExists").Return(q)
	q.On("Create").Return(tableerrors.ErrConditionFailed).Once()
	q.On("Create").Return(errors.New("boom")).Once()

	store := newDynamoStore(t, db, nil)
	_, err := store.Put(context.Background(), &Record{Name: "orders", Version: "v1", Definition: json.RawMessage(def)})
	require.ErrorContains(t, err, "already exists")

	_, err = store.Put(context.Background(), &Record{Name: "orders", Definition: json.RawMessage(def)})
	require.ErrorContains(t, err, "after 2 attempts: boom")
	q.AssertNumberOfCalls(t, "Create", 2)
}

func TestDynamoStore_Get(t *testing.T) {
	t.Parallel()

	db := new(tablemocks.MockDB)
	q := new(tablemocks.MockQuery)
	db.On("Model", mock.Anything).Return(q)
	q.On("WithContext", mock.Anything).Return(q)
	q.On("Where", "PartitionKey", "=", "statemachine#orders").Return(q)
	q.On("Where", "SortKey", "=", "version#v1").Return(q)
	q.On("Where", "SortKey", "=", "version#v2").Return(q)
	q.On("First", mock.Anything).Run(func(args mock.Arguments) {
		out := args.Get(0).(*definitionItem)
		out.Name = "orders"
		out.Version = "v1"
		out.Definition = def
	}).Return(nil).Once()
	q.On("First", mock.Anything).Return(tableerrors.ErrItemNotFound).Once()

	store := newDynamoStore(t, db, nil)
	rec, err := store.Get(context.Background(), "orders", "v1")
	require.NoError(t, err)
	require.Equal(t, "v1", rec.Version)
	require.JSONEq(t, def, string(rec.Definition))
	require.Nil(t, rec.Policy)

	_, err = store.Get(context.Background(), "orders", "v2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoStore_ListAndLatest(t *testing.T) {
	t.Parallel()

	db := new(tablemocks.MockDB)
	q := new(tablemocks.MockQuery)
	db.On("Model", mock.Anything).Return(q)
	q.On("WithContext", mock.Anything).Return(q)
	q.On("Where", "PartitionKey", "=", "statemachine#orders").Return(q)
	q.On("OrderBy", "SortKey", "DESC").Return(q)
	q.On("Limit", 2).Return(q).Once()
	q.On("Limit", 1).Return(q).Twice()
	q.On("AllPaginated", mock.Anything).Run(func(args mock.Arguments) {
		out := args.Get(0).(*[]definitionItem)
		*out = []definitionItem{
			{Name: "orders", Version: "v2", Definition: def},
			{Name: "orders", Version: "v1", Definition: def},
		}
	}).Return(&tablecore.PaginatedResult{}, nil).Twice()
	q.On("AllPaginated", mock.Anything).Return(&tablecore.PaginatedResult{}, nil).Once()

	store := newDynamoStore(t, db, nil)
	list, err := store.List(context.Background(), "orders", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "v2", list[0].Version)

	latest, err := store.Latest(context.Background(), "orders")
	require.NoError(t, err)
	require.Equal(t, "v2", latest.Version)

	_, err = store.Latest(context.Background(), "orders")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoStore_Delete(t *testing.T) {
	t.Parallel()

	db := new(tablemocks.MockDB)
	qGet := new(tablemocks.MockQuery)
	qDel := new(tablemocks.MockQuery)
	db.On("Model", mock.Anything).Return(qGet).Once()
	db.On("Model", mock.Anything).Return(qDel).Once()

	qGet.On("WithContext", mock.Anything).Return(qGet)
	qGet.On("Where", mock.Anything, "=", mock.Anything).Return(qGet)
	qGet.On("First", mock.Anything).Run(func(args mock.Arguments) {
		out := args.Get(0).(*definitionItem)
		out.Name = "orders"
		out.Version = "v1"
		out.Definition = def
	}).Return(nil)

	qDel.On("WithContext", mock.Anything).Return(qDel)
	qDel.On("Where", "PartitionKey", "=", "statemachine#orders").Return(qDel)
	qDel.On("Where", "SortKey", "=", "version#v1").Return(qDel)
	qDel.On("Delete").Return(nil)

	require.NoError(t, newDynamoStore(t, db, nil).Delete(context.Background(), "orders", "v1"))
	qDel.AssertExpectations(t)
}

func TestDynamoStore_Config(t *testing.T) {
	t.Parallel()

	_, err := NewDynamoStore(nil, DynamoConfig{})
	require.Error(t, err)

	require.Equal(t, defaultTableName, definitionItem{}.TableName())
	require.True(t, isRetryableError(errors.New("ProvisionedThroughputExceededException: nope")))
	require.False(t, isRetryableError(errors.New("ValidationException")))
	require.False(t, isRetryableError(nil))
}
