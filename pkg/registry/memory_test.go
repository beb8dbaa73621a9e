package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/sfntasks/testkit"
)

const def = `{"StartAt":"A","States":{"A":{"Type":"Succeed"}}}`

func TestMemoryStore_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := testkit.NewWithTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	env.IDs.Queue("01A", "01B", "01C")
	store := NewMemoryStore(WithMemoryIDs(env.IDs), WithMemoryClock(env.Clock.Now))

	for i := 0; i < 3; i++ {
		_, err := store.Put(ctx, &Record{Name: "orders", Definition: json.RawMessage(def), Tags: map[string]string{"i": string(rune('0' + i))}})
		require.NoError(t, err)
	}

	latest, err := store.Latest(ctx, "orders")
	require.NoError(t, err)
	require.Equal(t, "01C", latest.Version)
	require.Equal(t, env.Clock.Now(), latest.CreatedAt)

	list, err := store.List(ctx, "orders", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "01C", list[0].Version)
	require.Equal(t, "01B", list[1].Version)

	got, err := store.Get(ctx, "orders", "01A")
	require.NoError(t, err)
	require.JSONEq(t, def, string(got.Definition))

	got.Tags["i"] = "mutated"
	again, err := store.Get(ctx, "orders", "01A")
	require.NoError(t, err)
	require.Equal(t, "0", again.Tags["i"])

	require.NoError(t, store.Delete(ctx, "orders", "01C"))
	latest, err = store.Latest(ctx, "orders")
	require.NoError(t, err)
	require.Equal(t, "01B", latest.Version)

	require.ErrorIs(t, store.Delete(ctx, "orders", "01C"), ErrNotFound)
	_, err = store.Get(ctx, "orders", "01C")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Latest(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DefaultVersionsAreOrdered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	var versions []string
	for i := 0; i < 5; i++ {
		v, err := store.Put(ctx, &Record{Name: "orders", Definition: json.RawMessage(def)})
		require.NoError(t, err)
		require.Len(t, v, 26)
		versions = append(versions, v)
	}

	latest, err := store.Latest(ctx, "orders")
	require.NoError(t, err)
	require.Equal(t, versions[len(versions)-1], latest.Version)
}

func TestMemoryStore_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Put(ctx, nil)
	require.Error(t, err)
	_, err = store.Put(ctx, &Record{Name: "bad name", Definition: json.RawMessage(def)})
	require.Error(t, err)
	_, err = store.Put(ctx, &Record{Name: "orders", Definition: json.RawMessage("{")})
	require.ErrorContains(t, err, "definition must be a JSON document")
	_, err = store.Put(ctx, &Record{Name: "orders", Definition: json.RawMessage(def), Policy: json.RawMessage("nope")})
	require.ErrorContains(t, err, "policy must be a JSON document")

	_, err = store.Put(ctx, &Record{Name: "orders", Version: "v1", Definition: json.RawMessage(def)})
	require.NoError(t, err)
	_, err = store.Put(ctx, &Record{Name: "orders", Version: "v1", Definition: json.RawMessage(def)})
	require.ErrorContains(t, err, "already exists")

	_, err = store.Get(ctx, "orders", " ")
	require.ErrorContains(t, err, "version cannot be empty")
	_, err = store.List(ctx, "", 1)
	require.ErrorContains(t, err, "name cannot be empty")
}

func TestNormalizeLimit(t *testing.T) {
	t.Parallel()

	require.Equal(t, defaultListLimit, normalizeLimit(0))
	require.Equal(t, defaultListLimit, normalizeLimit(maxListLimit+1))
	require.Equal(t, 7, normalizeLimit(7))
}
