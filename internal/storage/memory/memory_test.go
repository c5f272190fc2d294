package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/orbital-guard/internal/storage"
)

func event(id, focus string) storage.ConjunctionEvent {
	return storage.ConjunctionEvent{ID: id, FocusKey: focus}
}

func TestStoreListNewestFirstAndFiltered(t *testing.T) {
	ctx := context.Background()
	s := New(10)
	require.NoError(t, s.Record(ctx, event("1", "ISS"), event("2", "HST"), event("3", "ISS")))

	all, err := s.List(ctx, storage.Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].ID)

	iss, err := s.List(ctx, storage.Query{FocusKey: "ISS", Limit: 1})
	require.NoError(t, err)
	require.Len(t, iss, 1)
	assert.Equal(t, "3", iss[0].ID)

	none, err := s.List(ctx, storage.Query{FocusKey: "NOPE"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestStoreDropsOldestBeyondCapacity(t *testing.T) {
	ctx := context.Background()
	s := New(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, event(fmt.Sprint(i), "ISS")))
	}
	assert.Equal(t, 3, s.Len())
	got, err := s.List(ctx, storage.Query{})
	require.NoError(t, err)
	assert.Equal(t, "4", got[0].ID)
	assert.Equal(t, "2", got[2].ID)
}

func TestStoreClosed(t *testing.T) {
	s := New(0)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Record(context.Background(), event("1", "ISS")), storage.ErrClosed)
	_, err := s.List(context.Background(), storage.Query{})
	assert.ErrorIs(t, err, storage.ErrClosed)
}
