package eventstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppend_AndGetByRunID_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "run-1", EventStageCompleted, []byte(`{"stage":"fetch"}`), map[string]string{"k": "v"}))
	require.NoError(t, store.Append(ctx, "run-1", EventRunCompleted, []byte(`{"outcome":"success"}`), nil))
	require.NoError(t, store.Append(ctx, "run-2", EventRunCompleted, []byte(`{}`), nil))

	events, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "run-1", events[0].RunID())
	assert.Equal(t, EventStageCompleted, events[0].Type())
	assert.JSONEq(t, `{"stage":"fetch"}`, string(events[0].Payload()))
	assert.Equal(t, map[string]string{"k": "v"}, events[0].Metadata())
	assert.Equal(t, EventRunCompleted, events[1].Type())
	assert.Nil(t, events[1].Metadata())
}

func TestGetByRunID_UnknownRun_ReturnsEmpty(t *testing.T) {
	store := newTestStore(t)

	events, err := store.GetByRunID(context.Background(), "never-ran")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGetRange_FiltersOnTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "run-1", EventRunCompleted, []byte(`{}`), nil))

	now := time.Now()
	events, err := store.GetRange(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = store.GetRange(ctx, now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestNewSQLiteStore_FileBacked_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, "run-1", EventRunCompleted, []byte(`{}`), nil))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	events, err := reopened.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
