package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, m *MemoryStore, collection string) (<-chan []Change, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan []Change, 16)
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = m.Listen(ctx, collection, func(c []Change) { out <- c })
	}()
	<-ready
	// allow the listener to register before writes start
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.listeners[collection]) > 0
	}, time.Second, 5*time.Millisecond)
	return out, cancel
}

func next(t *testing.T, ch <-chan []Change) []Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change batch")
		return nil
	}
}

func TestMemoryListenRequiresAuthentication(t *testing.T) {
	m := NewMemoryStore()
	err := m.Listen(context.Background(), CollTeams, func([]Change) {})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = m.Add(context.Background(), CollTeams, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestMemoryEchoesWritesAsChanges(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Authenticate(ctx))

	changes, cancel := collect(t, m, CollTeams)
	defer cancel()

	require.NoError(t, m.Set(ctx, CollTeams, "T1", map[string]any{"name": "Alpha"}, false))
	got := next(t, changes)
	require.Len(t, got, 1)
	assert.Equal(t, Added, got[0].Kind)
	assert.Equal(t, "Alpha", got[0].Data["name"])

	require.NoError(t, m.Set(ctx, CollTeams, "T1", map[string]any{"room": "Room A"}, true))
	got = next(t, changes)
	assert.Equal(t, Modified, got[0].Kind)
	assert.Equal(t, "Alpha", got[0].Data["name"])
	assert.Equal(t, "Room A", got[0].Data["room"])

	require.NoError(t, m.Delete(ctx, CollTeams, "T1"))
	got = next(t, changes)
	assert.Equal(t, Removed, got[0].Kind)

	empty, err := m.Empty(ctx, CollTeams)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestMemoryInitialSnapshotAndBatchCommit(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Authenticate(ctx))
	require.NoError(t, m.Set(ctx, CollMetrics, "m1", map[string]any{"name": "Speed"}, false))

	changes, cancel := collect(t, m, CollMetrics)
	defer cancel()

	initial := next(t, changes)
	require.Len(t, initial, 1)
	assert.Equal(t, "m1", initial[0].ID)

	err := m.Commit(ctx, []Write{
		{Op: OpSet, Collection: CollMetrics, ID: "m2", Data: map[string]any{"name": "Design"}},
		{Op: OpSet, Collection: CollMetrics, ID: "m3", Data: map[string]any{"name": "Pitch"}},
		{Op: OpDelete, Collection: CollMetrics, ID: "missing"},
	})
	require.NoError(t, err)
	batch := next(t, changes)
	assert.Len(t, batch, 2)
}

func TestMemoryFailWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Authenticate(ctx))

	coll := ScoreCollection(1)
	boom := assert.AnError
	m.FailWrites(coll, boom)
	err := m.Set(ctx, coll, "T1_m1", map[string]any{"score": 1}, false)
	assert.ErrorIs(t, err, boom)

	m.FailWrites(coll, nil)
	require.NoError(t, m.Set(ctx, coll, "T1_m1", map[string]any{"score": 1}, false))
	doc, ok := m.Doc(coll, "T1_m1")
	require.True(t, ok)
	assert.Equal(t, 1, doc["score"])
}

func TestMemoryCommitDoesNotBlockOnDepartedListener(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Authenticate(ctx))

	// a listener that never drains, like a pump that already returned
	l, err := m.subscribe(CollTeams)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 300; i++ {
			if err := m.Set(ctx, CollTeams, "T1", map[string]any{"n": i}, false); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	require.Eventually(t, func() bool { return len(l.ch) == cap(l.ch) }, time.Second, time.Millisecond)
	m.unsubscribe(CollTeams, l)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("commit blocked on a listener that left")
	}
	doc, ok := m.Doc(CollTeams, "T1")
	require.True(t, ok)
	assert.Equal(t, 299, doc["n"])
}
