package livesync

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"dabbathon/internal/domain"
	"dabbathon/internal/remote"
	"dabbathon/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type recordingDocs struct {
	*remote.MemoryStore
	log     *callLog
	authErr error
}

func (r *recordingDocs) Authenticate(ctx context.Context) error {
	r.log.add("authenticate")
	if r.authErr != nil {
		return r.authErr
	}
	return r.MemoryStore.Authenticate(ctx)
}

func (r *recordingDocs) Listen(ctx context.Context, collection string, fn func([]remote.Change)) error {
	r.log.add("listen")
	return r.MemoryStore.Listen(ctx, collection, fn)
}

type stubSnapshots struct {
	log   *callLog
	state *domain.AppState
}

func (s *stubSnapshots) Load(ctx context.Context) (*domain.AppState, bool, error) {
	s.log.add("load")
	if s.state == nil {
		return nil, false, nil
	}
	return s.state, true, nil
}

type runnerFunc func(ctx context.Context) error

func (f runnerFunc) Run(ctx context.Context) error { return f(ctx) }

func newAdapter(t *testing.T, docs remote.DocumentStore, snaps SnapshotLoader) (*Adapter, *store.Store) {
	t.Helper()
	st := store.New(nil, zerolog.Nop())
	a := NewAdapter(docs, nil, st, snaps, zerolog.Nop())
	t.Cleanup(func() { _ = a.Stop() })
	return a, st
}

func TestInitOrderHydrateAuthenticateSubscribe(t *testing.T) {
	log := &callLog{}
	cached := domain.NewAppState()
	cached.Teams["T1"] = domain.Team{ID: "T1", Name: "Cached"}

	docs := &recordingDocs{MemoryStore: remote.NewMemoryStore(), log: log}
	a, st := newAdapter(t, docs, &stubSnapshots{log: log, state: cached})

	started := make(chan struct{})
	a.AfterAttach(runnerFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return nil
	}))

	require.NoError(t, a.Init(context.Background()))
	assert.Equal(t, "Cached", st.Get().Teams["T1"].Name)

	require.Eventually(t, func() bool { return len(log.snapshot()) >= 2+len(Collections()) }, time.Second, 5*time.Millisecond)
	calls := log.snapshot()
	assert.Equal(t, []string{"load", "authenticate"}, calls[:2])
	for _, c := range calls[2:] {
		assert.Equal(t, "listen", c)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("runner was not started after attach")
	}
}

func TestInitIsIdempotent(t *testing.T) {
	log := &callLog{}
	docs := &recordingDocs{MemoryStore: remote.NewMemoryStore(), log: log}
	a, _ := newAdapter(t, docs, nil)

	require.NoError(t, a.Init(context.Background()))
	require.NoError(t, a.Init(context.Background()))
	assert.True(t, a.Started())

	auths := 0
	for _, c := range log.snapshot() {
		if c == "authenticate" {
			auths++
		}
	}
	assert.Equal(t, 1, auths)
}

func TestInitAuthFailureOpensNothing(t *testing.T) {
	log := &callLog{}
	docs := &recordingDocs{MemoryStore: remote.NewMemoryStore(), log: log, authErr: errors.New("denied")}
	a, _ := newAdapter(t, docs, nil)

	err := a.Init(context.Background())
	require.ErrorContains(t, err, "denied")
	assert.False(t, a.Started())
	assert.Equal(t, []string{"authenticate"}, log.snapshot())
}

func TestLiveChangesReachStore(t *testing.T) {
	ctx := context.Background()
	mem := remote.NewMemoryStore()
	a, st := newAdapter(t, mem, nil)
	require.NoError(t, a.Init(ctx))

	require.NoError(t, mem.Set(ctx, remote.CollTeams, "T1", map[string]any{"name": "Alpha", "room": "Room 2"}, false))
	require.NoError(t, mem.Set(ctx, remote.CollAppState, remote.ConfigDocID, map[string]any{"activeRound": int64(2)}, true))

	require.Eventually(t, func() bool {
		s := st.Get()
		return s.Teams["T1"].Room == "Room B" && s.ActiveRound == 2
	}, time.Second, 5*time.Millisecond)
}

func TestFoldTeamFieldMerge(t *testing.T) {
	a, st := newAdapter(t, remote.NewMemoryStore(), nil)

	a.Fold(remote.CollTeams, []remote.Change{{Kind: remote.Added, ID: "T1", Data: map[string]any{
		"name": "Alpha", "slotTime": "10:30 - 10:45", "room": "Room 3",
	}}})
	a.Fold(remote.CollTeams, []remote.Change{{Kind: remote.Modified, ID: "T1", Data: map[string]any{
		"problemStatement": "PS-4",
	}}})

	team := st.Get().Teams["T1"]
	assert.Equal(t, "Alpha", team.Name)
	assert.Equal(t, "Room C", team.Room)
	assert.Equal(t, "10:30 - 10:45", team.SlotTime)
	assert.Equal(t, "PS-4", team.ProblemStatement)

	a.Fold(remote.CollTeams, []remote.Change{{Kind: remote.Removed, ID: "T1"}})
	assert.NotContains(t, st.Get().Teams, "T1")
}

func TestFoldBatchIsOneMutation(t *testing.T) {
	a, st := newAdapter(t, remote.NewMemoryStore(), nil)
	commits := 0
	st.Subscribe(func(*domain.AppState) { commits++ })

	a.Fold(remote.CollRooms, []remote.Change{
		{Kind: remote.Added, ID: "A", Data: map[string]any{"title": "Room 1"}},
		{Kind: remote.Added, ID: "B", Data: map[string]any{"title": "Lab"}},
	})
	assert.Equal(t, 1, commits)
	assert.Equal(t, "Room A", st.Get().Rooms["A"].Title)
	assert.Equal(t, "Lab", st.Get().Rooms["B"].Title)
}

func TestFoldNotificationIsIdempotent(t *testing.T) {
	a, st := newAdapter(t, remote.NewMemoryStore(), nil)
	added := remote.Change{Kind: remote.Added, ID: "n1", Data: map[string]any{"teamId": "T1", "message": "hi", "timestamp": int64(5)}}

	a.Fold(remote.CollNotifications, []remote.Change{added})
	a.Fold(remote.CollNotifications, []remote.Change{added})
	require.Len(t, st.Get().Notifications, 1)

	a.Fold(remote.CollNotifications, []remote.Change{{Kind: remote.Modified, ID: "n1", Data: map[string]any{"teamId": "T1", "message": "edited", "timestamp": int64(5)}}})
	assert.Equal(t, "edited", st.Get().Notifications[0].Message)

	a.Fold(remote.CollNotifications, []remote.Change{{Kind: remote.Removed, ID: "n1"}})
	assert.Empty(t, st.Get().Notifications)
}

func TestFoldReconcilesTemporaryNotification(t *testing.T) {
	a, st := newAdapter(t, remote.NewMemoryStore(), nil)
	st.Mutate(func(d *domain.AppState) {
		d.Notifications = append(d.Notifications, domain.Notification{ID: "temp-xyz", TeamID: "T1", Message: "hello", Timestamp: 42})
		d.Desynced["notifications/temp-xyz"] = "offline"
	})

	a.Fold(remote.CollNotifications, []remote.Change{{Kind: remote.Added, ID: "real1", Data: map[string]any{
		"teamId": "T1", "message": "hello", "timestamp": int64(42),
	}}})

	got := st.Get()
	require.Len(t, got.Notifications, 1)
	assert.Equal(t, "real1", got.Notifications[0].ID)
	assert.Empty(t, got.Desynced)
}

func TestFoldConfigPartialMerge(t *testing.T) {
	a, st := newAdapter(t, remote.NewMemoryStore(), nil)
	st.Mutate(func(d *domain.AppState) {
		d.PublicViewEnabled = true
		d.AutoPingLeadMinutes = 7
	})

	a.Fold(remote.CollAppState, []remote.Change{{Kind: remote.Modified, ID: remote.ConfigDocID, Data: map[string]any{
		"activeRound": 3,
	}}})
	got := st.Get()
	assert.Equal(t, 3, got.ActiveRound)
	assert.True(t, got.PublicViewEnabled)
	assert.Equal(t, 7, got.AutoPingLeadMinutes)

	a.Fold(remote.CollAppState, []remote.Change{{Kind: remote.Modified, ID: remote.ConfigDocID, Data: map[string]any{
		"activeRound": 9, "autoPingLeadMinutes": 0, "timerConfig": map[string]any{"teamDurationSec": 300},
	}}})
	got = st.Get()
	assert.Equal(t, 3, got.ActiveRound)
	assert.Equal(t, domain.DefaultLeadMinutes, got.AutoPingLeadMinutes)
	assert.Equal(t, 300, got.TimerConfig.TeamDurationSec)
	assert.Equal(t, domain.DefaultSessionDurationSec, got.TimerConfig.SessionDurationSec)
}

func TestFoldScoresPerRound(t *testing.T) {
	a, st := newAdapter(t, remote.NewMemoryStore(), nil)
	coll := remote.ScoreCollection(2)

	a.Fold(coll, []remote.Change{{Kind: remote.Added, ID: "T1_m1", Data: map[string]any{
		"teamId": "T1", "metricId": "m1", "score": int64(5), "timestamp": int64(10),
	}}})
	a.Fold(coll, []remote.Change{{Kind: remote.Modified, ID: "T1_m1", Data: map[string]any{
		"teamId": "T1", "metricId": "m1", "score": 8.5, "timestamp": time.UnixMilli(20),
	}}})

	got := st.Get()
	e, ok := got.LatestScore(2, "T1", "m1")
	require.True(t, ok)
	assert.Equal(t, 8.5, e.Score)
	assert.Equal(t, int64(20), e.Timestamp)
	assert.Len(t, got.Scores[2], 1)
	assert.Len(t, got.ScoreLog[2], 2)
	assert.Empty(t, got.Scores[1])

	a.Fold(coll, []remote.Change{{Kind: remote.Removed, ID: "T1_m1"}})
	_, ok = st.Get().LatestScore(2, "T1", "m1")
	assert.False(t, ok)
}

func TestFoldLegacyMetricRound(t *testing.T) {
	a, st := newAdapter(t, remote.NewMemoryStore(), nil)
	a.Fold(remote.CollMetrics, []remote.Change{
		{Kind: remote.Added, ID: "r3_m1", Data: map[string]any{"name": "Demo", "max": 10.7}},
		{Kind: remote.Added, ID: "m2", Data: map[string]any{"name": "Speed", "max": int64(5), "round": int64(2)}},
	})

	got := st.Get()
	require.Len(t, got.Metrics, 2)
	assert.Equal(t, 3, got.Metrics[0].Round)
	assert.Equal(t, 10, got.Metrics[0].Max)
	assert.Equal(t, 2, got.Metrics[1].Round)
}

func TestMergeMetricClampsUnboundedMax(t *testing.T) {
	m := MergeMetric(domain.Metric{}, "m1", map[string]any{"name": "Speed", "max": "Infinity"})
	assert.Equal(t, math.MaxInt32, m.Max)

	m = MergeMetric(domain.Metric{}, "m2", map[string]any{"max": 1e300})
	assert.Equal(t, math.MaxInt32, m.Max)
}

func TestDesyncMarkClearedByEcho(t *testing.T) {
	mem := remote.NewMemoryStore()
	require.NoError(t, mem.Authenticate(context.Background()))
	pusher := remote.NewPusher(mem, 0, time.Millisecond, zerolog.Nop())
	st := store.New(nil, zerolog.Nop())
	a := NewAdapter(mem, pusher, st, nil, zerolog.Nop())

	mem.FailWrites(remote.CollTeams, errors.New("quota exceeded"))
	pusher.Push(remote.Write{Op: remote.OpSet, Collection: remote.CollTeams, ID: "T1", Data: map[string]any{"name": "A"}})
	pusher.Wait()
	assert.Equal(t, "remote write to teams failed after 1 attempts: quota exceeded", st.Get().Desynced["teams/T1"])

	a.Fold(remote.CollTeams, []remote.Change{{Kind: remote.Added, ID: "T1", Data: map[string]any{"name": "A"}}})
	assert.Empty(t, st.Get().Desynced)
}
