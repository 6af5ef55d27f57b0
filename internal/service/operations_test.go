package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"dabbathon/internal/config"
	"dabbathon/internal/domain"
	"dabbathon/internal/remote"
	"dabbathon/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ops    *Operations
	store  *store.Store
	mem    *remote.MemoryStore
	pusher *remote.Pusher
	clock  time.Time
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	mem := remote.NewMemoryStore()
	require.NoError(t, mem.Authenticate(context.Background()))
	pusher := remote.NewPusher(mem, 0, time.Millisecond, zerolog.Nop())
	st := store.New(nil, zerolog.Nop())
	if cfg == nil {
		cfg = &config.Config{FinalistCount: 10}
	}

	f := &fixture{
		store:  st,
		mem:    mem,
		pusher: pusher,
		clock:  time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	f.ops = NewOperations(st, pusher, mem, cfg, zerolog.Nop())
	f.ops.SetClock(func() time.Time { return f.clock })
	return f
}

func (f *fixture) doc(t *testing.T, collection, id string) (map[string]any, bool) {
	t.Helper()
	f.pusher.Wait()
	return f.mem.Doc(collection, id)
}

func TestAddTeamAssignsSequentialIDs(t *testing.T) {
	f := newFixture(t, nil)

	a := f.ops.AddTeam("  Alpha ", TeamOptions{Room: "Room 2", SlotTime: "10:30 - 10:45"})
	b := f.ops.AddTeam("   ", TeamOptions{})

	assert.Equal(t, "T1", a.ID)
	assert.Equal(t, "Alpha", a.Name)
	assert.Equal(t, "Room B", a.Room)
	assert.Equal(t, "T2", b.ID)
	assert.Equal(t, "T2", b.Name)

	doc, ok := f.doc(t, remote.CollTeams, "T1")
	require.True(t, ok)
	assert.Equal(t, "Alpha", doc["name"])
	assert.Equal(t, "Room B", doc["room"])
}

func TestTeamIDNumberingSkipsGaps(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Mutate(func(d *domain.AppState) {
		d.Teams["T9"] = domain.Team{ID: "T9", Name: "Nine"}
	})
	assert.Equal(t, "T10", f.ops.AddTeam("Ten", TeamOptions{}).ID)
}

func TestTeamUpdates(t *testing.T) {
	f := newFixture(t, nil)
	team := f.ops.AddTeam("Alpha", TeamOptions{})

	require.NoError(t, f.ops.RenameTeam(team.ID, "Beta"))
	require.NoError(t, f.ops.SetTeamRoom(team.ID, " room 5 "))
	require.NoError(t, f.ops.SetTeamSlot(team.ID, "2:15pm - 2:30pm"))
	require.NoError(t, f.ops.SetTeamCredential(team.ID, "beta", "secret"))
	require.NoError(t, f.ops.SubmitFile(2, team.ID, "https://drive.example.com/f/1"))

	assert.ErrorIs(t, f.ops.RenameTeam(team.ID, " "), domain.ErrBlankName)
	assert.ErrorIs(t, f.ops.RenameTeam("T99", "x"), domain.ErrUnknownTeam)
	assert.ErrorIs(t, f.ops.SubmitFile(1, team.ID, "not a url"), domain.ErrInvalidURL)
	assert.ErrorIs(t, f.ops.SubmitFile(4, team.ID, "https://x.y"), domain.ErrInvalidRound)

	got := f.store.Get().Teams[team.ID]
	assert.Equal(t, "Beta", got.Name)
	assert.Equal(t, "Room E", got.Room)
	assert.Equal(t, "2:15pm - 2:30pm", got.SlotTime)
	assert.Equal(t, map[string]string{"2": "https://drive.example.com/f/1"}, got.Submissions)

	doc, ok := f.doc(t, remote.CollTeams, team.ID)
	require.True(t, ok)
	assert.Equal(t, "Beta", doc["name"])
	assert.Equal(t, "secret", doc["password"])
}

func TestAddMetricNextID(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Mutate(func(d *domain.AppState) {
		d.Metrics = []domain.Metric{{ID: "m1", Max: 1}, {ID: "m3", Max: 1}, {ID: "m7", Max: 1}}
	})

	m, err := f.ops.AddMetric("Innovation", 7.9, 0)
	require.NoError(t, err)
	assert.Equal(t, "m8", m.ID)
	assert.Equal(t, 7, m.Max)
	assert.Equal(t, 1, m.Round)

	m, err = f.ops.AddMetric("Pitch", -4, 2)
	require.NoError(t, err)
	assert.Equal(t, "m9", m.ID)
	assert.Equal(t, 1, m.Max)

	_, err = f.ops.AddMetric(" ", 10, 1)
	assert.ErrorIs(t, err, domain.ErrBlankName)
	_, err = f.ops.AddMetric("X", 10, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidRound)
}

func TestUpdateMetric(t *testing.T) {
	f := newFixture(t, nil)
	m, err := f.ops.AddMetric("Speed", 10, 1)
	require.NoError(t, err)

	name, max, round := "Velocity", 20, 2
	require.NoError(t, f.ops.UpdateMetric(m.ID, domain.MetricPatch{Name: &name, Max: &max, Round: &round}))

	got := f.store.Get().Metrics[0]
	assert.Equal(t, "Velocity", got.Name)
	assert.Equal(t, 20, got.Max)
	assert.Equal(t, 2, got.Round)
	assert.ErrorIs(t, f.ops.UpdateMetric("m42", domain.MetricPatch{Name: &name}), domain.ErrUnknownMetric)
}

func TestRemoveMetricCascadesScores(t *testing.T) {
	f := newFixture(t, nil)
	team := f.ops.AddTeam("Alpha", TeamOptions{})
	m1, _ := f.ops.AddMetric("Speed", 10, 1)
	m2, _ := f.ops.AddMetric("Pitch", 10, 1)
	m3, _ := f.ops.AddMetric("Demo", 10, 2)
	for _, e := range []struct {
		round  int
		metric string
	}{{1, m1.ID}, {1, m2.ID}, {2, m3.ID}, {3, m2.ID}} {
		_, err := f.ops.SubmitScore(e.round, domain.ScoreEntry{TeamID: team.ID, MetricID: e.metric, Score: 3})
		require.NoError(t, err)
	}

	require.NoError(t, f.ops.RemoveMetric(m2.ID))

	s := f.store.Get()
	assert.Equal(t, -1, s.MetricIndex(m2.ID))
	for round := 1; round <= 3; round++ {
		for _, e := range s.Scores[round] {
			assert.NotEqual(t, m2.ID, e.MetricID)
		}
	}
	_, ok := s.LatestScore(1, team.ID, m1.ID)
	assert.True(t, ok)
	_, ok = s.LatestScore(2, team.ID, m3.ID)
	assert.True(t, ok)

	_, ok = f.doc(t, remote.ScoreCollection(1), remote.ScoreDocID(team.ID, m2.ID))
	assert.False(t, ok)
	_, ok = f.doc(t, remote.ScoreCollection(3), remote.ScoreDocID(team.ID, m2.ID))
	assert.False(t, ok)
	_, ok = f.doc(t, remote.ScoreCollection(1), remote.ScoreDocID(team.ID, m1.ID))
	assert.True(t, ok)
}

func TestRemoveTeamKeepsScoresByDefault(t *testing.T) {
	f := newFixture(t, nil)
	team := f.ops.AddTeam("Alpha", TeamOptions{})
	m, _ := f.ops.AddMetric("Speed", 10, 1)
	_, err := f.ops.SubmitScore(1, domain.ScoreEntry{TeamID: team.ID, MetricID: m.ID, Score: 4})
	require.NoError(t, err)

	require.NoError(t, f.ops.RemoveTeam(team.ID))
	assert.ErrorIs(t, f.ops.RemoveTeam(team.ID), domain.ErrUnknownTeam)

	s := f.store.Get()
	assert.NotContains(t, s.Teams, team.ID)
	assert.Len(t, s.Scores[1], 1)
}

func TestRemoveTeamCascadeWhenConfigured(t *testing.T) {
	f := newFixture(t, &config.Config{CascadeTeamRemoval: true, FinalistCount: 10})
	team := f.ops.AddTeam("Alpha", TeamOptions{})
	m, _ := f.ops.AddMetric("Speed", 10, 1)
	_, err := f.ops.SubmitScore(1, domain.ScoreEntry{TeamID: team.ID, MetricID: m.ID, Score: 4})
	require.NoError(t, err)
	_, err = f.ops.NotifyTeam(team.ID, "hello")
	require.NoError(t, err)
	f.ops.StartTeamTimer("A", team.ID)

	require.NoError(t, f.ops.RemoveTeam(team.ID))

	s := f.store.Get()
	assert.Empty(t, s.Scores[1])
	assert.Empty(t, s.Notifications)
	assert.Empty(t, s.TimerState.Teams)
	_, ok := f.doc(t, remote.ScoreCollection(1), remote.ScoreDocID(team.ID, m.ID))
	assert.False(t, ok)
}

func TestSubmitScoreLatestWins(t *testing.T) {
	f := newFixture(t, nil)
	team := f.ops.AddTeam("Alpha", TeamOptions{})
	m, _ := f.ops.AddMetric("Speed", 10, 1)

	first, err := f.ops.SubmitScore(1, domain.ScoreEntry{TeamID: team.ID, MetricID: m.ID, Score: 5, InvigilatorName: "Jo"})
	require.NoError(t, err)
	second, err := f.ops.SubmitScore(1, domain.ScoreEntry{TeamID: team.ID, MetricID: m.ID, Score: 8, InvigilatorName: "Jo"})
	require.NoError(t, err)
	assert.Greater(t, second.Timestamp, first.Timestamp)

	s := f.store.Get()
	e, ok := s.LatestScore(1, team.ID, m.ID)
	require.True(t, ok)
	assert.Equal(t, 8.0, e.Score)
	assert.True(t, e.Pending)
	require.Len(t, s.ScoreLog[1], 2)
	assert.Equal(t, 5.0, s.ScoreLog[1][0].Score)
	assert.Equal(t, 8.0, s.ScoreLog[1][1].Score)

	doc, ok := f.doc(t, remote.ScoreCollection(1), remote.ScoreDocID(team.ID, m.ID))
	require.True(t, ok)
	assert.Equal(t, 8.0, doc["score"])
}

func TestSubmitScoreValidation(t *testing.T) {
	f := newFixture(t, nil)
	team := f.ops.AddTeam("Alpha", TeamOptions{})
	m, _ := f.ops.AddMetric("Speed", 10, 1)

	_, err := f.ops.SubmitScore(0, domain.ScoreEntry{TeamID: team.ID, MetricID: m.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidRound)
	_, err = f.ops.SubmitScore(1, domain.ScoreEntry{TeamID: team.ID, MetricID: m.ID, Score: math.NaN()})
	assert.ErrorIs(t, err, domain.ErrInvalidScore)
	_, err = f.ops.SubmitScore(1, domain.ScoreEntry{TeamID: "T77", MetricID: m.ID})
	assert.ErrorIs(t, err, domain.ErrUnknownTeam)
	_, err = f.ops.SubmitScore(1, domain.ScoreEntry{TeamID: team.ID, MetricID: "m77"})
	assert.ErrorIs(t, err, domain.ErrUnknownMetric)
	assert.Empty(t, f.store.Get().Scores[1])
}

func TestDeleteScore(t *testing.T) {
	f := newFixture(t, nil)
	team := f.ops.AddTeam("Alpha", TeamOptions{})
	m, _ := f.ops.AddMetric("Speed", 10, 2)
	_, err := f.ops.SubmitScore(2, domain.ScoreEntry{TeamID: team.ID, MetricID: m.ID, Score: 5})
	require.NoError(t, err)

	require.NoError(t, f.ops.DeleteScore(2, team.ID, m.ID))
	_, ok := f.store.Get().LatestScore(2, team.ID, m.ID)
	assert.False(t, ok)
	_, ok = f.doc(t, remote.ScoreCollection(2), remote.ScoreDocID(team.ID, m.ID))
	assert.False(t, ok)
}

func seedTeamsWithTotals(t *testing.T, f *fixture, totals []float64) {
	t.Helper()
	f.store.Mutate(func(d *domain.AppState) {
		d.Metrics = []domain.Metric{{ID: "m1", Name: "R1", Max: 100, Round: 1}, {ID: "m2", Name: "R2", Max: 100, Round: 2}}
		for i, total := range totals {
			id := fmt.Sprintf("T%d", i+1)
			d.Teams[id] = domain.Team{ID: id, Name: id}
			d.UpsertScore(1, domain.ScoreEntry{TeamID: id, MetricID: "m1", Score: total / 2, Timestamp: 1})
			d.UpsertScore(2, domain.ScoreEntry{TeamID: id, MetricID: "m2", Score: total / 2, Timestamp: 1})
		}
	})
}

func TestAutoSelectFinalists(t *testing.T) {
	f := newFixture(t, nil)
	totals := []float64{10, 120, 30, 40, 150, 60, 70, 80, 90, 100, 110, 20}
	seedTeamsWithTotals(t, f, totals)

	changed := f.ops.AutoSelectFinalists()
	assert.Equal(t, 10, changed)

	s := f.store.Get()
	assert.False(t, s.Teams["T1"].Finalist)
	assert.False(t, s.Teams["T12"].Finalist)
	finalists := 0
	for _, team := range s.Teams {
		if team.Finalist {
			finalists++
		}
	}
	assert.Equal(t, 10, finalists)

	commits := 0
	unsub := f.store.Subscribe(func(*domain.AppState) { commits++ })
	defer unsub()
	assert.Equal(t, 0, f.ops.AutoSelectFinalists())
	assert.Equal(t, 0, commits)
}

func TestAutoSelectFinalistsTiesKeepIDOrder(t *testing.T) {
	f := newFixture(t, &config.Config{FinalistCount: 2})
	seedTeamsWithTotals(t, f, []float64{50, 50, 50})

	f.ops.AutoSelectFinalists()
	s := f.store.Get()
	assert.True(t, s.Teams["T1"].Finalist)
	assert.True(t, s.Teams["T2"].Finalist)
	assert.False(t, s.Teams["T3"].Finalist)
}

func TestExportScoresCSV(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Mutate(func(d *domain.AppState) {
		d.Teams["T2"] = domain.Team{ID: "T2", Name: "Beta"}
		d.Teams["T1"] = domain.Team{ID: "T1", Name: "Alpha"}
		d.Metrics = []domain.Metric{
			{ID: "m1", Name: "MetricA", Max: 5, Round: 1},
			{ID: "m2", Name: "MetricB", Max: 10, Round: 1},
			{ID: "m3", Name: "Other", Max: 10, Round: 2},
		}
		d.UpsertScore(1, domain.ScoreEntry{TeamID: "T1", MetricID: "m1", Score: 4, Timestamp: 1})
		d.UpsertScore(1, domain.ScoreEntry{TeamID: "T1", MetricID: "m2", Score: 6, Timestamp: 2})
		d.UpsertScore(1, domain.ScoreEntry{TeamID: "T2", MetricID: "m1", Score: 5, Timestamp: 3, Pending: true})
	})

	out, err := f.ops.ExportScoresCSV(1)
	require.NoError(t, err)
	assert.Equal(t, "teamId,MetricA,MetricB,total\nT1,4,6,10\nT2,0,0,0\n", out)
}

func TestExportExcludesReportAfterRoundOne(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Mutate(func(d *domain.AppState) {
		d.Teams["T1"] = domain.Team{ID: "T1"}
		d.Metrics = []domain.Metric{
			{ID: "m1", Name: "Report", Max: 5, Round: 2},
			{ID: "m2", Name: "Demo", Max: 10, Round: 2},
		}
		d.UpsertScore(2, domain.ScoreEntry{TeamID: "T1", MetricID: "m2", Score: 7.5, Timestamp: 1})
	})

	out, err := f.ops.ExportScoresCSV(2)
	require.NoError(t, err)
	assert.Equal(t, "teamId,Demo,total\nT1,7.5,7.5\n", out)
}

func TestNotifyTeamUsesTemporaryID(t *testing.T) {
	f := newFixture(t, nil)
	team := f.ops.AddTeam("Alpha", TeamOptions{})

	n, err := f.ops.NotifyTeam(team.ID, "  Please come to Room A ")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(n.ID, "temp-"))
	assert.Equal(t, "Please come to Room A", n.Message)
	assert.Equal(t, f.clock.UnixMilli(), n.Timestamp)
	require.Len(t, f.store.Get().Notifications, 1)

	_, err = f.ops.NotifyTeam(team.ID, " ")
	assert.ErrorIs(t, err, domain.ErrBlankMessage)
	_, err = f.ops.NotifyTeam("T9", "hi")
	assert.ErrorIs(t, err, domain.ErrUnknownTeam)

	f.pusher.Wait()
	empty, err := f.mem.Empty(context.Background(), remote.CollNotifications)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestNotificationReadAndDelete(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Mutate(func(d *domain.AppState) {
		d.Notifications = []domain.Notification{{ID: "n1", TeamID: "T1", Message: "a"}}
	})

	f.ops.MarkNotificationRead("n1")
	f.ops.MarkNotificationRead("n1")
	assert.Equal(t, []string{"n1"}, f.store.Get().ReadNotifications)

	f.ops.DeleteNotification("n1")
	assert.Empty(t, f.store.Get().Notifications)
}

func TestConfigSetters(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.ops.SetActiveRound(3))
	assert.ErrorIs(t, f.ops.SetActiveRound(4), domain.ErrInvalidRound)
	f.ops.SetPublicView(true)
	f.ops.SetAutoPingEnabled(false)
	assert.Equal(t, 60, f.ops.SetAutoPingLeadMinutes(90))
	assert.Equal(t, 5, f.ops.SetAutoPingLeadMinutes(0))
	assert.ErrorIs(t, f.ops.SetTimerConfig(domain.TimerConfig{SessionDurationSec: 0, TeamDurationSec: 10}), domain.ErrInvalidDuration)
	require.NoError(t, f.ops.SetTimerConfig(domain.TimerConfig{SessionDurationSec: 7200, TeamDurationSec: 300}))

	s := f.store.Get()
	assert.Equal(t, 3, s.ActiveRound)
	assert.True(t, s.PublicViewEnabled)
	assert.False(t, s.AutoPingEnabled)
	assert.Equal(t, 5, s.AutoPingLeadMinutes)
	assert.Equal(t, 300, s.TimerConfig.TeamDurationSec)

	doc, ok := f.doc(t, remote.CollAppState, remote.ConfigDocID)
	require.True(t, ok)
	assert.Equal(t, 3, doc["activeRound"])
	assert.Equal(t, 5, doc["autoPingLeadMinutes"])
}

func TestTimers(t *testing.T) {
	f := newFixture(t, nil)
	start := f.clock

	f.ops.StartTeamTimer("A", "T1")
	f.clock = start.Add(90 * time.Second)
	f.ops.StopTeamTimer("A", "T1")
	f.clock = start.Add(10 * time.Minute)

	timer := f.store.Get().TimerState.Teams["A:T1"]
	assert.False(t, timer.IsRunning)
	assert.Equal(t, int64(90_000), timer.Elapsed(f.clock.UnixMilli()))

	f.ops.ResetTeamTimer("A", "T1")
	assert.NotContains(t, f.store.Get().TimerState.Teams, "A:T1")

	f.ops.StartSession()
	f.clock = f.clock.Add(time.Minute)
	assert.Equal(t, int64(60_000), f.store.Get().TimerState.Session.Elapsed(f.clock.UnixMilli()))
	f.ops.StopSession()
	f.ops.ResetSession()
	assert.Equal(t, int64(0), f.store.Get().TimerState.Session.Elapsed(f.clock.UnixMilli()))
}

func TestRooms(t *testing.T) {
	f := newFixture(t, nil)

	room, err := f.ops.AddRoom("A", "Room 1", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Room A", room.Title)
	assert.Equal(t, "2026-03-14T10:00:00Z", room.UpdatedAt)

	_, err = f.ops.AddRoom("A", "dup", "")
	assert.ErrorIs(t, err, domain.ErrRoomExists)
	_, err = f.ops.AddRoom("  ", "x", "")
	assert.ErrorIs(t, err, domain.ErrBlankID)

	judge := "Dr. Rao"
	room, err = f.ops.UpdateRoom("A", domain.RoomPatch{Invigilator: &judge})
	require.NoError(t, err)
	assert.Equal(t, "Room A", room.Title)
	assert.Equal(t, "Dr. Rao", room.Invigilator)

	require.NoError(t, f.ops.RemoveRoom("A"))
	assert.ErrorIs(t, f.ops.RemoveRoom("A"), domain.ErrUnknownRoom)
}

func TestAccessPolicy(t *testing.T) {
	f := newFixture(t, &config.Config{AdminPasskey: "admin-key", FinalistCount: 10})
	team := f.ops.AddTeam("Alpha", TeamOptions{Username: "alpha", Password: "pw1"})
	_, err := f.ops.AddRoom("A", "Room 1", "roompw")
	require.NoError(t, err)

	got, err := f.ops.LoginTeam(team.ID, "alpha", "pw1")
	require.NoError(t, err)
	assert.Equal(t, team.ID, got.ID)
	_, err = f.ops.LoginTeam(team.ID, "alpha", "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	got, err = f.ops.LoginTeamByPassword("pw1")
	require.NoError(t, err)
	assert.Equal(t, team.ID, got.ID)
	_, err = f.ops.LoginTeamByPassword("")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	assert.NoError(t, f.ops.CheckPasskey(RoleAdmin, "admin-key"))
	assert.ErrorIs(t, f.ops.CheckPasskey(RoleAdmin, "guess"), domain.ErrInvalidCredentials)
	assert.ErrorIs(t, f.ops.CheckPasskey(RoleInvigilator, ""), domain.ErrInvalidCredentials)
	assert.ErrorIs(t, f.ops.CheckPasskey("root", "x"), domain.ErrUnknownRole)

	_, err = f.ops.LoginRoom("A", "roompw")
	assert.NoError(t, err)
	_, err = f.ops.LoginRoom("A", "bad")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.ops.LoginRoom("Z", "")
	assert.ErrorIs(t, err, domain.ErrUnknownRoom)
}

func TestSeedDefaultsOnlyWhenEmpty(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	seeded, err := f.ops.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)
	doc, ok := f.mem.Doc(remote.CollAppState, remote.ConfigDocID)
	require.True(t, ok)
	assert.Equal(t, 1, doc["activeRound"])

	_, err = f.ops.AddMetric("Speed", 10, 1)
	require.NoError(t, err)
	f.pusher.Wait()
	seeded, err = f.ops.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestCommitScoresFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, nil)
	f.mem.FailWrites(remote.ScoreCollection(1), errors.New("offline"))

	err := f.ops.CommitScores(context.Background(), map[int][]domain.ScoreEntry{
		1: {{TeamID: "T1", MetricID: "m1", Score: 3, Timestamp: 1}},
	})
	require.ErrorContains(t, err, "offline")
	assert.Empty(t, f.store.Get().Scores[1])
}

func TestRetryDesynced(t *testing.T) {
	f := newFixture(t, nil)
	f.mem.FailWrites(remote.CollTeams, errors.New("offline"))
	team := f.ops.AddTeam("Alpha", TeamOptions{})
	f.pusher.Wait()

	// the adapter normally records this through the pusher callback
	f.store.Mutate(func(d *domain.AppState) {
		d.Desynced[remote.DocKey(remote.CollTeams, team.ID)] = "offline"
		d.Desynced[remote.DocKey(remote.CollRooms, "gone")] = "offline"
	})
	f.mem.FailWrites(remote.CollTeams, nil)

	assert.Equal(t, 2, f.ops.RetryDesynced())
	doc, ok := f.doc(t, remote.CollTeams, team.ID)
	require.True(t, ok)
	assert.Equal(t, "Alpha", doc["name"])
}
