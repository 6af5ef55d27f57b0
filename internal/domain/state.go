package domain

import (
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

var (
	roomNumberRe    = regexp.MustCompile(`(?i)^Room\s+([1-5])$`)
	numericSuffixRe = regexp.MustCompile(`(\d+)$`)
	legacyRoundRe   = regexp.MustCompile(`^r([23])_`)
)

// NormalizeRoom canonicalizes "Room 1".."Room 5" to "Room A".."Room E" and trims
// everything else.
func NormalizeRoom(room string) string {
	trimmed := strings.TrimSpace(room)
	m := roomNumberRe.FindStringSubmatch(trimmed)
	if m == nil {
		return trimmed
	}
	n, _ := strconv.Atoi(m[1])
	return "Room " + string(rune('A'+n-1))
}

// NumericSuffix returns the trailing number of an id such as "T12" or "m7".
func NumericSuffix(id string) (int, bool) {
	m := numericSuffixRe.FindStringSubmatch(id)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func nextID(prefix string, ids []string) string {
	maxN := 0
	for _, id := range ids {
		if n, ok := NumericSuffix(id); ok && n > maxN {
			maxN = n
		}
	}
	return fmt.Sprintf("%s%d", prefix, maxN+1)
}

func (s *AppState) NextTeamID() string {
	return nextID("T", slices.Collect(maps.Keys(s.Teams)))
}

func (s *AppState) NextMetricID() string {
	ids := make([]string, len(s.Metrics))
	for i, m := range s.Metrics {
		ids[i] = m.ID
	}
	return nextID("m", ids)
}

// CoerceMax floors a metric maximum to a positive integer no larger than
// math.MaxInt32.
func CoerceMax(v float64) int {
	if math.IsNaN(v) || v < 1 {
		return 1
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(v))
}

// NormalizeMetric resolves the round of a metric, reading the legacy r2_/r3_ id
// prefix when no explicit round is stored.
func NormalizeMetric(m Metric) Metric {
	if ValidRound(m.Round) {
		return m
	}
	m.Round = 1
	if sub := legacyRoundRe.FindStringSubmatch(m.ID); sub != nil {
		m.Round, _ = strconv.Atoi(sub[1])
	}
	return m
}

func (s *AppState) MetricsForRound(round int) []Metric {
	var out []Metric
	for _, m := range s.Metrics {
		if NormalizeMetric(m).Round == round {
			out = append(out, m)
		}
	}
	return out
}

func (s *AppState) MetricIndex(id string) int {
	return slices.IndexFunc(s.Metrics, func(m Metric) bool { return m.ID == id })
}

// SortedTeams orders teams by the numeric suffix of their id, then by id.
func (s *AppState) SortedTeams() []Team {
	teams := slices.Collect(maps.Values(s.Teams))
	sort.Slice(teams, func(i, j int) bool {
		a, _ := NumericSuffix(teams[i].ID)
		b, _ := NumericSuffix(teams[j].ID)
		if a != b {
			return a < b
		}
		return teams[i].ID < teams[j].ID
	})
	return teams
}

func sameKey(e ScoreEntry, teamID, metricID string) bool {
	return e.TeamID == teamID && e.MetricID == metricID
}

// UpsertScore replaces the current entry for (team, metric) in the round and
// appends it to the audit log unless the same write was already logged.
func (s *AppState) UpsertScore(round int, entry ScoreEntry) {
	current := s.Scores[round]
	if i := slices.IndexFunc(current, func(e ScoreEntry) bool { return sameKey(e, entry.TeamID, entry.MetricID) }); i >= 0 {
		current[i] = entry
	} else {
		current = append(current, entry)
	}
	s.Scores[round] = current

	log := s.ScoreLog[round]
	for i := len(log) - 1; i >= 0; i-- {
		if sameKey(log[i], entry.TeamID, entry.MetricID) {
			if log[i].Timestamp == entry.Timestamp {
				log[i] = entry
				return
			}
			break
		}
	}
	s.ScoreLog[round] = append(log, entry)
}

func (s *AppState) RemoveScore(round int, teamID, metricID string) {
	s.Scores[round] = slices.DeleteFunc(s.Scores[round], func(e ScoreEntry) bool {
		return sameKey(e, teamID, metricID)
	})
}

// PurgeMetric removes every current and logged score that references the metric.
func (s *AppState) PurgeMetric(metricID string) {
	drop := func(e ScoreEntry) bool { return e.MetricID == metricID }
	for r := range s.Scores {
		s.Scores[r] = slices.DeleteFunc(s.Scores[r], drop)
	}
	for r := range s.ScoreLog {
		s.ScoreLog[r] = slices.DeleteFunc(s.ScoreLog[r], drop)
	}
}

// PurgeTeam removes the team's scores in every round and its notifications.
func (s *AppState) PurgeTeam(teamID string) {
	drop := func(e ScoreEntry) bool { return e.TeamID == teamID }
	for r := range s.Scores {
		s.Scores[r] = slices.DeleteFunc(s.Scores[r], drop)
	}
	for r := range s.ScoreLog {
		s.ScoreLog[r] = slices.DeleteFunc(s.ScoreLog[r], drop)
	}
	s.Notifications = slices.DeleteFunc(s.Notifications, func(n Notification) bool { return n.TeamID == teamID })
}

// LatestScore returns the effective score for (team, metric) in a round. Later
// array positions win when duplicates are present.
func (s *AppState) LatestScore(round int, teamID, metricID string) (ScoreEntry, bool) {
	entries := s.Scores[round]
	for i := len(entries) - 1; i >= 0; i-- {
		if sameKey(entries[i], teamID, metricID) {
			return entries[i], true
		}
	}
	return ScoreEntry{}, false
}

// RoundTotal sums the latest score per round metric for a team.
func (s *AppState) RoundTotal(round int, teamID string) float64 {
	var total float64
	for _, m := range s.MetricsForRound(round) {
		if e, ok := s.LatestScore(round, teamID, m.ID); ok {
			total += e.Score
		}
	}
	return total
}

func (s *AppState) HasNotification(teamID, message string) bool {
	return slices.ContainsFunc(s.Notifications, func(n Notification) bool {
		return n.TeamID == teamID && n.Message == message
	})
}

// Clone returns a deep copy of the state.
func (s *AppState) Clone() *AppState {
	c := *s
	c.Metrics = slices.Clone(s.Metrics)
	c.Rooms = maps.Clone(s.Rooms)
	c.Teams = make(map[string]Team, len(s.Teams))
	for id, t := range s.Teams {
		t.Submissions = maps.Clone(t.Submissions)
		c.Teams[id] = t
	}
	c.Scores = cloneRounds(s.Scores)
	c.ScoreLog = cloneRounds(s.ScoreLog)
	c.Notifications = slices.Clone(s.Notifications)
	c.ReadNotifications = slices.Clone(s.ReadNotifications)
	c.TimerState.Teams = maps.Clone(s.TimerState.Teams)
	c.Desynced = maps.Clone(s.Desynced)
	c.ensureMaps()
	return &c
}

func cloneRounds(in map[int][]ScoreEntry) map[int][]ScoreEntry {
	out := make(map[int][]ScoreEntry, len(in))
	for r, entries := range in {
		out[r] = slices.Clone(entries)
	}
	return out
}

// ensureMaps fills nil collections, which a hydrated snapshot may carry.
func (s *AppState) ensureMaps() {
	if s.Rooms == nil {
		s.Rooms = map[string]Room{}
	}
	if s.Teams == nil {
		s.Teams = map[string]Team{}
	}
	if s.Scores == nil {
		s.Scores = map[int][]ScoreEntry{}
	}
	if s.ScoreLog == nil {
		s.ScoreLog = map[int][]ScoreEntry{}
	}
	if s.TimerState.Teams == nil {
		s.TimerState.Teams = map[string]Timer{}
	}
	if s.Desynced == nil {
		s.Desynced = map[string]string{}
	}
}

// Normalize repairs a hydrated snapshot: nil maps, out-of-range scalars and legacy
// metric rounds.
func (s *AppState) Normalize() {
	s.ensureMaps()
	if !ValidRound(s.ActiveRound) {
		s.ActiveRound = 1
	}
	if s.AutoPingLeadMinutes < 1 || s.AutoPingLeadMinutes > 60 {
		s.AutoPingLeadMinutes = DefaultLeadMinutes
	}
	for i, m := range s.Metrics {
		s.Metrics[i] = NormalizeMetric(m)
	}
}
