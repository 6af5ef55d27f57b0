package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"dabbathon/internal/constants"
	"dabbathon/internal/domain"
	"dabbathon/internal/livesync"
	"dabbathon/internal/remote"
)

// SubmitScore upserts the entry for (team, metric) in the round with a fresh
// timestamp. The local copy stays pending until the backend echoes it.
func (o *Operations) SubmitScore(round int, entry domain.ScoreEntry) (domain.ScoreEntry, error) {
	if !domain.ValidRound(round) {
		return domain.ScoreEntry{}, domain.ErrInvalidRound
	}
	if math.IsNaN(entry.Score) || math.IsInf(entry.Score, 0) {
		return domain.ScoreEntry{}, domain.ErrInvalidScore
	}
	entry.TeamID = strings.TrimSpace(entry.TeamID)
	entry.MetricID = strings.TrimSpace(entry.MetricID)
	entry.InvigilatorName = strings.TrimSpace(entry.InvigilatorName)

	var err error
	o.store.Mutate(func(d *domain.AppState) {
		if _, ok := d.Teams[entry.TeamID]; !ok {
			err = domain.ErrUnknownTeam
			return
		}
		if d.MetricIndex(entry.MetricID) < 0 {
			err = domain.ErrUnknownMetric
			return
		}
		entry.Timestamp = o.nowMillis()
		// keep audit order strict when two writes land in the same millisecond
		if prev, ok := d.LatestScore(round, entry.TeamID, entry.MetricID); ok && prev.Timestamp >= entry.Timestamp {
			entry.Timestamp = prev.Timestamp + 1
		}
		entry.Pending = true
		d.UpsertScore(round, entry)
	})
	if err != nil {
		return domain.ScoreEntry{}, err
	}

	o.push(set(remote.ScoreCollection(round), remote.ScoreDocID(entry.TeamID, entry.MetricID), livesync.EncodeScore(entry)))
	o.logger.Debug().
		Int("round", round).
		Str("team_id", entry.TeamID).
		Str("metric_id", entry.MetricID).
		Float64("score", entry.Score).
		Msg("score submitted")
	return entry, nil
}

func (o *Operations) DeleteScore(round int, teamID, metricID string) error {
	if !domain.ValidRound(round) {
		return domain.ErrInvalidRound
	}
	o.store.Mutate(func(d *domain.AppState) {
		d.RemoveScore(round, teamID, metricID)
	})
	o.push(del(remote.ScoreCollection(round), remote.ScoreDocID(teamID, metricID)))
	return nil
}

// CommitScores writes staged entries as one batch and, once the backend accepts
// it, folds them into the store with the same upsert rule as live changes.
func (o *Operations) CommitScores(ctx context.Context, staged map[int][]domain.ScoreEntry) error {
	var writes []remote.Write
	for round, entries := range staged {
		if !domain.ValidRound(round) {
			return fmt.Errorf("round %d: %w", round, domain.ErrInvalidRound)
		}
		for _, e := range entries {
			writes = append(writes, set(remote.ScoreCollection(round), remote.ScoreDocID(e.TeamID, e.MetricID), livesync.EncodeScore(e)))
		}
	}
	if len(writes) == 0 {
		return nil
	}

	if o.pusher != nil {
		if err := o.pusher.Commit(ctx, writes); err != nil {
			return fmt.Errorf("failed to commit %d scores: %w", len(writes), err)
		}
	}
	o.store.Mutate(func(d *domain.AppState) {
		for round, entries := range staged {
			for _, e := range entries {
				d.UpsertScore(round, e)
			}
		}
	})
	return nil
}

// ExportScoresCSV renders one row per team, ordered by id number, with the
// latest confirmed score per round metric and a total. Report metrics only
// appear for round 1.
func (o *Operations) ExportScoresCSV(round int) (string, error) {
	if !domain.ValidRound(round) {
		return "", domain.ErrInvalidRound
	}
	s := o.store.Get()

	var metrics []domain.Metric
	for _, m := range s.MetricsForRound(round) {
		if round != 1 && strings.EqualFold(strings.TrimSpace(m.Name), "report") {
			continue
		}
		metrics = append(metrics, m)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"teamId"}
	for _, m := range metrics {
		header = append(header, m.Name)
	}
	header = append(header, "total")
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, t := range s.SortedTeams() {
		row := []string{t.ID}
		var total float64
		for _, m := range metrics {
			v := confirmedScore(s.Scores[round], t.ID, m.ID)
			total += v
			row = append(row, formatNumber(v))
		}
		row = append(row, formatNumber(total))
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write csv row for %s: %w", t.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to render csv: %w", err)
	}
	return buf.String(), nil
}

func confirmedScore(entries []domain.ScoreEntry, teamID, metricID string) float64 {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.TeamID == teamID && e.MetricID == metricID && !e.Pending {
			return e.Score
		}
	}
	return 0
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// AutoSelectFinalists flags the top teams by combined round 1 and round 2 total
// and clears the flag elsewhere. Only teams whose flag changes are written; the
// count of such teams is returned.
func (o *Operations) AutoSelectFinalists() int {
	n := constants.DefaultFinalistCount
	if o.cfg != nil {
		n = o.cfg.FinalistCount
	}

	s := o.store.Get()
	teams := s.SortedTeams()
	totals := make(map[string]float64, len(teams))
	for _, t := range teams {
		totals[t.ID] = s.RoundTotal(1, t.ID) + s.RoundTotal(2, t.ID)
	}
	sort.SliceStable(teams, func(i, j int) bool {
		return totals[teams[i].ID] > totals[teams[j].ID]
	})

	changed := map[string]bool{}
	for i, t := range teams {
		want := i < n
		if t.Finalist != want {
			changed[t.ID] = want
		}
	}
	if len(changed) == 0 {
		return 0
	}

	var writes []remote.Write
	o.store.Mutate(func(d *domain.AppState) {
		for id, finalist := range changed {
			t, ok := d.Teams[id]
			if !ok {
				continue
			}
			t.Finalist = finalist
			d.Teams[id] = t
			writes = append(writes, merge(remote.CollTeams, id, map[string]any{"finalist": finalist}))
		}
	})
	o.push(writes...)
	o.logger.Info().Int("finalists", n).Int("changed", len(writes)).Msg("finalists selected")
	return len(writes)
}
