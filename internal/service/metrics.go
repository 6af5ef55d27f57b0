package service

import (
	"strings"

	"dabbathon/internal/domain"
	"dabbathon/internal/livesync"
	"dabbathon/internal/remote"
)

// AddMetric creates a metric with the next m<n> id. A round of 0 means round 1.
func (o *Operations) AddMetric(name string, max float64, round int) (domain.Metric, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Metric{}, domain.ErrBlankName
	}
	if round == 0 {
		round = 1
	}
	if !domain.ValidRound(round) {
		return domain.Metric{}, domain.ErrInvalidRound
	}

	var metric domain.Metric
	o.store.Mutate(func(d *domain.AppState) {
		metric = domain.Metric{
			ID:    d.NextMetricID(),
			Name:  name,
			Max:   domain.CoerceMax(max),
			Round: round,
		}
		d.Metrics = append(d.Metrics, metric)
	})
	o.push(set(remote.CollMetrics, metric.ID, livesync.EncodeMetric(metric)))
	o.logger.Info().Str("metric_id", metric.ID).Str("name", name).Int("round", round).Msg("metric added")
	return metric, nil
}

func (o *Operations) UpdateMetric(id string, patch domain.MetricPatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return domain.ErrBlankName
	}
	if patch.Round != nil && !domain.ValidRound(*patch.Round) {
		return domain.ErrInvalidRound
	}

	var metric domain.Metric
	found := false
	o.store.Mutate(func(d *domain.AppState) {
		i := d.MetricIndex(id)
		if i < 0 {
			return
		}
		found = true
		m := domain.NormalizeMetric(d.Metrics[i])
		if patch.Name != nil {
			m.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Max != nil {
			m.Max = domain.CoerceMax(float64(*patch.Max))
		}
		if patch.Round != nil {
			m.Round = *patch.Round
		}
		d.Metrics[i] = m
		metric = m
	})
	if !found {
		return domain.ErrUnknownMetric
	}
	o.push(merge(remote.CollMetrics, id, livesync.EncodeMetric(metric)))
	return nil
}

// RemoveMetric deletes the metric and every score that references it, in all rounds.
func (o *Operations) RemoveMetric(id string) error {
	var (
		found  bool
		writes []remote.Write
	)
	o.store.Mutate(func(d *domain.AppState) {
		i := d.MetricIndex(id)
		if i < 0 {
			return
		}
		found = true
		d.Metrics = append(d.Metrics[:i:i], d.Metrics[i+1:]...)
		writes = append(writes, del(remote.CollMetrics, id))
		for round, entries := range d.Scores {
			for _, e := range entries {
				if e.MetricID == id {
					writes = append(writes, del(remote.ScoreCollection(round), remote.ScoreDocID(e.TeamID, e.MetricID)))
				}
			}
		}
		d.PurgeMetric(id)
	})
	if !found {
		return domain.ErrUnknownMetric
	}
	o.push(writes...)
	o.logger.Info().Str("metric_id", id).Int("writes", len(writes)).Msg("metric removed")
	return nil
}
