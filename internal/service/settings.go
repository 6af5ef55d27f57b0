package service

import (
	"dabbathon/internal/domain"
	"dabbathon/internal/livesync"
	"dabbathon/internal/remote"
)

func (o *Operations) pushConfig(fields map[string]any) {
	o.push(merge(remote.CollAppState, remote.ConfigDocID, fields))
}

func (o *Operations) SetActiveRound(round int) error {
	if !domain.ValidRound(round) {
		return domain.ErrInvalidRound
	}
	o.store.Mutate(func(d *domain.AppState) { d.ActiveRound = round })
	o.pushConfig(map[string]any{"activeRound": round})
	return nil
}

func (o *Operations) SetPublicView(enabled bool) {
	o.store.Mutate(func(d *domain.AppState) { d.PublicViewEnabled = enabled })
	o.pushConfig(map[string]any{"publicViewEnabled": enabled})
}

func (o *Operations) SetAutoPingEnabled(enabled bool) {
	o.store.Mutate(func(d *domain.AppState) { d.AutoPingEnabled = enabled })
	o.pushConfig(map[string]any{"autoPingEnabled": enabled})
}

// SetAutoPingLeadMinutes clamps to [1,60]; zero selects the default.
func (o *Operations) SetAutoPingLeadMinutes(minutes int) int {
	m := livesync.ClampLeadMinutes(minutes)
	o.store.Mutate(func(d *domain.AppState) { d.AutoPingLeadMinutes = m })
	o.pushConfig(map[string]any{"autoPingLeadMinutes": m})
	return m
}

func (o *Operations) SetTimerConfig(cfg domain.TimerConfig) error {
	if cfg.SessionDurationSec <= 0 || cfg.TeamDurationSec <= 0 {
		return domain.ErrInvalidDuration
	}
	o.store.Mutate(func(d *domain.AppState) { d.TimerConfig = cfg })
	o.pushConfig(map[string]any{"timerConfig": map[string]any{
		"sessionDurationSec": cfg.SessionDurationSec,
		"teamDurationSec":    cfg.TeamDurationSec,
	}})
	return nil
}
