package service

import "dabbathon/internal/domain"

// Timers are process-local and never written upstream.

func (o *Operations) StartSession() {
	now := o.nowMillis()
	o.store.Mutate(func(d *domain.AppState) {
		d.TimerState.Session = domain.Timer{StartedAt: now, IsRunning: true}
	})
}

func (o *Operations) StopSession() {
	now := o.nowMillis()
	o.store.Mutate(func(d *domain.AppState) {
		d.TimerState.Session = pause(d.TimerState.Session, now)
	})
}

func (o *Operations) ResetSession() {
	o.store.Mutate(func(d *domain.AppState) {
		d.TimerState.Session = domain.Timer{}
	})
}

func (o *Operations) StartTeamTimer(roomID, teamID string) {
	now := o.nowMillis()
	o.store.Mutate(func(d *domain.AppState) {
		d.TimerState.Teams[domain.TimerKey(roomID, teamID)] = domain.Timer{StartedAt: now, IsRunning: true}
	})
}

func (o *Operations) StopTeamTimer(roomID, teamID string) {
	now := o.nowMillis()
	key := domain.TimerKey(roomID, teamID)
	o.store.Mutate(func(d *domain.AppState) {
		if t, ok := d.TimerState.Teams[key]; ok {
			d.TimerState.Teams[key] = pause(t, now)
		}
	})
}

func (o *Operations) ResetTeamTimer(roomID, teamID string) {
	o.store.Mutate(func(d *domain.AppState) {
		delete(d.TimerState.Teams, domain.TimerKey(roomID, teamID))
	})
}

func pause(t domain.Timer, now int64) domain.Timer {
	if !t.IsRunning {
		return t
	}
	t.IsRunning = false
	t.PausedAt = now
	return t
}
