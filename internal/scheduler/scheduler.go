package scheduler

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"dabbathon/internal/config"
	"dabbathon/internal/constants"
	"dabbathon/internal/domain"
	"dabbathon/internal/metrics"

	"github.com/rs/zerolog"
)

type StateSource interface {
	Get() *domain.AppState
}

type Notifier interface {
	NotifyTeam(teamID, message string) (domain.Notification, error)
}

// MarkerStore persists which (team, slot, lead) reminders were already sent.
type MarkerStore interface {
	Has(ctx context.Context, teamID, marker string) (bool, error)
	Mark(ctx context.Context, teamID, marker string) error
}

// Scheduler sends slot reminders. Each tick reads the clock afresh; a tick
// that arrives while a sweep is still running is dropped.
type Scheduler struct {
	state      StateSource
	notifier   Notifier
	markers    MarkerStore
	interval   time.Duration
	urgentLead int
	now        func() time.Time
	running    atomic.Bool
	logger     zerolog.Logger
}

func New(state StateSource, notifier Notifier, markers MarkerStore, cfg *config.Config, logger zerolog.Logger) *Scheduler {
	interval := constants.DefaultAutoPingInterval
	urgent := constants.DefaultUrgentLeadMinutes
	if cfg != nil && cfg.AutoPingInterval > 0 {
		interval = cfg.AutoPingInterval
	}
	if cfg != nil && cfg.AutoPingUrgentLeadMinutes > 0 {
		urgent = cfg.AutoPingUrgentLeadMinutes
	}
	return &Scheduler{
		state:      state,
		notifier:   notifier,
		markers:    markers,
		interval:   interval,
		urgentLead: urgent,
		now:        time.Now,
		logger:     logger.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Run ticks until ctx is cancelled and waits for an in-flight sweep.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	s.logger.Info().Dur("interval", s.interval).Int("urgent_lead_minutes", s.urgentLead).Msg("auto-ping scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("auto-ping scheduler stopped")
			return nil
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Tick(ctx)
			}()
		}
	}
}

// Tick runs one sweep unless the previous one is still in progress.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.SchedulerTicksSkipped.Inc()
		s.logger.Debug().Msg("previous sweep still running, skipping tick")
		return
	}
	defer s.running.Store(false)
	s.Sweep(ctx)
}

// Sweep sends every reminder that is due and not yet marked, and returns how
// many were sent.
func (s *Scheduler) Sweep(ctx context.Context) int {
	state := s.state.Get()
	if !state.AutoPingEnabled {
		return 0
	}
	now := s.now()
	leads := Leads(state, s.urgentLead)

	sent := 0
	for _, t := range state.SortedTeams() {
		start, ok := domain.ParseSlotStart(t.SlotTime, now)
		if !ok {
			continue
		}
		diff := start.Sub(now)
		if diff <= 0 {
			continue
		}

		for _, lead := range leads {
			if diff > time.Duration(lead)*time.Minute {
				continue
			}
			marker := Marker(t.SlotTime, lead)
			done, err := s.markers.Has(ctx, t.ID, marker)
			if err != nil {
				s.logger.Warn().Err(err).Str("team_id", t.ID).Str("marker", marker).Msg("failed to read reminder marker")
				continue
			}
			if done {
				continue
			}

			msg := Message(lead, s.urgentLead, start, t.SlotTime)
			if _, err := s.notifier.NotifyTeam(t.ID, msg); err != nil {
				s.logger.Warn().Err(err).Str("team_id", t.ID).Int("lead_minutes", lead).Msg("failed to send reminder")
				continue
			}
			if err := s.markers.Mark(ctx, t.ID, marker); err != nil {
				s.logger.Warn().Err(err).Str("team_id", t.ID).Str("marker", marker).Msg("failed to record reminder marker")
			}
			metrics.AutoPingsSent.WithLabelValues(strconv.Itoa(lead)).Inc()
			s.logger.Info().Str("team_id", t.ID).Str("slot", t.SlotTime).Int("lead_minutes", lead).Msg("reminder sent")
			sent++
		}
	}
	return sent
}

// Leads returns the configured reminder lead followed by the urgent lead.
func Leads(state *domain.AppState, urgentLead int) []int {
	lead := state.AutoPingLeadMinutes
	if lead <= 0 {
		lead = domain.DefaultLeadMinutes
	}
	if urgentLead <= 0 || urgentLead == lead {
		return []int{lead}
	}
	return []int{lead, urgentLead}
}

// Marker is the dedup key for one reminder of a slot.
func Marker(slotLabel string, lead int) string {
	return fmt.Sprintf("%s@%dm", slotLabel, lead)
}

func Message(lead, urgentLead int, start time.Time, slotLabel string) string {
	hhmm := start.Format("15:04")
	if lead == urgentLead {
		return fmt.Sprintf("⚡ %d minutes! Your slot at %s (%s) is about to start. Head over now!", lead, hhmm, slotLabel)
	}
	return fmt.Sprintf("You're up in %d minutes for your presentation slot at %s (%s). Please be ready.", lead, hhmm, slotLabel)
}

type QueuedPing struct {
	TeamID       string `json:"teamId"`
	SlotTime     string `json:"slotTime"`
	MinutesUntil int    `json:"minutesUntil"`
	LeadMinutes  int    `json:"leadMinutes"`
	Message      string `json:"message"`
}

// QueuedAutoPings lists reminders whose window is open and whose exact message
// has not been sent to the team yet. It reads state only.
func QueuedAutoPings(state *domain.AppState, now time.Time, urgentLead int) []QueuedPing {
	if !state.AutoPingEnabled {
		return nil
	}
	leads := Leads(state, urgentLead)

	var out []QueuedPing
	for _, t := range state.SortedTeams() {
		start, ok := domain.ParseSlotStart(t.SlotTime, now)
		if !ok {
			continue
		}
		diff := start.Sub(now)
		if diff <= 0 {
			continue
		}
		for _, lead := range leads {
			if diff > time.Duration(lead)*time.Minute {
				continue
			}
			msg := Message(lead, urgentLead, start, t.SlotTime)
			if state.HasNotification(t.ID, msg) {
				continue
			}
			out = append(out, QueuedPing{
				TeamID:       t.ID,
				SlotTime:     t.SlotTime,
				MinutesUntil: int(math.Ceil(diff.Minutes())),
				LeadMinutes:  lead,
				Message:      msg,
			})
		}
	}
	return out
}

// Queued evaluates QueuedAutoPings against the current state and clock.
func (s *Scheduler) Queued() []QueuedPing {
	return QueuedAutoPings(s.state.Get(), s.now(), s.urgentLead)
}
