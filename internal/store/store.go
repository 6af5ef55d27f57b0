package store

import (
	"sync"
	"sync/atomic"

	"dabbathon/internal/domain"
	"dabbathon/internal/metrics"

	"github.com/rs/zerolog"
)

// Persister writes the committed state to the local cache. Failures are logged
// and never reach the mutation caller.
type Persister interface {
	SaveSnapshot(state *domain.AppState) error
}

type Listener func(state *domain.AppState)

type subscription struct {
	id int
	fn Listener
}

type delivery struct {
	subs  []subscription
	state *domain.AppState
}

// Store holds the single AppState value. Committed states are immutable: every
// Mutate works on a clone and swaps it in.
type Store struct {
	mu        sync.Mutex
	state     atomic.Pointer[domain.AppState]
	subs      []subscription
	nextSubID int
	pending   []delivery
	draining  bool
	persister Persister
	logger    zerolog.Logger
}

func New(persister Persister, logger zerolog.Logger) *Store {
	s := &Store{
		persister: persister,
		logger:    logger.With().Str("component", "store").Logger(),
	}
	s.state.Store(domain.NewAppState())
	return s
}

// Get returns the last committed state. Callers must treat it as read-only.
func (s *Store) Get() *domain.AppState {
	return s.state.Load()
}

// Subscribe registers a listener called after every commit, in registration order.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Mutate clones the current state, applies fn, commits the clone, persists it
// best-effort and notifies listeners. Listeners may call Mutate again.
//
// Notifications are delivered in commit order. When another goroutine is
// already delivering, the commit is queued behind it and Mutate returns
// without waiting for its listeners to run.
func (s *Store) Mutate(fn func(draft *domain.AppState)) {
	s.mu.Lock()
	next := s.state.Load().Clone()
	fn(next)
	s.state.Store(next)
	s.persist(next)
	metrics.StoreMutations.Inc()
	s.enqueue(next)
}

// Hydrate replaces the state with a cached snapshot without writing it back.
func (s *Store) Hydrate(state *domain.AppState) {
	state = state.Clone()
	state.Normalize()

	s.mu.Lock()
	s.state.Store(state)
	s.enqueue(state)
}

func (s *Store) persist(state *domain.AppState) {
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveSnapshot(state); err != nil {
		metrics.SnapshotPersistFailures.Inc()
		s.logger.Warn().Err(err).Msg("failed to persist snapshot")
	}
}

// enqueue must be called with mu held and releases it. Exactly one goroutine
// drains the queue at a time, so listeners see states in the order they were
// committed. Each delivery walks the listener set captured at commit time;
// subscriptions added or removed by a listener take effect on the next commit.
func (s *Store) enqueue(state *domain.AppState) {
	s.pending = append(s.pending, delivery{subs: s.subs, state: state})
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for {
		if len(s.pending) == 0 {
			s.draining = false
			s.pending = nil
			s.mu.Unlock()
			return
		}
		d := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		for _, sub := range d.subs {
			sub.fn(d.state)
		}

		s.mu.Lock()
	}
}
