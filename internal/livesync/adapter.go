package livesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dabbathon/internal/domain"
	"dabbathon/internal/metrics"
	"dabbathon/internal/remote"
	"dabbathon/internal/store"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

var errStreamClosed = errors.New("stream closed by server")

// SnapshotLoader reads the locally cached state.
type SnapshotLoader interface {
	Load(ctx context.Context) (*domain.AppState, bool, error)
}

// Runner is a background process started once the live subscriptions are open.
type Runner interface {
	Run(ctx context.Context) error
}

type batch struct {
	collection string
	changes    []remote.Change
}

// Adapter mirrors the remote collections into the store. Listener goroutines
// hand their batches to a single fold loop, which applies each one with exactly
// one store mutation.
type Adapter struct {
	docs      remote.DocumentStore
	store     *store.Store
	snapshots SnapshotLoader
	logger    zerolog.Logger

	mu      sync.Mutex
	started bool
	runners []Runner
	cancel  context.CancelFunc
	group   *errgroup.Group
	events  chan batch
}

func NewAdapter(docs remote.DocumentStore, pusher *remote.Pusher, st *store.Store, snapshots SnapshotLoader, logger zerolog.Logger) *Adapter {
	a := &Adapter{
		docs:      docs,
		store:     st,
		snapshots: snapshots,
		logger:    logger.With().Str("component", "livesync").Logger(),
		events:    make(chan batch, 64),
	}
	if pusher != nil {
		pusher.OnDesync(a.MarkDesynced)
	}
	return a
}

// AfterAttach registers a runner to start after the first successful Init.
func (a *Adapter) AfterAttach(r Runner) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runners = append(a.runners, r)
}

// Collections lists every collection the adapter subscribes to.
func Collections() []string {
	return []string{
		remote.CollTeams,
		remote.CollMetrics,
		remote.CollRooms,
		remote.ScoreCollection(1),
		remote.ScoreCollection(2),
		remote.ScoreCollection(3),
		remote.CollNotifications,
	}
}

// Init hydrates from the local cache, authenticates, then opens the live
// subscriptions. Calling it again after a successful run does nothing.
func (a *Adapter) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}

	a.hydrate(ctx)

	if err := a.docs.Authenticate(ctx); err != nil {
		a.logger.Error().Err(err).Msg("remote authentication failed")
		return fmt.Errorf("failed to authenticate with remote store: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { return a.foldLoop(gctx) })
	for _, coll := range Collections() {
		g.Go(func() error {
			return a.listen(gctx, coll, func(ctx context.Context) error {
				return a.docs.Listen(ctx, coll, func(changes []remote.Change) {
					a.enqueue(ctx, batch{collection: coll, changes: changes})
				})
			})
		})
	}
	g.Go(func() error {
		return a.listen(gctx, remote.CollAppState, func(ctx context.Context) error {
			return a.docs.ListenDoc(ctx, remote.CollAppState, remote.ConfigDocID, func(c remote.Change) {
				a.enqueue(ctx, batch{collection: remote.CollAppState, changes: []remote.Change{c}})
			})
		})
	})

	for _, r := range a.runners {
		g.Go(func() error { return r.Run(gctx) })
	}

	a.cancel = cancel
	a.group = g
	a.started = true
	a.logger.Info().Int("collections", len(Collections())+1).Int("runners", len(a.runners)).Msg("live sync attached")
	return nil
}

func (a *Adapter) hydrate(ctx context.Context) {
	if a.snapshots == nil {
		return
	}
	state, ok, err := a.snapshots.Load(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to load cached snapshot")
		return
	}
	if !ok {
		return
	}
	a.store.Hydrate(state)
	a.logger.Info().Int("teams", len(state.Teams)).Int("metrics", len(state.Metrics)).Msg("hydrated from local cache")
}

// listen keeps a subscription open, resubscribing with backoff when the stream
// fails, until ctx ends.
func (a *Adapter) listen(ctx context.Context, collection string, open func(ctx context.Context) error) error {
	backoff := retry.WithCappedDuration(30*time.Second, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := open(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errStreamClosed
		}
		a.logger.Warn().Err(err).Str("collection", collection).Msg("subscription dropped, resubscribing")
		return retry.RetryableError(fmt.Errorf("subscription on %s ended: %w", collection, err))
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *Adapter) enqueue(ctx context.Context, b batch) {
	select {
	case a.events <- b:
	case <-ctx.Done():
	}
}

func (a *Adapter) foldLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case b := <-a.events:
			a.Fold(b.collection, b.changes)
		}
	}
}

// Fold applies one remote batch to the store in a single mutation.
func (a *Adapter) Fold(collection string, changes []remote.Change) {
	if len(changes) == 0 {
		return
	}
	a.store.Mutate(func(d *domain.AppState) {
		applyChanges(d, collection, changes)
	})
	for _, c := range changes {
		metrics.FoldedChanges.WithLabelValues(collection, c.Kind.String()).Inc()
	}
	a.logger.Debug().Str("collection", collection).Int("changes", len(changes)).Msg("folded remote batch")
}

// MarkDesynced records documents whose optimistic write never reached the backend.
func (a *Adapter) MarkDesynced(keys []string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	a.store.Mutate(func(d *domain.AppState) {
		for _, k := range keys {
			d.Desynced[k] = msg
		}
	})
}

func (a *Adapter) Started() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// Stop cancels the subscriptions and runners and waits for them to exit.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	cancel, g := a.cancel, a.group
	a.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	return g.Wait()
}
