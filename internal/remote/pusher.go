package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dabbathon/internal/constants"
	"dabbathon/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	gobreaker "github.com/sony/gobreaker/v2"
)

// DesyncFunc is told which document keys could not be written after all retries.
type DesyncFunc func(keys []string, err error)

// Pusher performs optimistic upstream writes in the background, in submission
// order. Callers never wait on it; a write that keeps failing is reported
// through the DesyncFunc. After repeated consecutive failures the breaker opens
// and writes fail immediately until the backend answers again.
type Pusher struct {
	docs    DocumentStore
	retries uint64
	base    time.Duration
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  zerolog.Logger

	mu       sync.RWMutex
	onDesync DesyncFunc

	qmu      sync.Mutex
	queue    []func()
	draining bool
	wg       sync.WaitGroup
}

func NewPusher(docs DocumentStore, retries int, base time.Duration, logger zerolog.Logger) *Pusher {
	if retries < 0 {
		retries = 0
	}
	if base <= 0 {
		base = constants.RemoteRetryBase
	}
	l := logger.With().Str("component", "pusher").Logger()
	return &Pusher{
		docs:    docs,
		retries: uint64(retries),
		base:    base,
		breaker: newBreaker(l),
		logger:  l,
	}
}

func newBreaker(logger zerolog.Logger) *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "remote-writes",
		MaxRequests: 1,
		Timeout:     constants.RemoteBreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= constants.RemoteBreakerFailures
		},
		// auth and cancellation say nothing about backend health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotAuthenticated) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("remote write breaker changed state")
		},
	})
}

func (p *Pusher) OnDesync(fn DesyncFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDesync = fn
}

// enqueue appends a job; a single drain goroutine runs while the queue is non-empty.
func (p *Pusher) enqueue(job func()) {
	p.wg.Add(1)
	p.qmu.Lock()
	defer p.qmu.Unlock()
	p.queue = append(p.queue, job)
	if !p.draining {
		p.draining = true
		go p.drain()
	}
}

func (p *Pusher) drain() {
	for {
		p.qmu.Lock()
		if len(p.queue) == 0 {
			p.draining = false
			p.qmu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.qmu.Unlock()

		job()
		p.wg.Done()
	}
}

// Push commits the writes as one batch in the background.
func (p *Pusher) Push(writes ...Write) {
	if len(writes) == 0 {
		return
	}
	p.enqueue(func() {
		if err := p.Commit(context.Background(), writes); err != nil {
			p.desync(keysOf(writes), err)
		}
	})
}

// PushAdd creates a document with a backend-assigned id in the background.
// localID names the optimistic copy for desync reporting.
func (p *Pusher) PushAdd(collection, localID string, data map[string]any) {
	p.enqueue(func() {
		var id string
		err := p.do(context.Background(), collection, func(ctx context.Context) error {
			var err error
			id, err = p.docs.Add(ctx, collection, data)
			return err
		})
		if err != nil {
			p.desync([]string{DocKey(collection, localID)}, err)
			return
		}
		p.logger.Debug().Str("collection", collection).Str("id", id).Str("local_id", localID).Msg("document created")
	})
}

// Commit writes the batch synchronously with the same retry policy.
func (p *Pusher) Commit(ctx context.Context, writes []Write) error {
	coll := ""
	if len(writes) > 0 {
		coll = writes[0].Collection
	}
	return p.do(ctx, coll, func(ctx context.Context) error {
		return p.docs.Commit(ctx, writes)
	})
}

// Wait blocks until every queued write has finished.
func (p *Pusher) Wait() {
	p.wg.Wait()
}

func (p *Pusher) do(ctx context.Context, collection string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(p.retries, retry.NewExponential(p.base))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		wctx, cancel := context.WithTimeout(ctx, constants.RemoteWriteTimeout)
		defer cancel()

		_, err := p.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, fn(wctx)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RemoteWrites.WithLabelValues(collection, "rejected").Inc()
			return err
		}
		if errors.Is(err, ErrNotAuthenticated) || errors.Is(err, context.Canceled) {
			return err
		}
		metrics.RemoteWrites.WithLabelValues(collection, "retry").Inc()
		p.logger.Debug().Err(err).Str("collection", collection).Int("attempt", attempt).Msg("remote write failed, retrying")
		return retry.RetryableError(err)
	})
	if err != nil {
		metrics.RemoteWrites.WithLabelValues(collection, "desynced").Inc()
		return fmt.Errorf("remote write to %s failed after %d attempts: %w", collection, attempt, err)
	}
	metrics.RemoteWrites.WithLabelValues(collection, "ok").Inc()
	return nil
}

func (p *Pusher) desync(keys []string, err error) {
	p.logger.Warn().Err(err).Strs("keys", keys).Msg("remote write abandoned, marking desynced")

	p.mu.RLock()
	fn := p.onDesync
	p.mu.RUnlock()
	if fn != nil {
		fn(keys, err)
	}
}

func keysOf(writes []Write) []string {
	keys := make([]string, 0, len(writes))
	for _, w := range writes {
		keys = append(keys, DocKey(w.Collection, w.ID))
	}
	return keys
}
