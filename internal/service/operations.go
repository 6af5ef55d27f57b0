package service

import (
	"time"

	"dabbathon/internal/config"
	"dabbathon/internal/domain"
	"dabbathon/internal/remote"
	"dabbathon/internal/store"

	"github.com/rs/zerolog"
)

// Operations is the mutation API. Every call validates its input, applies the
// change to the store and hands the matching remote write to the pusher without
// waiting for it. Remote failures never roll back the local change.
type Operations struct {
	store  *store.Store
	pusher *remote.Pusher
	docs   remote.DocumentStore
	cfg    *config.Config
	now    func() time.Time
	logger zerolog.Logger
}

func NewOperations(st *store.Store, pusher *remote.Pusher, docs remote.DocumentStore, cfg *config.Config, logger zerolog.Logger) *Operations {
	return &Operations{
		store:  st,
		pusher: pusher,
		docs:   docs,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "operations").Logger(),
	}
}

// SetClock replaces the time source.
func (o *Operations) SetClock(now func() time.Time) {
	o.now = now
}

func (o *Operations) State() *domain.AppState {
	return o.store.Get()
}

func (o *Operations) nowMillis() int64 {
	return o.now().UnixMilli()
}

func (o *Operations) push(writes ...remote.Write) {
	if o.pusher == nil {
		return
	}
	o.pusher.Push(writes...)
}

func set(collection, id string, data map[string]any) remote.Write {
	return remote.Write{Op: remote.OpSet, Collection: collection, ID: id, Data: data}
}

func merge(collection, id string, data map[string]any) remote.Write {
	return remote.Write{Op: remote.OpMerge, Collection: collection, ID: id, Data: data}
}

func del(collection, id string) remote.Write {
	return remote.Write{Op: remote.OpDelete, Collection: collection, ID: id}
}
