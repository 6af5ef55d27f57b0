package remote

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var ErrNotAuthenticated = errors.New("remote: not authenticated")

// MemoryStore is an in-process DocumentStore. Every write is echoed to listeners
// the way a live backend would, on the listener's own goroutine.
type MemoryStore struct {
	mu        sync.Mutex
	sendMu    sync.Mutex
	authed    bool
	docs      map[string]map[string]map[string]any
	listeners map[string][]*memListener
	failNext  map[string]error
}

type memListener struct {
	ch   chan []Change
	done chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      map[string]map[string]map[string]any{},
		listeners: map[string][]*memListener{},
		failNext:  map[string]error{},
	}
}

func (m *MemoryStore) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authed = true
	return nil
}

func (m *MemoryStore) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authed
}

// FailWrites makes writes to the collection return err until cleared with nil.
func (m *MemoryStore) FailWrites(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failNext, collection)
		return
	}
	m.failNext[collection] = err
}

func (m *MemoryStore) Listen(ctx context.Context, collection string, fn func([]Change)) error {
	l, err := m.subscribe(collection)
	if err != nil {
		return err
	}
	defer m.unsubscribe(collection, l)
	return pump(ctx, l.ch, fn)
}

func (m *MemoryStore) ListenDoc(ctx context.Context, collection, id string, fn func(Change)) error {
	return m.Listen(ctx, collection, func(changes []Change) {
		for _, c := range changes {
			if c.ID == id {
				fn(c)
			}
		}
	})
}

func pump(ctx context.Context, ch <-chan []Change, fn func([]Change)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch := <-ch:
			fn(batch)
		}
	}
}

// subscribe registers a listener and queues the initial snapshot as "added" changes.
func (m *MemoryStore) subscribe(collection string) (*memListener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authed {
		return nil, ErrNotAuthenticated
	}
	l := &memListener{ch: make(chan []Change, 256), done: make(chan struct{})}
	var initial []Change
	for id, data := range m.docs[collection] {
		initial = append(initial, Change{Kind: Added, ID: id, Data: maps.Clone(data)})
	}
	if len(initial) > 0 {
		l.ch <- initial
	}
	m.listeners[collection] = append(m.listeners[collection], l)
	return l, nil
}

// unsubscribe also releases any Commit still trying to deliver to l.
func (m *MemoryStore) unsubscribe(collection string, l *memListener) {
	close(l.done)

	m.mu.Lock()
	defer m.mu.Unlock()
	ls := m.listeners[collection]
	for i, x := range ls {
		if x == l {
			m.listeners[collection] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

func (m *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	op := OpSet
	if merge {
		op = OpMerge
	}
	return m.Commit(ctx, []Write{{Op: op, Collection: collection, ID: id, Data: data}})
}

func (m *MemoryStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id, err := gonanoid.New(20)
	if err != nil {
		return "", fmt.Errorf("failed to generate document id: %w", err)
	}
	if err := m.Set(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	return m.Commit(ctx, []Write{{Op: OpDelete, Collection: collection, ID: id}})
}

// Commit applies all writes atomically and emits one change batch per collection.
// Batches are delivered after the document lock is released, in commit order.
func (m *MemoryStore) Commit(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if !m.authed {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	for _, w := range writes {
		if err := m.failNext[w.Collection]; err != nil {
			m.mu.Unlock()
			return err
		}
	}

	batches := map[string][]Change{}
	var order []string
	for _, w := range writes {
		coll := m.docs[w.Collection]
		if coll == nil {
			coll = map[string]map[string]any{}
			m.docs[w.Collection] = coll
		}
		existing, exists := coll[w.ID]

		var change Change
		switch w.Op {
		case OpDelete:
			if !exists {
				continue
			}
			delete(coll, w.ID)
			change = Change{Kind: Removed, ID: w.ID, Data: existing}
		case OpMerge:
			merged := maps.Clone(existing)
			if merged == nil {
				merged = map[string]any{}
			}
			maps.Copy(merged, w.Data)
			coll[w.ID] = merged
			change = Change{Kind: kindFor(exists), ID: w.ID, Data: maps.Clone(merged)}
		default:
			coll[w.ID] = maps.Clone(w.Data)
			change = Change{Kind: kindFor(exists), ID: w.ID, Data: maps.Clone(w.Data)}
		}
		if _, ok := batches[w.Collection]; !ok {
			order = append(order, w.Collection)
		}
		batches[w.Collection] = append(batches[w.Collection], change)
	}

	type send struct {
		l     *memListener
		batch []Change
	}
	var sends []send
	for _, coll := range order {
		for _, l := range m.listeners[coll] {
			sends = append(sends, send{l: l, batch: batches[coll]})
		}
	}

	m.sendMu.Lock()
	m.mu.Unlock()
	defer m.sendMu.Unlock()

	for _, s := range sends {
		select {
		case s.l.ch <- s.batch:
		case <-s.l.done:
		}
	}
	return nil
}

func kindFor(exists bool) ChangeKind {
	if exists {
		return Modified
	}
	return Added
}

func (m *MemoryStore) Empty(ctx context.Context, collection string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection]) == 0, nil
}

// Doc returns a copy of a stored document.
func (m *MemoryStore) Doc(collection, id string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[collection][id]
	return maps.Clone(d), ok
}

func (m *MemoryStore) Close() error {
	return nil
}
