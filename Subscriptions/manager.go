// Package Subscriptions owns the live query channels. Each subscription
// delivers the full result set of its query on every change, in the order the
// store emits them, until it is unsubscribed or fails.
package Subscriptions

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"Workdesk/Store"
)

var ErrClosed = errors.New("subscription manager closed")

// Source is the part of a document store the manager needs.
type Source interface {
	Snapshots(ctx context.Context, q Store.Query) Store.SnapshotIterator
}

type SnapshotFunc func(docs []Store.Document)
type ErrorFunc func(err error)

type Manager struct {
	source Source
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
	wg     sync.WaitGroup
}

func NewManager(source Source) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		source: source,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe opens a live channel for q. onSnapshot receives every full result
// set; onError is called at most once, after which the channel is torn down and
// never retried. Either callback may be nil.
func (m *Manager) Subscribe(q Store.Query, onSnapshot SnapshotFunc, onError ErrorFunc) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	sub := &Subscription{
		manager:    m,
		query:      q,
		onSnapshot: onSnapshot,
		onError:    onError,
		done:       make(chan struct{}),
	}
	sub.it = m.source.Snapshots(m.ctx, q)
	m.subs[sub] = struct{}{}
	m.wg.Add(1)
	go sub.run()
	return sub, nil
}

func (m *Manager) forget(sub *Subscription) {
	m.mu.Lock()
	delete(m.subs, sub)
	m.mu.Unlock()
}

// Active returns the number of open subscriptions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Close tears down every subscription and waits for their goroutines.
// It must not be called from a callback.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	subs := make([]*Subscription, 0, len(m.subs))
	for s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	m.cancel()
	m.wg.Wait()
}

type Subscription struct {
	manager    *Manager
	query      Store.Query
	it         Store.SnapshotIterator
	onSnapshot SnapshotFunc
	onError    ErrorFunc

	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}

	mu  sync.Mutex
	err error
}

func (s *Subscription) Query() Store.Query {
	return s.query
}

// Done is closed once the subscription has stopped delivering.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that tore the subscription down, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unsubscribe stops delivery. It is safe to call repeatedly, concurrently,
// from inside a callback and after the subscription has failed.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.stopped.Store(true)
		s.it.Stop()
		s.manager.forget(s)
	})
}

func (s *Subscription) run() {
	defer s.manager.wg.Done()
	defer close(s.done)

	for {
		docs, err := s.it.Next()
		if s.stopped.Load() {
			return
		}
		if err != nil {
			if errors.Is(err, Store.ErrIteratorStopped) {
				s.Unsubscribe()
				return
			}
			s.fail(err)
			return
		}
		if s.onSnapshot != nil && !s.stopped.Load() {
			s.onSnapshot(docs)
		}
	}
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	log.Printf("Subscription on %s failed: %v", s.query.Collection, err)
	s.Unsubscribe()
	if s.onError != nil {
		s.onError(err)
	}
}
