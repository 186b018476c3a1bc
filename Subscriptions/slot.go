package Subscriptions

import (
	"sync"
	"sync/atomic"

	"Workdesk/Store"
)

// Slot holds at most one subscription whose query may change over time, such
// as a queue filtered by the signed-in user or a date range.
//
// Deliveries through a slot are serialized, and a delivery from a descriptor
// the slot no longer points at is dropped, even one already in flight when
// Set moved on.
type Slot struct {
	manager *Manager

	mu  sync.Mutex
	key string
	sub *Subscription

	gen       atomic.Uint64
	deliverMu sync.Mutex
}

func (m *Manager) NewSlot() *Slot {
	return &Slot{manager: m}
}

// Set points the slot at q. A live subscription with the same descriptor is
// kept as is. Otherwise the previous channel is torn down before the new one
// opens. Set may be called from inside a snapshot callback.
func (s *Slot) Set(q Store.Query, onSnapshot SnapshotFunc, onError ErrorFunc) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := q.Key()
	if s.sub != nil && s.key == key && s.sub.Err() == nil && !s.sub.stopped.Load() {
		return s.sub, nil
	}
	gen := s.gen.Add(1)
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}

	sub, err := s.manager.Subscribe(q, s.snapshots(gen, onSnapshot), s.errors(gen, onError))
	if err != nil {
		return nil, err
	}
	s.key = key
	s.sub = sub
	return sub, nil
}

func (s *Slot) snapshots(gen uint64, fn SnapshotFunc) SnapshotFunc {
	if fn == nil {
		return nil
	}
	return func(docs []Store.Document) {
		s.deliverMu.Lock()
		defer s.deliverMu.Unlock()
		if s.gen.Load() != gen {
			return
		}
		fn(docs)
	}
}

func (s *Slot) errors(gen uint64, fn ErrorFunc) ErrorFunc {
	if fn == nil {
		return nil
	}
	return func(err error) {
		s.deliverMu.Lock()
		defer s.deliverMu.Unlock()
		if s.gen.Load() != gen {
			return
		}
		fn(err)
	}
}

func (s *Slot) Current() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		s.gen.Add(1)
		s.sub.Unsubscribe()
		s.sub = nil
		s.key = ""
	}
}
