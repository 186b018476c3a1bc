// Package Notifications surfaces each notification document exactly once per
// session, however many times the live subscription redelivers it.
package Notifications

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

const DefaultSeenCapacity = 1024

// Session is the dispatched-id set for one signed-in user's session. It is
// bounded: the oldest ids are evicted, and the newest createdAt among evicted
// ids becomes a watermark below which nothing is dispatched again. Evicted ids
// created exactly at the watermark are remembered by id, so an unseen
// notification sharing that timestamp still goes out.
type Session struct {
	mu          sync.Mutex
	seen        *lru.Cache
	watermark   time.Time
	atWatermark map[string]struct{}
	removing    bool
}

func NewSession(capacity int) *Session {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	s := &Session{seen: lru.New(capacity), atWatermark: make(map[string]struct{})}
	s.seen.OnEvicted = func(key lru.Key, value interface{}) {
		if s.removing {
			return
		}
		at, ok := value.(time.Time)
		if !ok || at.IsZero() {
			return
		}
		id, _ := key.(string)
		switch {
		case at.After(s.watermark):
			s.watermark = at
			s.atWatermark = map[string]struct{}{id: {}}
		case at.Equal(s.watermark):
			s.atWatermark[id] = struct{}{}
		}
	}
	return s
}

// markIfNew records id and reports whether it had not been dispatched before.
func (s *Session) markIfNew(id string, createdAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen.Get(id); ok {
		return false
	}
	if !createdAt.IsZero() && !s.watermark.IsZero() {
		if createdAt.Before(s.watermark) {
			return false
		}
		if _, evicted := s.atWatermark[id]; evicted && createdAt.Equal(s.watermark) {
			return false
		}
	}
	s.seen.Add(id, createdAt)
	return true
}

// Seen reports whether id has already been dispatched in this session.
func (s *Session) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen.Get(id)
	return ok
}

// Forget re-arms ids so that a recreated document notifies again.
func (s *Session) Forget(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removing = true
	for _, id := range ids {
		s.seen.Remove(id)
		delete(s.atWatermark, id)
	}
	s.removing = false
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen.Len()
}

// Clear re-arms every id, for a bulk wipe. The watermark is kept.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removing = true
	s.seen.Clear()
	s.removing = false
}
