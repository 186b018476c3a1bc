package Sync

import (
	"context"
	"log"
	"sync"
	"time"

	"Workdesk/Mappers"
	"Workdesk/Models"
	"Workdesk/Notifications"
	"Workdesk/Store"
	"Workdesk/Subscriptions"
)

const (
	streamBuffer   = 64
	deliverTimeout = 15 * time.Second
)

func notificationQuery(uid string) Store.Query {
	return Store.Collection(Models.NotificationsPath(uid)).Order("createdAt", Store.Asc)
}

// watcher forwards the notifications created for one user while the hub runs
// to the hub's sink. What already existed when it started is primed, not sent.
type watcher struct {
	sub        *Subscriptions.Subscription
	dispatcher *Notifications.Dispatcher
	primed     bool
}

func (h *Hub) reconcileWatchers(users []Models.AppUser) {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	if h.closed {
		return
	}

	present := make(map[string]bool, len(users))
	for _, u := range users {
		present[u.UID] = true
		if w, ok := h.watchers[u.UID]; ok && w.sub.Err() == nil {
			continue
		}
		w, err := h.startWatcher(u.UID)
		if err != nil {
			log.Printf("Notification watcher for %s not started: %v", u.UID, err)
			continue
		}
		h.watchers[u.UID] = w
	}
	for uid, w := range h.watchers {
		if !present[uid] {
			w.sub.Unsubscribe()
			delete(h.watchers, uid)
		}
	}
}

func (h *Hub) startWatcher(uid string) (*watcher, error) {
	w := &watcher{}
	w.dispatcher = Notifications.NewDispatcher(Notifications.NewSession(h.seenCapacity), func(n Models.Notification) {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		if err := h.sink.Deliver(ctx, n); err != nil {
			log.Printf("Delivering notification %s to %s: %v", n.ID, uid, err)
		}
	})
	sub, err := h.manager.Subscribe(notificationQuery(uid), func(docs []Store.Document) {
		notes := Mappers.ToNotifications(docs)
		if !w.primed {
			w.primed = true
			w.dispatcher.Prime(notes)
			return
		}
		w.dispatcher.Dispatch(notes)
	}, nil)
	if err != nil {
		return nil, err
	}
	w.sub = sub
	return w, nil
}

// Watchers is the number of users whose notifications go to the sink.
func (h *Hub) Watchers() int {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	return len(h.watchers)
}

// Stream is one connection's notification feed. All streams of a user share
// that user's seen-set, so an id delivered on one connection is not delivered
// again on a reconnect or a second tab until it is deleted and re-armed.
type Stream struct {
	hub        *Hub
	uid        string
	sub        *Subscriptions.Subscription
	dispatcher *Notifications.Dispatcher
	events     chan Models.Notification
	once       sync.Once
}

// session returns the seen-set of uid, creating it on first use. Callers hold watchMu.
func (h *Hub) session(uid string) *Notifications.Session {
	s, ok := h.sessions[uid]
	if !ok {
		s = Notifications.NewSession(h.seenCapacity)
		h.sessions[uid] = s
	}
	return s
}

// Stream opens a notification feed for uid. The first snapshot delivers what
// the user has not been sent yet in this process, later snapshots the new ones.
func (h *Hub) Stream(uid string) (*Stream, error) {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	if h.closed {
		return nil, Subscriptions.ErrClosed
	}

	s := &Stream{hub: h, uid: uid, events: make(chan Models.Notification, streamBuffer)}
	s.dispatcher = Notifications.NewDispatcher(h.session(uid), func(n Models.Notification) {
		select {
		case s.events <- n:
		default:
			log.Printf("Dropping notification %s for slow stream of %s", n.ID, uid)
		}
	})
	sub, err := h.manager.Subscribe(notificationQuery(uid), func(docs []Store.Document) {
		s.dispatcher.Dispatch(Mappers.ToNotifications(docs))
	}, nil)
	if err != nil {
		return nil, err
	}
	s.sub = sub
	if h.streams[uid] == nil {
		h.streams[uid] = make(map[*Stream]struct{})
	}
	h.streams[uid][s] = struct{}{}
	return s, nil
}

func (s *Stream) Events() <-chan Models.Notification {
	return s.events
}

// Done is closed when the feed stops, after Close or a subscription failure.
func (s *Stream) Done() <-chan struct{} {
	return s.sub.Done()
}

func (s *Stream) Err() error {
	return s.sub.Err()
}

func (s *Stream) Close() {
	s.once.Do(func() {
		s.sub.Unsubscribe()
		s.hub.watchMu.Lock()
		delete(s.hub.streams[s.uid], s)
		if len(s.hub.streams[s.uid]) == 0 {
			delete(s.hub.streams, s.uid)
		}
		s.hub.watchMu.Unlock()
	})
}

// Streams is the number of open streams of uid.
func (h *Hub) Streams(uid string) int {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	return len(h.streams[uid])
}

// Rearm forgets deleted notification ids in the watcher's and the streams'
// seen-sets of uid, so an id that shows up again is delivered again.
func (h *Hub) Rearm(uid string, ids ...string) {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	if w, ok := h.watchers[uid]; ok {
		w.dispatcher.Forget(ids...)
	}
	if session, ok := h.sessions[uid]; ok {
		session.Forget(ids...)
	}
}

// Notifications reads the current notifications of uid, newest first.
func (h *Hub) Notifications(ctx context.Context, uid string) ([]Models.Notification, error) {
	docs, err := h.store.Query(ctx, Store.Collection(Models.NotificationsPath(uid)).Order("createdAt", Store.Desc))
	if err != nil {
		return nil, err
	}
	return Mappers.ToNotifications(docs), nil
}
