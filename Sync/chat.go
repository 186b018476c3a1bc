package Sync

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"

	"Workdesk/Mappers"
	"Workdesk/Models"
	"Workdesk/Store"
	"Workdesk/Subscriptions"
)

// DefaultChatFeeds is how many channels stay subscribed at once. The least
// recently read channel is closed when another one opens.
const DefaultChatFeeds = 32

type chatFeed struct {
	sub   *Subscriptions.Subscription
	ready chan struct{}
	once  sync.Once

	mu       sync.RWMutex
	messages []Models.ChatMessage
	err      error
}

func (f *chatFeed) markReady() {
	f.once.Do(func() { close(f.ready) })
}

func (f *chatFeed) snapshot() ([]Models.ChatMessage, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]Models.ChatMessage(nil), f.messages...), nil
}

type chatFeeds struct {
	manager *Subscriptions.Manager

	mu    sync.Mutex
	cache *lru.Cache
}

func newChatFeeds(manager *Subscriptions.Manager, capacity int) *chatFeeds {
	cache := lru.New(capacity)
	cache.OnEvicted = func(_ lru.Key, value interface{}) {
		value.(*chatFeed).sub.Unsubscribe()
	}
	return &chatFeeds{manager: manager, cache: cache}
}

func (c *chatFeeds) open(projectID, subMenuID string) (*chatFeed, error) {
	key := projectID + "/" + subMenuID

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cache.Get(key); ok {
		feed := v.(*chatFeed)
		if feed.sub.Err() == nil {
			return feed, nil
		}
		// A failed channel is reported once; the next read opens a new one.
		c.cache.Remove(key)
	}

	feed := &chatFeed{ready: make(chan struct{})}
	q := Store.Collection(Models.MessagesPath(projectID, subMenuID)).Order("createdAt", Store.Asc)
	sub, err := c.manager.Subscribe(q,
		func(docs []Store.Document) {
			messages := Mappers.ToChatMessages(docs)
			feed.mu.Lock()
			feed.messages = messages
			feed.mu.Unlock()
			feed.markReady()
		},
		func(err error) {
			feed.mu.Lock()
			feed.err = fmt.Errorf("%w: chat %s: %v", ErrViewUnavailable, key, err)
			feed.mu.Unlock()
			feed.markReady()
		})
	if err != nil {
		return nil, err
	}
	feed.sub = sub
	c.cache.Add(key, feed)
	return feed, nil
}

func (c *chatFeeds) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Chat returns the messages of a channel, oldest first, opening its live
// feed on first use and waiting for the first snapshot.
func (h *Hub) Chat(ctx context.Context, projectID, subMenuID string) ([]Models.ChatMessage, error) {
	feed, err := h.chats.open(projectID, subMenuID)
	if err != nil {
		return nil, err
	}
	select {
	case <-feed.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return feed.snapshot()
}

// ChatFeeds is the number of channels currently held open.
func (h *Hub) ChatFeeds() int {
	return h.chats.len()
}
