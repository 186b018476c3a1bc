package Sync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Workdesk/AbstractFunctions"
	"Workdesk/Mappers"
	"Workdesk/Models"
	"Workdesk/Store"
)

var (
	seoul = AbstractFunctions.ReferenceZone()
	now   = time.Date(2024, 5, 13, 10, 0, 0, 0, seoul)
)

const wait = 3 * time.Second

func newStore(t *testing.T) *Store.LocalStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "hub.db")+"?_busy_timeout=5000"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	store, err := Store.NewLocalStore(db)
	require.NoError(t, err)
	store.SetClock(func() time.Time { return now })
	return store
}

func newHub(t *testing.T, store Store.DocumentStore, sink *recordingSink) *Hub {
	t.Helper()
	opts := Options{SeenCapacity: 16, Now: func() time.Time { return now }}
	if sink != nil {
		opts.Sink = sink
	}
	h := NewHub(store, opts)
	t.Cleanup(h.Close)
	return h
}

func addUser(t *testing.T, store Store.DocumentStore, uid string) {
	t.Helper()
	require.NoError(t, store.CreateWithID(context.Background(), Models.UserPath(uid), Mappers.UserFields(Models.AppUser{UID: uid, DisplayName: uid})))
}

func addNotification(t *testing.T, store Store.DocumentStore, uid, id string, minute int) {
	t.Helper()
	require.NoError(t, store.CreateWithID(context.Background(), Models.NotificationPath(uid, id), Mappers.NotificationFields(Models.Notification{
		Type:      Models.NotificationTaskAssigned,
		TaskID:    "t-" + id,
		Title:     "task " + id,
		CreatedAt: now.Add(time.Duration(minute) * time.Minute),
	})))
}

func addWorkLog(t *testing.T, store Store.DocumentStore, uid string, at time.Time) {
	t.Helper()
	e := Models.WorkLogEntry{
		ID:        Models.WorkLogID(uid, AbstractFunctions.DateKey(at)),
		UserID:    uid,
		DateKey:   AbstractFunctions.DateKey(at),
		ClockInAt: at,
		Status:    Models.WorkLogPending,
	}
	require.NoError(t, store.CreateWithID(context.Background(), Models.WorkLogPath(e.ID), Mappers.WorkLogFields(e)))
}

func TestWorkLogWindowStart(t *testing.T) {
	assert.Equal(t, "2024-04-01", WorkLogWindowStart(now))
	assert.Equal(t, "2023-12-01", WorkLogWindowStart(time.Date(2024, 1, 5, 0, 0, 0, 0, seoul)))
	// 2024-02-29 23:30 UTC is already March 1st in Seoul.
	assert.Equal(t, "2024-02-01", WorkLogWindowStart(time.Date(2024, 2, 29, 23, 30, 0, 0, time.UTC)))
}

func TestReadModelsFollowTheStore(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	addUser(t, store, "kim")
	addWorkLog(t, store, "kim", now)
	addWorkLog(t, store, "kim", now.AddDate(0, -3, 0))

	h := newHub(t, store, nil)
	require.NoError(t, h.Start())
	require.NoError(t, h.WaitReady(ctx))

	users, err := h.Users()
	require.NoError(t, err)
	require.Len(t, users, 1)

	entries, err := h.WorkLogs()
	require.NoError(t, err)
	require.Len(t, entries, 1, "entries before the window stay out of the live model")

	older, err := h.WorkLogsBetween(ctx, "2024-01-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "2024-02-13", older[0].DateKey)

	task := Models.Task{ID: "t1", AssigneeID: "kim", Title: "Inspect", Status: Models.TaskPending, CreatedAt: now}
	require.NoError(t, store.CreateWithID(ctx, Models.TaskPath("t1"), Mappers.TaskFields(task)))
	require.Eventually(t, func() bool {
		tasks, err := h.Tasks()
		return err == nil && len(tasks) == 1 && tasks[0].Title == "Inspect"
	}, wait, 10*time.Millisecond)

	require.NoError(t, store.Update(ctx, Models.TaskPath("t1"), map[string]any{"status": "submitted"}))
	require.Eventually(t, func() bool {
		tasks, _ := h.Tasks()
		return len(tasks) == 1 && tasks[0].Status == Models.TaskSubmitted
	}, wait, 10*time.Millisecond)

	before := h.Active()
	require.NoError(t, h.Refresh())
	assert.Equal(t, before, h.Active(), "same window keeps the subscription")
	assert.Empty(t, h.Status())

	u, err := h.User(ctx, "kim")
	require.NoError(t, err)
	assert.Equal(t, "kim", u.DisplayName)
	_, err = h.User(ctx, "ghost")
	assert.ErrorIs(t, err, Store.ErrNotFound)
}

type failingSnapshots struct {
	*Store.LocalStore
	collection string
}

type brokenIterator struct{}

func (brokenIterator) Next() ([]Store.Document, error) { return nil, errors.New("permission denied") }
func (brokenIterator) Stop()                           {}

func (f failingSnapshots) Snapshots(ctx context.Context, q Store.Query) Store.SnapshotIterator {
	if q.Collection == f.collection {
		return brokenIterator{}
	}
	return f.LocalStore.Snapshots(ctx, q)
}

func TestFailedViewIsScoped(t *testing.T) {
	store := newStore(t)
	addUser(t, store, "kim")
	h := newHub(t, failingSnapshots{LocalStore: store, collection: Models.TasksCollection}, nil)
	require.NoError(t, h.Start())
	require.NoError(t, h.WaitReady(context.Background()))

	_, err := h.Tasks()
	assert.ErrorIs(t, err, ErrViewUnavailable)
	assert.Contains(t, h.Status(), ViewTasks)

	users, err := h.Users()
	require.NoError(t, err, "other views keep working")
	assert.Len(t, users, 1)
}

func TestChatFeeds(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	h := newHub(t, store, nil)
	h.chats = newChatFeeds(h.manager, 1)

	_, err := store.Create(ctx, Models.MessagesPath("p1", "s1"), map[string]any{
		"senderId": "kim", "text": "hello", "createdAt": Store.ServerTimestamp,
	})
	require.NoError(t, err)

	msgs, err := h.Chat(ctx, "p1", "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, 1, h.Active())

	_, err = store.Create(ctx, Models.MessagesPath("p1", "s1"), map[string]any{
		"senderId": "park", "text": "hi", "createdAt": Store.ServerTimestamp,
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		msgs, _ := h.Chat(ctx, "p1", "s1")
		return len(msgs) == 2
	}, wait, 10*time.Millisecond)

	msgs, err = h.Chat(ctx, "p1", "s2")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 1, h.ChatFeeds())
	require.Eventually(t, func() bool { return h.Active() == 1 }, wait, 10*time.Millisecond, "evicted channel is unsubscribed")
}

func TestStreamDeliversUnseenThenNew(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	addNotification(t, store, "kim", "n1", 1)
	addNotification(t, store, "kim", "n2", 2)

	h := newHub(t, store, nil)
	s, err := h.Stream("kim")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 1, h.Streams("kim"))

	assert.Equal(t, "n1", next(t, s).ID)
	assert.Equal(t, "n2", next(t, s).ID)

	addNotification(t, store, "kim", "n3", 3)
	assert.Equal(t, "n3", next(t, s).ID)

	// a deleted id that comes back is delivered again once re-armed
	require.NoError(t, store.Delete(ctx, Models.NotificationPath("kim", "n3")))
	h.Rearm("kim", "n3")
	addNotification(t, store, "kim", "n3", 4)
	assert.Equal(t, "n3", next(t, s).ID)

	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Streams("kim"))
	select {
	case <-s.Done():
	case <-time.After(wait):
		t.Fatal("stream did not stop")
	}
}

func TestReconnectDoesNotRedeliver(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	addNotification(t, store, "kim", "n1", 1)

	h := newHub(t, store, nil)
	first, err := h.Stream("kim")
	require.NoError(t, err)
	assert.Equal(t, "n1", next(t, first).ID)
	first.Close()

	second, err := h.Stream("kim")
	require.NoError(t, err)
	defer second.Close()
	tab, err := h.Stream("kim")
	require.NoError(t, err)
	defer tab.Close()

	addNotification(t, store, "kim", "n2", 2)
	assert.Equal(t, []string{"n2"}, drain(second, tab), "n1 was sent before the reconnect")

	// deleting and recreating an id delivers it again, once
	require.NoError(t, store.Delete(ctx, Models.NotificationPath("kim", "n1")))
	h.Rearm("kim", "n1")
	addNotification(t, store, "kim", "n1", 3)
	assert.Equal(t, []string{"n1"}, drain(second, tab))
}

// drain collects what the streams deliver until they have been quiet for a while.
func drain(a, b *Stream) []string {
	var ids []string
	quiet := time.NewTimer(wait)
	defer quiet.Stop()
	for {
		select {
		case n := <-a.Events():
			ids = append(ids, n.ID)
		case n := <-b.Events():
			ids = append(ids, n.ID)
		case <-quiet.C:
			return ids
		}
		quiet.Reset(200 * time.Millisecond)
	}
}

func next(t *testing.T, s *Stream) Models.Notification {
	t.Helper()
	select {
	case n := <-s.Events():
		return n
	case <-time.After(wait):
		t.Fatal("no notification")
	}
	return Models.Notification{}
}

type recordingSink struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingSink) Deliver(_ context.Context, n Models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, n.RecipientID+"/"+n.ID)
	return nil
}

func (r *recordingSink) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func TestWatchersSendOnlyNewNotifications(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	addUser(t, store, "kim")
	addNotification(t, store, "kim", "old", 1)

	sink := &recordingSink{}
	h := newHub(t, store, sink)
	require.NoError(t, h.Start())
	require.NoError(t, h.WaitReady(ctx))
	require.Eventually(t, func() bool { return h.Watchers() == 1 }, wait, 10*time.Millisecond)

	// let the watcher prime on its first snapshot
	time.Sleep(100 * time.Millisecond)
	addNotification(t, store, "kim", "fresh", 2)
	require.Eventually(t, func() bool { return len(sink.got()) == 1 }, wait, 10*time.Millisecond)
	assert.Equal(t, []string{"kim/fresh"}, sink.got())

	addUser(t, store, "park")
	require.Eventually(t, func() bool { return h.Watchers() == 2 }, wait, 10*time.Millisecond)

	require.NoError(t, store.Delete(ctx, Models.UserPath("park")))
	require.Eventually(t, func() bool { return h.Watchers() == 1 }, wait, 10*time.Millisecond)
}

func TestOnLeaveAndLeaveDays(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateWithID(ctx, Models.LeaveDayPath("kim", "2024-05-13"), Mappers.LeaveDayFields(Models.LeaveDay{UserID: "kim", DateKey: "2024-05-13", CreatedAt: now})))
	h := newHub(t, store, nil)

	on, err := h.OnLeave(ctx, "kim", "2024-05-13")
	require.NoError(t, err)
	assert.True(t, on)
	on, err = h.OnLeave(ctx, "kim", "2024-05-14")
	require.NoError(t, err)
	assert.False(t, on)

	leaves, err := h.LeaveDays(ctx, "kim", "park")
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Equal(t, "kim", leaves[0].UserID)
}
