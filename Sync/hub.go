// Package Sync keeps the server's live read models current. Every collection
// the HTTP surface reads from is held open through the Subscription Manager and
// mapped once per snapshot, so handlers serve derived views from memory.
package Sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"Workdesk/AbstractFunctions"
	"Workdesk/Mappers"
	"Workdesk/Models"
	"Workdesk/Notifications"
	"Workdesk/Store"
	"Workdesk/Subscriptions"
)

const (
	ViewTasks    = "tasks"
	ViewWorkLogs = "workLogs"
	ViewUsers    = "users"
)

// ErrViewUnavailable is returned for a read model whose subscription failed.
var ErrViewUnavailable = errors.New("view unavailable")

type Options struct {
	SeenCapacity int
	// Sink receives notifications created while the hub runs, e.g. push and Slack.
	Sink Notifications.Sink
	Now  func() time.Time
}

type Hub struct {
	store        Store.DocumentStore
	manager      *Subscriptions.Manager
	seenCapacity int
	sink         Notifications.Sink
	now          func() time.Time

	taskSub    *Subscriptions.Slot
	userSub    *Subscriptions.Slot
	workLogSub *Subscriptions.Slot

	mu       sync.RWMutex
	tasks    []Models.Task
	workLogs []Models.WorkLogEntry
	users    []Models.AppUser
	errs     map[string]error
	ready    map[string]chan struct{}
	from     string

	chats *chatFeeds

	watchMu  sync.Mutex
	watchers map[string]*watcher
	streams  map[string]map[*Stream]struct{}
	sessions map[string]*Notifications.Session
	closed   bool
}

func NewHub(store Store.DocumentStore, opts Options) *Hub {
	if opts.SeenCapacity <= 0 {
		opts.SeenCapacity = Notifications.DefaultSeenCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &Hub{
		store:        store,
		manager:      Subscriptions.NewManager(store),
		seenCapacity: opts.SeenCapacity,
		sink:         opts.Sink,
		now:          opts.Now,
		errs:         make(map[string]error),
		ready:        make(map[string]chan struct{}),
		watchers:     make(map[string]*watcher),
		streams:      make(map[string]map[*Stream]struct{}),
		sessions:     make(map[string]*Notifications.Session),
	}
	for _, view := range []string{ViewTasks, ViewWorkLogs, ViewUsers} {
		h.ready[view] = make(chan struct{})
	}
	h.taskSub = h.manager.NewSlot()
	h.userSub = h.manager.NewSlot()
	h.workLogSub = h.manager.NewSlot()
	h.chats = newChatFeeds(h.manager, DefaultChatFeeds)
	return h
}

// WorkLogWindowStart is the first date key the live work-log model covers:
// the first day of the previous month in the reference zone.
func WorkLogWindowStart(now time.Time) string {
	local := AbstractFunctions.InReference(now)
	first := time.Date(local.Year(), local.Month()-1, 1, 0, 0, 0, 0, local.Location())
	return AbstractFunctions.DateKey(first)
}

// Start opens the live read models. It does not wait for the first snapshots.
func (h *Hub) Start() error {
	if _, err := h.taskSub.Set(
		Store.Collection(Models.TasksCollection).Order("createdAt", Store.Desc),
		h.onTasks, h.failer(ViewTasks),
	); err != nil {
		return fmt.Errorf("subscribe tasks: %w", err)
	}
	if _, err := h.userSub.Set(
		Store.Collection(Models.UsersCollection),
		h.onUsers, h.failer(ViewUsers),
	); err != nil {
		return fmt.Errorf("subscribe users: %w", err)
	}
	return h.Refresh()
}

// Refresh moves the work-log window forward when the month has turned. Calling
// it again inside the same window keeps the open subscription.
func (h *Hub) Refresh() error {
	from := WorkLogWindowStart(h.now())
	q := Store.Collection(Models.WorkLogsCollection).
		Where("dateKey", Store.OpGreaterEqual, from).
		Order("dateKey", Store.Desc)

	h.mu.Lock()
	moved := h.from != "" && h.from != from
	h.from = from
	if moved {
		h.ready[ViewWorkLogs] = make(chan struct{})
	}
	h.mu.Unlock()

	if _, err := h.workLogSub.Set(q, h.onWorkLogs, h.failer(ViewWorkLogs)); err != nil {
		return fmt.Errorf("subscribe work logs: %w", err)
	}
	if moved {
		log.Printf("Work-log window moved to %s", from)
	}
	return nil
}

// WaitReady blocks until each read model has received its first snapshot or failed.
func (h *Hub) WaitReady(ctx context.Context) error {
	for _, view := range []string{ViewTasks, ViewWorkLogs, ViewUsers} {
		h.mu.RLock()
		ch := h.ready[view]
		h.mu.RUnlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", view, ctx.Err())
		}
	}
	return nil
}

func (h *Hub) markReady(view string) {
	ch := h.ready[view]
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func (h *Hub) failer(view string) Subscriptions.ErrorFunc {
	return func(err error) {
		h.mu.Lock()
		h.errs[view] = err
		h.markReady(view)
		h.mu.Unlock()
	}
}

func (h *Hub) onTasks(docs []Store.Document) {
	tasks := Mappers.ToTasks(docs)
	h.mu.Lock()
	h.tasks = tasks
	delete(h.errs, ViewTasks)
	h.markReady(ViewTasks)
	h.mu.Unlock()
}

func (h *Hub) onWorkLogs(docs []Store.Document) {
	entries := Mappers.ToWorkLogs(docs)
	h.mu.Lock()
	h.workLogs = entries
	delete(h.errs, ViewWorkLogs)
	h.markReady(ViewWorkLogs)
	h.mu.Unlock()
}

func (h *Hub) onUsers(docs []Store.Document) {
	users := Mappers.ToUsers(docs)
	h.mu.Lock()
	h.users = users
	delete(h.errs, ViewUsers)
	h.markReady(ViewUsers)
	h.mu.Unlock()

	if h.sink != nil {
		h.reconcileWatchers(users)
	}
}

func (h *Hub) viewErr(view string) error {
	if err := h.errs[view]; err != nil {
		return fmt.Errorf("%w: %s: %v", ErrViewUnavailable, view, err)
	}
	return nil
}

func (h *Hub) Tasks() ([]Models.Task, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if err := h.viewErr(ViewTasks); err != nil {
		return nil, err
	}
	return append([]Models.Task(nil), h.tasks...), nil
}

// WorkLogs returns the live entries from WorkLogWindowStart on.
func (h *Hub) WorkLogs() ([]Models.WorkLogEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if err := h.viewErr(ViewWorkLogs); err != nil {
		return nil, err
	}
	return append([]Models.WorkLogEntry(nil), h.workLogs...), nil
}

func (h *Hub) Users() ([]Models.AppUser, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if err := h.viewErr(ViewUsers); err != nil {
		return nil, err
	}
	return append([]Models.AppUser(nil), h.users...), nil
}

// User looks a user up in the live model, falling back to the store before
// the first snapshot has arrived.
func (h *Hub) User(ctx context.Context, uid string) (Models.AppUser, error) {
	h.mu.RLock()
	for _, u := range h.users {
		if u.UID == uid {
			h.mu.RUnlock()
			return u, nil
		}
	}
	h.mu.RUnlock()

	doc, err := h.store.Get(ctx, Models.UserPath(uid))
	if err != nil {
		return Models.AppUser{}, err
	}
	return Mappers.ToUser(doc), nil
}

// WorkLogsBetween serves from the live model when from lies inside the
// window and reads the store otherwise.
func (h *Hub) WorkLogsBetween(ctx context.Context, from, to string) ([]Models.WorkLogEntry, error) {
	h.mu.RLock()
	window := h.from
	h.mu.RUnlock()

	if window != "" && from >= window {
		entries, err := h.WorkLogs()
		if err != nil {
			return nil, err
		}
		out := entries[:0]
		for _, e := range entries {
			if e.DateKey >= from && (to == "" || e.DateKey <= to) {
				out = append(out, e)
			}
		}
		return out, nil
	}

	q := Store.Collection(Models.WorkLogsCollection).Order("dateKey", Store.Desc)
	if from != "" {
		q = q.Where("dateKey", Store.OpGreaterEqual, from)
	}
	if to != "" {
		q = q.Where("dateKey", Store.OpLessEqual, to)
	}
	docs, err := h.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("read work logs %s..%s: %w", from, to, err)
	}
	return Mappers.ToWorkLogs(docs), nil
}

// LeaveDays reads the leave markers of the given users.
func (h *Hub) LeaveDays(ctx context.Context, uids ...string) ([]Models.LeaveDay, error) {
	var out []Models.LeaveDay
	for _, uid := range uids {
		docs, err := h.store.All(ctx, Models.LeaveDaysPath(uid))
		if err != nil {
			return nil, fmt.Errorf("read leave days of %s: %w", uid, err)
		}
		out = append(out, Mappers.ToLeaveDays(docs)...)
	}
	return out, nil
}

func (h *Hub) OnLeave(ctx context.Context, uid, dateKey string) (bool, error) {
	_, err := h.store.Get(ctx, Models.LeaveDayPath(uid, dateKey))
	if errors.Is(err, Store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Status reports every failed view by name.
func (h *Hub) Status() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.errs))
	for view, err := range h.errs {
		out[view] = err.Error()
	}
	return out
}

// Retry reopens the read models whose subscriptions failed.
func (h *Hub) Retry() error {
	h.mu.Lock()
	failed := make([]string, 0, len(h.errs))
	for view := range h.errs {
		failed = append(failed, view)
	}
	h.mu.Unlock()
	if len(failed) == 0 {
		return nil
	}
	log.Printf("Reopening views %v", failed)
	if err := h.Start(); err != nil {
		return err
	}
	return nil
}

// Close tears down every subscription. Streams still open see Done closed.
func (h *Hub) Close() {
	h.watchMu.Lock()
	h.closed = true
	h.watchMu.Unlock()
	h.manager.Close()
}

// Active is the number of open subscriptions.
func (h *Hub) Active() int {
	return h.manager.Active()
}
