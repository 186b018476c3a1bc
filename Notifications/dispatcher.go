package Notifications

import (
	"sort"

	"Workdesk/Models"
)

type Callback func(n Models.Notification)

// Dispatcher invokes its callback once per notification id newly observed in
// a snapshot. The set of dispatched ids lives in the Session it was built with.
type Dispatcher struct {
	session  *Session
	callback Callback
}

func NewDispatcher(session *Session, callback Callback) *Dispatcher {
	if session == nil {
		session = NewSession(DefaultSeenCapacity)
	}
	return &Dispatcher{session: session, callback: callback}
}

func (d *Dispatcher) Session() *Session {
	return d.session
}

// Dispatch takes a full notification snapshot and returns the notifications
// that were new to the session, oldest first. Ids seen before are skipped.
func (d *Dispatcher) Dispatch(snapshot []Models.Notification) []Models.Notification {
	ordered := make([]Models.Notification, len(snapshot))
	copy(ordered, snapshot)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var fresh []Models.Notification
	for _, n := range ordered {
		if n.ID == "" || !d.session.markIfNew(n.ID, n.CreatedAt) {
			continue
		}
		fresh = append(fresh, n)
		if d.callback != nil {
			d.callback(n)
		}
	}
	return fresh
}

// Prime marks every notification of snapshot as seen without invoking the
// callback, so a watcher started after the fact only reports what comes next.
func (d *Dispatcher) Prime(snapshot []Models.Notification) int {
	n := 0
	for _, note := range snapshot {
		if note.ID != "" && d.session.markIfNew(note.ID, note.CreatedAt) {
			n++
		}
	}
	return n
}

// Forget re-arms deleted notification ids.
func (d *Dispatcher) Forget(ids ...string) {
	d.session.Forget(ids...)
}

func (d *Dispatcher) ForgetAll() {
	d.session.Clear()
}
