package Models

import (
	"fmt"
	"time"
)

type WorkLogStatus string

const (
	WorkLogPending  WorkLogStatus = "pending"
	WorkLogApproved WorkLogStatus = "approved"
	WorkLogRejected WorkLogStatus = "rejected"
)

var workLogTransitions = map[WorkLogStatus][]WorkLogStatus{
	WorkLogPending: {WorkLogApproved, WorkLogRejected},
}

func (s WorkLogStatus) Valid() bool {
	switch s {
	case WorkLogPending, WorkLogApproved, WorkLogRejected:
		return true
	}
	return false
}

func (s WorkLogStatus) CanTransitionTo(next WorkLogStatus) bool {
	for _, allowed := range workLogTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ValidateWorkLogTransition(from, to WorkLogStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: work log %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// WorkLogEntry is one attendance event for a user on a reference-zone day.
type WorkLogEntry struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	UserDisplayName string        `json:"user_display_name"`
	DateKey         string        `json:"date_key"`
	ClockInAt       time.Time     `json:"clock_in_at"`
	ClockOutAt      *time.Time    `json:"clock_out_at"`
	Status          WorkLogStatus `json:"status"`
	ApprovedBy      *string       `json:"approved_by"`
	ApprovedAt      *time.Time    `json:"approved_at"`
	TardinessReason *string       `json:"tardiness_reason"`
}

// Closed reports whether the entry has a clock-out.
func (w WorkLogEntry) Closed() bool {
	return w.ClockOutAt != nil
}

// Duration is clockOut - clockIn for closed entries and zero otherwise.
func (w WorkLogEntry) Duration() time.Duration {
	if w.ClockOutAt == nil || w.ClockOutAt.Before(w.ClockInAt) {
		return 0
	}
	return w.ClockOutAt.Sub(w.ClockInAt)
}

// LeaveDay marks a user's vacation day, keyed by reference-zone date.
type LeaveDay struct {
	UserID    string    `json:"user_id"`
	DateKey   string    `json:"date_key"`
	CreatedAt time.Time `json:"created_at"`
}
