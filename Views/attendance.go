package Views

import (
	"fmt"
	"sort"
	"time"

	"Workdesk/AbstractFunctions"
	"Workdesk/Models"
)

// DefaultWeeklyTarget is the contracted working time per week.
const DefaultWeeklyTarget = 40 * time.Hour

type WeeklyAggregate struct {
	UserID     string        `json:"user_id"`
	WeekStart  time.Time     `json:"week_start"`
	WeekEnd    time.Time     `json:"week_end"`
	Total      time.Duration `json:"total"`
	Target     time.Duration `json:"target"`
	TardyCount int           `json:"tardy_count"`
	Entries    int           `json:"entries"`
}

// Progress is Total as a percentage of Target. It may exceed 100.
func (w WeeklyAggregate) Progress() float64 {
	if w.Target <= 0 {
		return 0
	}
	return float64(w.Total) / float64(w.Target) * 100
}

// ProgressCapped clamps Progress for a progress bar.
func (w WeeklyAggregate) ProgressCapped() float64 {
	p := w.Progress()
	if p > 100 {
		return 100
	}
	return p
}

func (w WeeklyAggregate) TotalLabel() string {
	return AbstractFunctions.FormatDuration(w.Total)
}

// Weekly sums approved, closed entries of uid whose clock-in falls in the
// reference-zone week containing at. An empty uid aggregates everyone.
func Weekly(entries []Models.WorkLogEntry, uid string, at time.Time, target time.Duration) WeeklyAggregate {
	start, end := AbstractFunctions.WeekBounds(at)
	agg := WeeklyAggregate{UserID: uid, WeekStart: start, WeekEnd: end, Target: target}
	for _, e := range entries {
		if uid != "" && e.UserID != uid {
			continue
		}
		if e.Status != Models.WorkLogApproved || e.ClockInAt.IsZero() {
			continue
		}
		if e.ClockInAt.Before(start) || e.ClockInAt.After(end) {
			continue
		}
		if AbstractFunctions.IsTardy(e.ClockInAt) {
			agg.TardyCount++
		}
		if !e.Closed() {
			continue
		}
		agg.Total += e.Duration()
		agg.Entries++
	}
	return agg
}

// WeeklyByUser computes Weekly for every user that has entries in the window.
func WeeklyByUser(entries []Models.WorkLogEntry, at time.Time, target time.Duration) []WeeklyAggregate {
	seen := make(map[string]bool)
	var uids []string
	for _, e := range entries {
		if e.UserID != "" && !seen[e.UserID] {
			seen[e.UserID] = true
			uids = append(uids, e.UserID)
		}
	}
	sort.Strings(uids)
	out := make([]WeeklyAggregate, 0, len(uids))
	for _, uid := range uids {
		out = append(out, Weekly(entries, uid, at, target))
	}
	return out
}

// TodayEntry returns uid's work log for the reference-zone day containing now.
// With duplicates the earliest clock-in wins.
func TodayEntry(entries []Models.WorkLogEntry, uid string, now time.Time) *Models.WorkLogEntry {
	key := AbstractFunctions.DateKey(now)
	var found *Models.WorkLogEntry
	for i := range entries {
		e := entries[i]
		if e.UserID != uid || e.DateKey != key {
			continue
		}
		if found == nil || e.ClockInAt.Before(found.ClockInAt) {
			found = &e
		}
	}
	return found
}

// DuplicateWorkLogs returns the (user, day) pairs holding more than one entry,
// keyed by the deterministic work-log id.
func DuplicateWorkLogs(entries []Models.WorkLogEntry) map[string][]Models.WorkLogEntry {
	byDay := make(map[string][]Models.WorkLogEntry)
	for _, e := range entries {
		id := Models.WorkLogID(e.UserID, e.DateKey)
		byDay[id] = append(byDay[id], e)
	}
	for id, group := range byDay {
		if len(group) < 2 {
			delete(byDay, id)
		}
	}
	return byDay
}

// LeaveCalendar is the set of a user's leave date keys within one month.
func LeaveCalendar(leaves []Models.LeaveDay, uid string, year int, month time.Month) map[string]bool {
	first, last := AbstractFunctions.MonthBounds(year, month)
	out := make(map[string]bool)
	for _, l := range leaves {
		if l.UserID == uid && l.DateKey >= first && l.DateKey <= last {
			out[l.DateKey] = true
		}
	}
	return out
}

type RowKind string

const (
	RowWorkLog RowKind = "worklog"
	RowLeave   RowKind = "leave"
)

type AttendanceStatus string

const (
	StatusNormal          AttendanceStatus = "normal"
	StatusTardy           AttendanceStatus = "tardy"
	StatusPendingApproval AttendanceStatus = "pending-approval"
	StatusRejected        AttendanceStatus = "rejected"
	StatusLeave           AttendanceStatus = "leave"
)

type AttendanceRow struct {
	Date             string           `json:"date"`
	UserID           string           `json:"user_id"`
	UserDisplayName  string           `json:"user_display_name"`
	Kind             RowKind          `json:"kind"`
	Status           AttendanceStatus `json:"status"`
	WorkLogID        string           `json:"work_log_id,omitempty"`
	ClockInAt        *time.Time       `json:"clock_in_at"`
	ClockOutAt       *time.Time       `json:"clock_out_at"`
	Duration         time.Duration    `json:"duration"`
	TardinessMinutes int              `json:"tardiness_minutes"`
	TardinessReason  *string          `json:"tardiness_reason"`
	Note             string           `json:"note"`
}

// AttendanceFilter bounds the attendance rows by date key, inclusive, and by
// user. Empty bounds and an empty user list mean unrestricted.
type AttendanceFilter struct {
	From    string
	To      string
	UserIDs []string
}

func (f AttendanceFilter) includes(uid, dateKey string) bool {
	if dateKey == "" {
		return false
	}
	if f.From != "" && dateKey < f.From {
		return false
	}
	if f.To != "" && dateKey > f.To {
		return false
	}
	if len(f.UserIDs) == 0 {
		return true
	}
	for _, id := range f.UserIDs {
		if id == uid {
			return true
		}
	}
	return false
}

func workLogStatus(e Models.WorkLogEntry) AttendanceStatus {
	switch e.Status {
	case Models.WorkLogRejected:
		return StatusRejected
	case Models.WorkLogPending:
		return StatusPendingApproval
	}
	if AbstractFunctions.IsTardy(e.ClockInAt) {
		return StatusTardy
	}
	return StatusNormal
}

func workLogRow(e Models.WorkLogEntry) AttendanceRow {
	clockIn := e.ClockInAt
	row := AttendanceRow{
		Date:             e.DateKey,
		UserID:           e.UserID,
		UserDisplayName:  e.UserDisplayName,
		Kind:             RowWorkLog,
		Status:           workLogStatus(e),
		WorkLogID:        e.ID,
		ClockInAt:        &clockIn,
		ClockOutAt:       e.ClockOutAt,
		Duration:         e.Duration(),
		TardinessMinutes: AbstractFunctions.TardinessMinutes(e.ClockInAt),
		TardinessReason:  e.TardinessReason,
	}
	if row.TardinessMinutes > 0 {
		row.Note = fmt.Sprintf("%d min late", row.TardinessMinutes)
	}
	if e.Status == Models.WorkLogApproved && !e.Closed() {
		if row.Note != "" {
			row.Note += ", "
		}
		row.Note += "no clock-out"
	}
	return row
}

// AttendanceRows merges work logs and leave markers into one row per
// (user, date), newest date first. A work log takes precedence over a leave
// marker on the same day; with duplicate work logs the earliest clock-in wins.
func AttendanceRows(entries []Models.WorkLogEntry, leaves []Models.LeaveDay, users []Models.AppUser, filter AttendanceFilter) []AttendanceRow {
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.UID] = u.DisplayName
	}

	type key struct{ uid, date string }
	rows := make(map[key]AttendanceRow)
	chosen := make(map[key]time.Time)

	for _, e := range entries {
		if !filter.includes(e.UserID, e.DateKey) {
			continue
		}
		k := key{e.UserID, e.DateKey}
		if prev, ok := chosen[k]; ok && !e.ClockInAt.Before(prev) {
			continue
		}
		chosen[k] = e.ClockInAt
		row := workLogRow(e)
		if row.UserDisplayName == "" {
			row.UserDisplayName = names[e.UserID]
		}
		rows[k] = row
	}

	for _, l := range leaves {
		if !filter.includes(l.UserID, l.DateKey) {
			continue
		}
		k := key{l.UserID, l.DateKey}
		if _, ok := rows[k]; ok {
			continue
		}
		rows[k] = AttendanceRow{
			Date:            l.DateKey,
			UserID:          l.UserID,
			UserDisplayName: names[l.UserID],
			Kind:            RowLeave,
			Status:          StatusLeave,
			Note:            "leave",
		}
	}

	out := make([]AttendanceRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		if out[i].UserDisplayName != out[j].UserDisplayName {
			return out[i].UserDisplayName < out[j].UserDisplayName
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
