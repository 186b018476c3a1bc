package AbstractFunctions

import (
	"fmt"
	"log"
	"time"
	_ "time/tzdata"
)

// DateKeyLayout is the canonical attendance date key format.
const DateKeyLayout = "2006-01-02"

// Daily clock-in deadline in the reference zone.
const (
	DeadlineHour   = 9
	DeadlineMinute = 10
)

var referenceZone = loadReferenceZone()

func loadReferenceZone() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		log.Printf("Falling back to fixed KST offset: %v", err)
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// ReferenceZone returns the zone every attendance computation is evaluated in,
// regardless of where the process runs.
func ReferenceZone() *time.Location {
	return referenceZone
}

// InReference converts t to the reference zone.
func InReference(t time.Time) time.Time {
	return t.In(referenceZone)
}

// DateKey maps an instant to its YYYY-MM-DD key in the reference zone.
func DateKey(t time.Time) string {
	return t.In(referenceZone).Format(DateKeyLayout)
}

// ParseDateKey returns midnight of the given key in the reference zone.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(DateKeyLayout, key, referenceZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	return t, nil
}

// StartOfDay returns midnight of t's reference-zone calendar day.
func StartOfDay(t time.Time) time.Time {
	r := t.In(referenceZone)
	return time.Date(r.Year(), r.Month(), r.Day(), 0, 0, 0, 0, referenceZone)
}

// IsWeekday reports whether t falls on Monday through Friday in the reference zone.
func IsWeekday(t time.Time) bool {
	switch t.In(referenceZone).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// TardinessThreshold returns 09:10 on t's reference-zone day.
func TardinessThreshold(t time.Time) time.Time {
	r := t.In(referenceZone)
	return time.Date(r.Year(), r.Month(), r.Day(), DeadlineHour, DeadlineMinute, 0, 0, referenceZone)
}

// IsTardy reports whether a clock-in at t is late. Weekends never count.
func IsTardy(t time.Time) bool {
	if t.IsZero() || !IsWeekday(t) {
		return false
	}
	return t.After(TardinessThreshold(t))
}

// TardinessMinutes returns how many minutes past the deadline t is, rounded up.
func TardinessMinutes(t time.Time) int {
	if !IsTardy(t) {
		return 0
	}
	late := t.Sub(TardinessThreshold(t))
	minutes := int(late / time.Minute)
	if late%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// WeekBounds returns Monday 00:00:00 of t's reference-zone week and the following
// Monday 00:00:00 minus one millisecond.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	end := start.AddDate(0, 0, 7).Add(-time.Millisecond)
	return start, end
}

// MonthBounds returns the first day and last day keys of a reference-zone month.
func MonthBounds(year int, month time.Month) (string, string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, referenceZone)
	last := first.AddDate(0, 1, -1)
	return first.Format(DateKeyLayout), last.Format(DateKeyLayout)
}

// DateKeysBetween lists every date key from..to inclusive in ascending order.
func DateKeysBetween(from, to string) ([]string, error) {
	start, err := ParseDateKey(from)
	if err != nil {
		return nil, err
	}
	end, err := ParseDateKey(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("date range %s..%s is inverted", from, to)
	}
	var keys []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		keys = append(keys, d.Format(DateKeyLayout))
	}
	return keys, nil
}

// ChatDateLabel formats the viewer-local calendar date of t.
func ChatDateLabel(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("Monday, January 2, 2006")
}

// FormatDuration renders d as e.g. "15h30m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh%02dm", h, m)
}
