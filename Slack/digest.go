package Slack

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"Workdesk/AbstractFunctions"
	"Workdesk/Models"
	"Workdesk/Views"
)

// Board is the live data the digests and commands read.
type Board interface {
	Users() ([]Models.AppUser, error)
	Tasks() ([]Models.Task, error)
	WorkLogs() ([]Models.WorkLogEntry, error)
	OnLeave(ctx context.Context, uid, dateKey string) (bool, error)
}

func byName(users []Models.AppUser) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].DisplayName != users[j].DisplayName {
			return users[i].DisplayName < users[j].DisplayName
		}
		return users[i].UID < users[j].UID
	})
}

func nameOf(u Models.AppUser) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.UID
}

// MissingClockIns lists the non-admin users with no work log on the day of
// now who are not on leave, by name.
func MissingClockIns(ctx context.Context, board Board, now time.Time) ([]Models.AppUser, error) {
	users, err := board.Users()
	if err != nil {
		return nil, err
	}
	entries, err := board.WorkLogs()
	if err != nil {
		return nil, err
	}
	dateKey := AbstractFunctions.DateKey(now)

	var missing []Models.AppUser
	for _, u := range users {
		if u.IsAdmin() || Views.TodayEntry(entries, u.UID, now) != nil {
			continue
		}
		onLeave, err := board.OnLeave(ctx, u.UID, dateKey)
		if err != nil {
			return nil, err
		}
		if !onLeave {
			missing = append(missing, u)
		}
	}
	byName(missing)
	return missing, nil
}

func FormatReminder(missing []Models.AppUser, now time.Time) string {
	day := AbstractFunctions.InReference(now).Format("Monday, January 2")
	if len(missing) == 0 {
		return fmt.Sprintf("*Attendance %s*\nEveryone has clocked in.", day)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Attendance %s*\nNot clocked in yet (%d):\n", day, len(missing))
	for _, u := range missing {
		fmt.Fprintf(&b, "• %s\n", nameOf(u))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatToday lists who clocked in on the day of now, with status.
func FormatToday(users []Models.AppUser, entries []Models.WorkLogEntry, now time.Time) string {
	users = append([]Models.AppUser(nil), users...)
	byName(users)

	var b strings.Builder
	fmt.Fprintf(&b, "*Today, %s*\n", AbstractFunctions.InReference(now).Format("January 2"))
	in := 0
	for _, u := range users {
		e := Views.TodayEntry(entries, u.UID, now)
		if e == nil {
			continue
		}
		in++
		line := fmt.Sprintf("• %s in at %s", nameOf(u), AbstractFunctions.InReference(e.ClockInAt).Format("15:04"))
		if e.ClockOutAt != nil {
			line += ", out at " + AbstractFunctions.InReference(*e.ClockOutAt).Format("15:04")
		}
		if m := AbstractFunctions.TardinessMinutes(e.ClockInAt); m > 0 {
			line += fmt.Sprintf(" (%d min late)", m)
		}
		if e.Status != Models.WorkLogApproved {
			line += " [" + string(e.Status) + "]"
		}
		b.WriteString(line + "\n")
	}
	if in == 0 {
		b.WriteString("Nobody has clocked in yet.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatTasks summarizes the task board by status.
func FormatTasks(tasks []Models.Task) string {
	counts := Views.TaskStatusCounts(tasks)
	var b strings.Builder
	b.WriteString("*Tasks*\n")
	for _, s := range []Models.TaskStatus{Models.TaskPending, Models.TaskSubmitted, Models.TaskRevision, Models.TaskApproved} {
		fmt.Fprintf(&b, "• %s: %d\n", s, counts[s])
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatWeekly renders the weekly totals of every non-admin user for the
// week containing at.
func FormatWeekly(users []Models.AppUser, entries []Models.WorkLogEntry, at time.Time, target time.Duration, now time.Time) string {
	users = append([]Models.AppUser(nil), users...)
	byName(users)

	start, _ := AbstractFunctions.WeekBounds(at)
	var b strings.Builder
	fmt.Fprintf(&b, "*Week of %s*\n", AbstractFunctions.InReference(start).Format("January 2"))
	for _, u := range users {
		if u.IsAdmin() {
			continue
		}
		w := Views.Weekly(entries, u.UID, at, target)
		fmt.Fprintf(&b, "• %s: %s (%.0f%%)", nameOf(u), w.TotalLabel(), w.ProgressCapped())
		if w.TardyCount > 0 {
			fmt.Fprintf(&b, ", late %d time(s)", w.TardyCount)
		}
		b.WriteString("\n")
	}
	b.WriteString(lastUpdated(AbstractFunctions.InReference(now)))
	return b.String()
}
