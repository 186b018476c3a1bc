package CronJobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Workdesk/AbstractFunctions"
	"Workdesk/Models"
)

type board struct {
	users   []Models.AppUser
	entries []Models.WorkLogEntry
	err     error
}

func (b board) Users() ([]Models.AppUser, error)         { return b.users, b.err }
func (b board) Tasks() ([]Models.Task, error)            { return nil, b.err }
func (b board) WorkLogs() ([]Models.WorkLogEntry, error) { return b.entries, b.err }
func (b board) OnLeave(context.Context, string, string) (bool, error) {
	return false, nil
}

type poster struct {
	posts  []string
	pinned []string
}

func (p *poster) Post(_ context.Context, text string) error {
	p.posts = append(p.posts, text)
	return nil
}

func (p *poster) SendAndPin(_ context.Context, text string) error {
	p.pinned = append(p.pinned, text)
	return nil
}

var seoul = AbstractFunctions.ReferenceZone()

func team() board {
	in := time.Date(2024, 5, 8, 9, 0, 0, 0, seoul)
	out := time.Date(2024, 5, 8, 17, 0, 0, 0, seoul)
	return board{
		users: []Models.AppUser{
			{UID: "lee", DisplayName: "Lee", Role: Models.RoleAdmin},
			{UID: "kim", DisplayName: "Kim"},
			{UID: "park", DisplayName: "Park"},
		},
		entries: []Models.WorkLogEntry{
			{ID: "kim_2024-05-08", UserID: "kim", DateKey: "2024-05-08", ClockInAt: in, ClockOutAt: &out, Status: Models.WorkLogApproved},
			{ID: "kim_2024-05-13", UserID: "kim", DateKey: "2024-05-13", ClockInAt: time.Date(2024, 5, 13, 9, 5, 0, 0, seoul), Status: Models.WorkLogPending},
		},
	}
}

func TestReminderPostsMissingUsers(t *testing.T) {
	p := &poster{}
	jobs := NewAttendanceJobs(team(), p, nil, 40*time.Hour)
	jobs.SetClock(func() time.Time { return time.Date(2024, 5, 13, 9, 15, 0, 0, seoul) })

	require.NoError(t, jobs.Reminder(context.Background()))
	require.Len(t, p.posts, 1)
	assert.Contains(t, p.posts[0], "Not clocked in yet (1):\n• Park")
	assert.NotContains(t, p.posts[0], "Kim")
}

func TestReminderQuietOnWeekendsAndFullHouse(t *testing.T) {
	p := &poster{}
	b := team()
	jobs := NewAttendanceJobs(b, p, nil, 40*time.Hour)

	jobs.SetClock(func() time.Time { return time.Date(2024, 5, 11, 9, 15, 0, 0, seoul) })
	require.NoError(t, jobs.Reminder(context.Background()))

	b.users = b.users[:2]
	jobs.board = b
	jobs.SetClock(func() time.Time { return time.Date(2024, 5, 13, 9, 15, 0, 0, seoul) })
	require.NoError(t, jobs.Reminder(context.Background()))

	assert.Empty(t, p.posts)
}

func TestWeeklyDigestCoversPreviousWeek(t *testing.T) {
	p := &poster{}
	jobs := NewAttendanceJobs(team(), p, nil, 40*time.Hour)
	jobs.SetClock(func() time.Time { return time.Date(2024, 5, 13, 8, 0, 0, 0, seoul) })

	require.NoError(t, jobs.WeeklyDigest(context.Background()))
	require.Len(t, p.pinned, 1)
	assert.Contains(t, p.pinned[0], "*Week of May 6*")
	assert.Contains(t, p.pinned[0], "• Kim: 8h00m (20%)")
	assert.Contains(t, p.pinned[0], "• Park: 0h00m (0%)")
	assert.NotContains(t, p.pinned[0], "Lee")
}

func TestWeeklyDigestPropagatesViewErrors(t *testing.T) {
	jobs := NewAttendanceJobs(board{err: errors.New("view unavailable")}, &poster{}, nil, 40*time.Hour)
	assert.Error(t, jobs.WeeklyDigest(context.Background()))
}

func TestStartSchedulesJobsInReferenceZone(t *testing.T) {
	jobs := NewAttendanceJobs(team(), &poster{}, func() error { return nil }, 40*time.Hour)
	require.NoError(t, jobs.Start())
	defer jobs.Stop()

	for _, name := range []string{"window refresh", "attendance reminder", "weekly digest"} {
		next, ok := jobs.Next(name)
		require.True(t, ok, name)
		assert.Equal(t, seoul.String(), next.Location().String(), name)
	}
	next, _ := jobs.Next("attendance reminder")
	assert.True(t, AbstractFunctions.IsWeekday(next))
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 15, next.Minute())
}

func TestStartWithoutPosterOnlyRefreshes(t *testing.T) {
	jobs := NewAttendanceJobs(team(), nil, func() error { return nil }, 40*time.Hour)
	require.NoError(t, jobs.Start())
	defer jobs.Stop()

	_, ok := jobs.Next("window refresh")
	assert.True(t, ok)
	_, ok = jobs.Next("weekly digest")
	assert.False(t, ok)
}
