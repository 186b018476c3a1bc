package CronJobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"Workdesk/AbstractFunctions"
	"Workdesk/Slack"
)

const (
	// At 09:15:00 Monday to Friday, after the tardiness threshold.
	ReminderSchedule = "0 15 9 * * MON-FRI"
	// At 08:00:00 every Monday, covering the week that just ended.
	WeeklyDigestSchedule = "0 0 8 * * MON"
	// At 00:05:00 every day.
	RefreshSchedule = "0 5 0 * * *"
)

// Poster is where reminders and digests go.
type Poster interface {
	Post(ctx context.Context, text string) error
	SendAndPin(ctx context.Context, text string) error
}

// Refresher moves live windows forward, e.g. Sync.Hub.Refresh.
type Refresher func() error

// AttendanceJobs runs the scheduled attendance messages in the reference zone.
type AttendanceJobs struct {
	cronScheduler *cron.Cron
	board         Slack.Board
	poster        Poster
	refresh       Refresher
	target        time.Duration
	now           func() time.Time
	entries       map[string]cron.EntryID
}

func NewAttendanceJobs(board Slack.Board, poster Poster, refresh Refresher, target time.Duration) *AttendanceJobs {
	return &AttendanceJobs{
		cronScheduler: cron.New(cron.WithSeconds(), cron.WithLocation(AbstractFunctions.ReferenceZone())),
		board:         board,
		poster:        poster,
		refresh:       refresh,
		target:        target,
		now:           time.Now,
		entries:       make(map[string]cron.EntryID),
	}
}

func (j *AttendanceJobs) SetClock(now func() time.Time) {
	j.now = now
}

func (j *AttendanceJobs) add(name, schedule string, fn func()) error {
	id, err := j.cronScheduler.AddFunc(schedule, func() {
		log.Printf("Running scheduled %s", name)
		fn()
	})
	if err != nil {
		return fmt.Errorf("error scheduling %s: %w", name, err)
	}
	j.entries[name] = id
	return nil
}

// Start schedules the jobs. Slack jobs are skipped without a poster.
func (j *AttendanceJobs) Start() error {
	if j.refresh != nil {
		if err := j.add("window refresh", RefreshSchedule, func() {
			if err := j.refresh(); err != nil {
				log.Printf("Error refreshing live views: %v", err)
			}
		}); err != nil {
			return err
		}
	}
	if j.poster != nil {
		if err := j.add("attendance reminder", ReminderSchedule, j.runReminder); err != nil {
			return err
		}
		if err := j.add("weekly digest", WeeklyDigestSchedule, j.runWeeklyDigest); err != nil {
			return err
		}
	}
	j.cronScheduler.Start()
	log.Printf("Attendance scheduler started with %d job(s)", len(j.entries))
	return nil
}

func (j *AttendanceJobs) Stop() {
	if j.cronScheduler != nil {
		<-j.cronScheduler.Stop().Done()
		log.Println("Attendance scheduler stopped")
	}
}

// Next returns when the named job runs next, if scheduled.
func (j *AttendanceJobs) Next(name string) (time.Time, bool) {
	id, ok := j.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return j.cronScheduler.Entry(id).Next, true
}

func (j *AttendanceJobs) runReminder() {
	if err := j.Reminder(context.Background()); err != nil {
		log.Printf("Error in attendance reminder: %v", err)
	}
}

func (j *AttendanceJobs) runWeeklyDigest() {
	if err := j.WeeklyDigest(context.Background()); err != nil {
		log.Printf("Error in weekly digest: %v", err)
	}
}

// Reminder posts who has not clocked in today. Nothing is posted on weekends
// or when everyone is in.
func (j *AttendanceJobs) Reminder(ctx context.Context) error {
	now := j.now()
	if !AbstractFunctions.IsWeekday(now) {
		return nil
	}
	missing, err := Slack.MissingClockIns(ctx, j.board, now)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		log.Println("Everyone has clocked in")
		return nil
	}
	return j.poster.Post(ctx, Slack.FormatReminder(missing, now))
}

// WeeklyDigest pins last week's totals per person.
func (j *AttendanceJobs) WeeklyDigest(ctx context.Context) error {
	now := j.now()
	users, err := j.board.Users()
	if err != nil {
		return err
	}
	entries, err := j.board.WorkLogs()
	if err != nil {
		return err
	}
	lastWeek := now.AddDate(0, 0, -7)
	return j.poster.SendAndPin(ctx, Slack.FormatWeekly(users, entries, lastWeek, j.target, now))
}
