package Controllers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Workdesk/Commands"
	"Workdesk/Identity"
	"Workdesk/Models"
	"Workdesk/Store"
	"Workdesk/Sync"
	"Workdesk/middleware"
)

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		&Commands.CommandError{Key: "admin_only", Err: Commands.ErrForbidden}:                      fiber.StatusForbidden,
		&Commands.CommandError{Key: "not_found", Err: Store.ErrNotFound}:                          fiber.StatusNotFound,
		&Commands.CommandError{Key: "illegal_transition", Err: Models.ErrIllegalTransition}:       fiber.StatusConflict,
		&Commands.CommandError{Key: "already_clocked_in", Err: Commands.ErrAlreadyClockedIn}:      fiber.StatusConflict,
		&Commands.CommandError{Key: "attachments_locked", Err: Commands.ErrAttachmentsLocked}:     fiber.StatusConflict,
		&Commands.CommandError{Key: "tardiness_reason", Err: Commands.ErrTardinessReasonRequired}: fiber.StatusBadRequest,
		&Commands.CommandError{Key: "empty_message", Err: Commands.ErrEmptyMessage}:               fiber.StatusBadRequest,
		&Commands.CommandError{Key: "upload_timeout", Err: Commands.ErrUploadTimeout}:             fiber.StatusRequestTimeout,
		&Commands.CommandError{Key: "no_file_storage", Err: Commands.ErrStorageUnavailable}:       fiber.StatusServiceUnavailable,
		fmt.Errorf("%w: tasks: permission denied", Sync.ErrViewUnavailable):                        fiber.StatusServiceUnavailable,
		Identity.ErrBadCredentials:                                                                fiber.StatusUnauthorized,
		errors.New("disk on fire"):                                                                fiber.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusOf(err), err.Error())
	}
}

type fakeSource struct {
	events chan Models.Notification
	done   chan struct{}
	err    error
}

func (f *fakeSource) Events() <-chan Models.Notification { return f.events }
func (f *fakeSource) Done() <-chan struct{}              { return f.done }
func (f *fakeSource) Err() error                         { return f.err }

func TestPumpWritesEvents(t *testing.T) {
	src := &fakeSource{events: make(chan Models.Notification, 2), done: make(chan struct{})}
	src.events <- Models.Notification{ID: "n1", Type: Models.NotificationTaskAssigned, Title: "Fix pump"}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	result := make(chan error, 1)
	go func() { result <- pump(w, src, time.Hour) }()

	time.Sleep(50 * time.Millisecond)
	close(src.done)
	require.NoError(t, <-result)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "retry: 5000\n\n"))
	assert.Contains(t, out, "id: n1\nevent: notification\ndata: {")
	assert.Contains(t, out, `"title":"Fix pump"`)
}

func TestPumpReportsFailedFeed(t *testing.T) {
	src := &fakeSource{events: make(chan Models.Notification), done: make(chan struct{}), err: errors.New("permission denied")}
	close(src.done)

	var buf bytes.Buffer
	err := pump(bufio.NewWriter(&buf), src, time.Hour)
	assert.EqualError(t, err, "permission denied")
	assert.Contains(t, buf.String(), "event: error\n")
}

func TestPumpPings(t *testing.T) {
	src := &fakeSource{events: make(chan Models.Notification), done: make(chan struct{})}
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	result := make(chan error, 1)
	go func() { result <- pump(w, src, 10*time.Millisecond) }()

	time.Sleep(60 * time.Millisecond)
	close(src.done)
	require.NoError(t, <-result)
	assert.Contains(t, buf.String(), ": ping\n\n")
}

func writeLog(t *testing.T, entries ...middleware.LogData) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "requests.log")
	var lines []string
	for _, e := range entries {
		raw, err := json.Marshal(e)
		require.NoError(t, err)
		lines = append(lines, string(raw))
	}
	lines = append(lines, "not json")
	require.NoError(t, os.WriteFile(file, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return file
}

func TestRequestLogGrouping(t *testing.T) {
	day := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)
	file := writeLog(t,
		middleware.LogData{Timestamp: day, Method: "GET", Path: "/api/tasks", Status: 200, Latency: 10 * time.Millisecond, UserID: "boss"},
		middleware.LogData{Timestamp: day.Add(time.Minute), Method: "GET", Path: "/api/tasks", Status: 500, Latency: 30 * time.Millisecond, UserID: "boss"},
		middleware.LogData{Timestamp: day.Add(2 * time.Minute), Method: "POST", Path: "/api/attendance/clock-in", Status: 201, Latency: 5 * time.Millisecond, UserID: "kim"},
		middleware.LogData{Timestamp: day.AddDate(0, 0, -3), Method: "GET", Path: "/api/me", Status: 200},
	)

	logs, err := readLogsFromFile(file, day.Add(-time.Hour), day.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, logs, 3)

	groups := groupLogsByPath(logs)
	require.Len(t, groups, 2)
	assert.Equal(t, "/api/tasks", groups[0].Path)
	assert.Equal(t, 2, groups[0].Count)
	assert.InDelta(t, 20.0, groups[0].AvgLatency, 0.001)
	assert.InDelta(t, 10.0, groups[0].MinLatency, 0.001)
	assert.InDelta(t, 30.0, groups[0].MaxLatency, 0.001)
	assert.InDelta(t, 0.5, groups[0].SuccessRate, 0.001)

	assert.Len(t, filterLogs(logs, "", "post", "", ""), 1)
	assert.Len(t, filterLogs(logs, "TASKS", "", "500", ""), 1)
	assert.Len(t, filterLogs(logs, "", "", "", "kim"), 1)

	missing, err := readLogsFromFile(filepath.Join(t.TempDir(), "none.log"), day, day)
	require.NoError(t, err)
	assert.Empty(t, missing)
}
