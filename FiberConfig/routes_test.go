package FiberConfig

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Workdesk/AbstractFunctions"
	"Workdesk/Blob"
	"Workdesk/Commands"
	"Workdesk/Controllers"
	"Workdesk/Identity"
	"Workdesk/Models"
	"Workdesk/Store"
	"Workdesk/Sync"
	"Workdesk/middleware"
)

var seoul = AbstractFunctions.ReferenceZone()

type server struct {
	app      *fiber.App
	store    *Store.LocalStore
	sessions *Identity.Sessions
	clock    time.Time
}

func (s *server) now() time.Time { return s.clock }

func newServer(t *testing.T) *server {
	t.Helper()
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "api.db")+"?_busy_timeout=5000"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	store, err := Store.NewLocalStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	s := &server{store: store, clock: time.Date(2024, 5, 13, 8, 30, 0, 0, seoul)}
	store.SetClock(s.now)

	ctx := context.Background()
	for _, u := range []Models.AppUser{
		{UID: "boss", Email: "boss@example.com", DisplayName: "Lee", Role: Models.RoleAdmin},
		{UID: "kim", Email: "kim@example.com", DisplayName: "Kim", Role: Models.RoleGeneral},
	} {
		_, err := Identity.EnsureUser(ctx, store, u, "secret-"+u.UID)
		require.NoError(t, err)
	}

	hub := Sync.NewHub(store, Sync.Options{SeenCapacity: 16, Now: s.now})
	require.NoError(t, hub.Start())
	t.Cleanup(hub.Close)
	waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	require.NoError(t, hub.WaitReady(waitCtx))

	blobs, err := Blob.NewDiskStore(filepath.Join(dir, "uploads"), "/files")
	require.NoError(t, err)
	validate := Commands.NewValidator()
	translator, err := Commands.NewTranslator("ko", validate)
	require.NoError(t, err)
	service := Commands.NewService(store, Commands.Options{
		Blobs:         blobs,
		Validator:     validate,
		UploadTimeout: 5 * time.Second,
		Now:           s.now,
		Rearm:         hub.Rearm,
	})

	s.sessions = Identity.NewSessions("test-secret", time.Hour)
	handlers := &Controllers.Handlers{
		Hub:        hub,
		Commands:   service,
		Translator: translator,
		Store:      store,
		Sessions:   s.sessions,
		RequestLog: filepath.Join(dir, "requests.log"),
		Now:        s.now,
	}
	auth := &middleware.Auth{Verifier: s.sessions, Lookup: hub.User}
	s.app = NewApp(handlers, auth, Options{FilesDir: blobs.Root()})
	return s
}

func (s *server) token(t *testing.T, uid string) string {
	t.Helper()
	token, _, err := s.sessions.Issue(uid)
	require.NoError(t, err)
	return token
}

type call struct {
	method string
	path   string
	token  string
	body   any
	lang   string
}

func (s *server) do(t *testing.T, c call) (int, []byte, http.Header) {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if c.token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	}
	if c.lang != "" {
		req.Header.Set(fiber.HeaderAcceptLanguage, c.lang)
	}
	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw, resp.Header
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

type failure struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	status, _, _ := s.do(t, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestLoginAndMe(t *testing.T) {
	s := newServer(t)

	status, raw, _ := s.do(t, call{method: http.MethodPost, path: "/api/login", lang: "en",
		body: map[string]string{"email": "kim@example.com", "password": "wrong"}})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "bad_credentials", decode[failure](t, raw).Code)

	status, raw, header := s.do(t, call{method: http.MethodPost, path: "/api/login",
		body: map[string]string{"email": "KIM@example.com ", "password": "secret-kim"}})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Contains(t, header.Get(fiber.HeaderSetCookie), middleware.SessionCookie+"=")
	login := decode[struct {
		Token string         `json:"token"`
		User  Models.AppUser `json:"user"`
	}](t, raw)
	assert.Equal(t, "kim", login.User.UID)

	status, raw, _ = s.do(t, call{method: http.MethodGet, path: "/api/me", token: login.Token})
	require.Equal(t, fiber.StatusOK, status)
	me := decode[struct {
		User    Models.AppUser `json:"user"`
		DateKey string         `json:"date_key"`
	}](t, raw)
	assert.Equal(t, "Kim", me.User.DisplayName)
	assert.Equal(t, "2024-05-13", me.DateKey)

	status, _, _ = s.do(t, call{method: http.MethodGet, path: "/api/me"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _, _ = s.do(t, call{method: http.MethodGet, path: "/api/me", token: "garbage"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newServer(t)
	kim, boss := s.token(t, "kim"), s.token(t, "boss")

	for _, path := range []string{"/api/tasks", "/api/admin/sync", "/api/admin/logs"} {
		status, _, _ := s.do(t, call{method: http.MethodGet, path: path, token: kim})
		assert.Equal(t, fiber.StatusForbidden, status, path)
		status, raw, _ := s.do(t, call{method: http.MethodGet, path: path, token: boss})
		assert.Equal(t, fiber.StatusOK, status, "%s: %s", path, raw)
	}
}

func TestTaskFlow(t *testing.T) {
	s := newServer(t)
	kim, boss := s.token(t, "kim"), s.token(t, "boss")

	status, raw, _ := s.do(t, call{method: http.MethodPost, path: "/api/tasks", token: boss, lang: "en",
		body: map[string]any{"tasks": []map[string]string{{"title": "No assignee"}}}})
	assert.Equal(t, fiber.StatusBadRequest, status)
	bad := decode[failure](t, raw)
	assert.Equal(t, "invalid_input", bad.Code)
	assert.Contains(t, bad.Message, "assignee_id is a required field")

	status, raw, _ = s.do(t, call{method: http.MethodPost, path: "/api/tasks", token: boss,
		body: map[string]any{"tasks": []map[string]string{{"assignee_id": "kim", "title": "Fix pump"}}}})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	created := decode[[]Models.Task](t, raw)
	require.Len(t, created, 1)
	id := created[0].ID

	require.Eventually(t, func() bool {
		_, raw, _ := s.do(t, call{method: http.MethodGet, path: "/api/tasks/mine", token: kim})
		return len(decode[[]Models.Task](t, raw)) == 1
	}, 3*time.Second, 20*time.Millisecond)

	status, _, _ = s.do(t, call{method: http.MethodPost, path: "/api/tasks/" + id + "/approve", token: kim})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, raw, _ = s.do(t, call{method: http.MethodPost, path: "/api/tasks/" + id + "/submit", token: kim,
		body: map[string]string{"note": "done"}})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Equal(t, Models.TaskSubmitted, decode[Models.Task](t, raw).Status)

	status, raw, _ = s.do(t, call{method: http.MethodPost, path: "/api/tasks/" + id + "/submit", token: kim})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "illegal_transition", decode[failure](t, raw).Code)

	status, raw, _ = s.do(t, call{method: http.MethodPost, path: "/api/tasks/missing/approve", token: boss})
	assert.Equal(t, fiber.StatusNotFound, status, string(raw))

	status, raw, _ = s.do(t, call{method: http.MethodPost, path: "/api/tasks/" + id + "/approve", token: boss})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.Equal(t, Models.TaskApproved, decode[Models.Task](t, raw).Status)
}

func TestNotifications(t *testing.T) {
	s := newServer(t)
	kim, boss := s.token(t, "kim"), s.token(t, "boss")

	status, raw, _ := s.do(t, call{method: http.MethodPost, path: "/api/tasks", token: boss,
		body: map[string]any{"tasks": []map[string]string{{"assignee_id": "kim", "title": "Order parts"}}}})
	require.Equal(t, fiber.StatusCreated, status, string(raw))

	type list struct {
		Notifications []Models.Notification `json:"notifications"`
		Unread        int                   `json:"unread"`
	}
	_, raw, _ = s.do(t, call{method: http.MethodGet, path: "/api/notifications", token: kim})
	got := decode[list](t, raw)
	require.Len(t, got.Notifications, 1)
	assert.Equal(t, 1, got.Unread)
	assert.Equal(t, Models.NotificationTaskAssigned, got.Notifications[0].Type)

	status, _, _ = s.do(t, call{method: http.MethodPost, path: "/api/notifications/" + got.Notifications[0].ID + "/read", token: kim})
	assert.Equal(t, fiber.StatusNoContent, status)
	_, raw, _ = s.do(t, call{method: http.MethodGet, path: "/api/notifications", token: kim})
	assert.Equal(t, 0, decode[list](t, raw).Unread)

	status, raw, _ = s.do(t, call{method: http.MethodDelete, path: "/api/notifications", token: kim})
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"deleted":1}`, string(raw))

	status, _, _ = s.do(t, call{method: http.MethodDelete, path: "/api/admin/notifications", token: kim})
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestAttendanceFlow(t *testing.T) {
	s := newServer(t)
	kim, boss := s.token(t, "kim"), s.token(t, "boss")
	s.clock = time.Date(2024, 5, 13, 9, 15, 0, 0, seoul)

	status, raw, _ := s.do(t, call{method: http.MethodPost, path: "/api/attendance/clock-in", token: kim, lang: "ko-KR,ko;q=0.9"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	late := decode[failure](t, raw)
	assert.Equal(t, "tardiness_reason", late.Code)
	assert.Equal(t, "5분 지각입니다. 사유를 입력해 주세요", late.Message)

	status, raw, _ = s.do(t, call{method: http.MethodPost, path: "/api/attendance/clock-in", token: kim,
		body: map[string]string{"reason": "bus"}})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	entry := decode[Models.WorkLogEntry](t, raw)
	assert.Equal(t, "kim_2024-05-13", entry.ID)

	status, raw, _ = s.do(t, call{method: http.MethodPost, path: "/api/attendance/clock-in", token: kim,
		body: map[string]string{"reason": "bus"}})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "already_clocked_in", decode[failure](t, raw).Code)

	status, raw, _ = s.do(t, call{method: http.MethodPost, path: "/api/attendance/clock-out", token: kim})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "not_approved", decode[failure](t, raw).Code)

	status, _, _ = s.do(t, call{method: http.MethodPost, path: "/api/attendance/" + entry.ID + "/approve", token: kim})
	assert.Equal(t, fiber.StatusForbidden, status)
	status, raw, _ = s.do(t, call{method: http.MethodPost, path: "/api/attendance/" + entry.ID + "/approve", token: boss})
	require.Equal(t, fiber.StatusOK, status, string(raw))

	s.clock = time.Date(2024, 5, 13, 18, 15, 0, 0, seoul)
	status, raw, _ = s.do(t, call{method: http.MethodPost, path: "/api/attendance/clock-out", token: kim})
	require.Equal(t, fiber.StatusOK, status, string(raw))

	var rows []map[string]any
	require.Eventually(t, func() bool {
		_, raw, _ := s.do(t, call{method: http.MethodGet, path: "/api/attendance/rows?from=2024-05-13&to=2024-05-13", token: kim})
		rows = decode[[]map[string]any](t, raw)
		return len(rows) == 1 && rows[0]["clock_out_at"] != nil
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "tardy", rows[0]["status"])
	assert.Equal(t, "bus", rows[0]["tardiness_reason"])

	status, raw, _ = s.do(t, call{method: http.MethodGet, path: "/api/attendance/rows?from=13-05-2024", token: kim})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_date", decode[failure](t, raw).Code)

	status, raw, header := s.do(t, call{method: http.MethodGet, path: "/api/attendance/export?from=2024-05-13&to=2024-05-13", token: boss})
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, header.Get(fiber.HeaderContentDisposition), "attendance_2024-05-13.xlsx")
	assert.True(t, bytes.HasPrefix(raw, []byte("PK")), "xlsx is a zip archive")

	status, raw, _ = s.do(t, call{method: http.MethodGet, path: "/api/attendance/week?date=2024-05-15", token: kim})
	require.Equal(t, fiber.StatusOK, status)
	weeks := decode[[]map[string]any](t, raw)
	require.Len(t, weeks, 1)
	assert.Equal(t, "9h00m", weeks[0]["total"])
	assert.EqualValues(t, 1, weeks[0]["tardy_count"])

	status, _, _ = s.do(t, call{method: http.MethodDelete, path: "/api/attendance/" + entry.ID, token: boss})
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestLeave(t *testing.T) {
	s := newServer(t)
	kim := s.token(t, "kim")

	status, raw, _ := s.do(t, call{method: http.MethodPost, path: "/api/leave", token: kim, body: map[string]string{"date": "2024-05-20"}})
	require.Equal(t, fiber.StatusOK, status, string(raw))
	assert.JSONEq(t, `{"date":"2024-05-20","on_leave":true}`, string(raw))

	_, raw, _ = s.do(t, call{method: http.MethodGet, path: "/api/leave?month=2024-05", token: kim})
	assert.JSONEq(t, `{"user_id":"kim","month":"2024-05","days":["2024-05-20"]}`, string(raw))

	_, raw, _ = s.do(t, call{method: http.MethodGet, path: "/api/leave/status?date=2024-05-20", token: kim})
	assert.Contains(t, string(raw), `"on_leave":true`)

	status, raw, _ = s.do(t, call{method: http.MethodPost, path: "/api/leave", token: kim, body: map[string]string{"date": "May 20"}})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_date", decode[failure](t, raw).Code)
}

func TestChat(t *testing.T) {
	s := newServer(t)
	kim := s.token(t, "kim")
	s.clock = time.Date(2024, 5, 13, 14, 0, 0, 0, seoul)

	status, raw, _ := s.do(t, call{method: http.MethodPost, path: "/api/chat/p1/s1", token: kim, body: map[string]string{"text": "  "}})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "empty_message", decode[failure](t, raw).Code)

	status, raw, _ = s.do(t, call{method: http.MethodPost, path: "/api/chat/p1/s1", token: kim, body: map[string]string{"text": "hello"}})
	require.Equal(t, fiber.StatusCreated, status, string(raw))

	require.Eventually(t, func() bool {
		_, raw, _ := s.do(t, call{method: http.MethodGet, path: "/api/chat/p1/s1?tz=Asia/Seoul", token: kim})
		groups := decode[[]struct {
			Label    string               `json:"label"`
			Messages []Models.ChatMessage `json:"messages"`
		}](t, raw)
		return len(groups) == 1 && len(groups[0].Messages) == 1 && groups[0].Messages[0].Text == "hello"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestUploadAttachment(t *testing.T) {
	s := newServer(t)
	kim, boss := s.token(t, "kim"), s.token(t, "boss")

	_, raw, _ := s.do(t, call{method: http.MethodPost, path: "/api/tasks", token: boss,
		body: map[string]any{"tasks": []map[string]string{{"assignee_id": "kim", "title": "Photos"}}}})
	id := decode[[]Models.Task](t, raw)[0].ID

	var form bytes.Buffer
	boundary := "workdesk-boundary"
	form.WriteString("--" + boundary + "\r\n")
	form.WriteString(`Content-Disposition: form-data; name="file"; filename="notes.txt"` + "\r\n")
	form.WriteString("Content-Type: text/plain\r\n\r\n")
	form.WriteString("pump pressure 3 bar\r\n")
	form.WriteString("--" + boundary + "--\r\n")

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+id+"/attachments", &form)
	req.Header.Set(fiber.HeaderContentType, "multipart/form-data; boundary="+boundary)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+kim)
	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	task := decode[Models.Task](t, body)
	require.Len(t, task.Attachments, 1)
	assert.Equal(t, "notes.txt", task.Attachments[0].Name)
	require.True(t, strings.HasPrefix(task.Attachments[0].URL, "/files/"), task.Attachments[0].URL)

	status, raw, _ := s.do(t, call{method: http.MethodGet, path: task.Attachments[0].URL})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "pump pressure 3 bar", string(raw))
}
