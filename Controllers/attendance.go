package Controllers

import (
	"fmt"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"Workdesk/AbstractFunctions"
	"Workdesk/Commands"
	"Workdesk/Reports"
	"Workdesk/Views"
)

type clockInInput struct {
	Reason string `json:"reason"`
}

// ClockIn opens today's work log. A late clock-in without a reason comes back
// as 400 with code "tardiness_reason" and the minutes in the message.
func (h *Handlers) ClockIn(c *fiber.Ctx) error {
	var input clockInInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return h.badRequest(c, err)
		}
	}
	entry, err := h.Commands.ClockIn(c.UserContext(), actor(c), input.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

type clockOutInput struct {
	ID string `json:"id"`
}

// ClockOut closes the given work log, or today's when no id is sent.
func (h *Handlers) ClockOut(c *fiber.Ctx) error {
	var input clockOutInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return h.badRequest(c, err)
		}
	}
	entry, err := h.Commands.ClockOut(c.UserContext(), actor(c), input.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(entry)
}

func (h *Handlers) ApproveWorkLog(c *fiber.Ctx) error {
	entry, err := h.Commands.ApproveWorkLog(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(entry)
}

func (h *Handlers) RejectWorkLog(c *fiber.Ctx) error {
	entry, err := h.Commands.RejectWorkLog(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(entry)
}

func (h *Handlers) ResetWorkLog(c *fiber.Ctx) error {
	if err := h.Commands.ResetWorkLog(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Week returns the weekly totals for the week containing ?date=. Admins get
// every user, others only themselves.
func (h *Handlers) Week(c *fiber.Ctx) error {
	at, err := h.dateParam(c, "date", h.now())
	if err != nil {
		return h.fail(c, err)
	}
	start, end := AbstractFunctions.WeekBounds(at)
	entries, err := h.Hub.WorkLogsBetween(c.UserContext(), AbstractFunctions.DateKey(start), AbstractFunctions.DateKey(end))
	if err != nil {
		return h.fail(c, err)
	}

	user := actor(c)
	var weeks []Views.WeeklyAggregate
	if user.IsAdmin() {
		weeks = Views.WeeklyByUser(entries, at, h.target())
	} else {
		weeks = []Views.WeeklyAggregate{Views.Weekly(entries, user.UID, at, h.target())}
	}

	out := make([]fiber.Map, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, fiber.Map{
			"user_id":         w.UserID,
			"week_start":      w.WeekStart,
			"week_end":        w.WeekEnd,
			"total":           w.TotalLabel(),
			"total_minutes":   int(w.Total / time.Minute),
			"progress":        w.Progress(),
			"progress_capped": w.ProgressCapped(),
			"tardy_count":     w.TardyCount,
			"entries":         w.Entries,
		})
	}
	return c.JSON(out)
}

// attendanceRows reads ?from=&to= (default: this month so far) and ?uid=.
// Non-admins only ever see their own rows.
func (h *Handlers) attendanceRows(c *fiber.Ctx) ([]Views.AttendanceRow, Views.AttendanceFilter, error) {
	now := h.now()
	today := AbstractFunctions.InReference(now)
	monthStart, _ := AbstractFunctions.MonthBounds(today.Year(), today.Month())

	filter := Views.AttendanceFilter{From: c.Query("from", monthStart), To: c.Query("to", AbstractFunctions.DateKey(now))}
	for _, key := range []string{filter.From, filter.To} {
		if _, err := AbstractFunctions.ParseDateKey(key); err != nil {
			return nil, filter, &Commands.CommandError{Key: "invalid_date", Params: []string{key}, Err: Commands.ErrInvalidInput}
		}
	}

	user := actor(c)
	if user.IsAdmin() {
		for _, uid := range c.Context().QueryArgs().PeekMulti("uid") {
			filter.UserIDs = append(filter.UserIDs, string(uid))
		}
	} else {
		filter.UserIDs = []string{user.UID}
	}

	users, err := h.Hub.Users()
	if err != nil {
		return nil, filter, err
	}
	entries, err := h.Hub.WorkLogsBetween(c.UserContext(), filter.From, filter.To)
	if err != nil {
		return nil, filter, err
	}
	uids := filter.UserIDs
	if len(uids) == 0 {
		for _, u := range users {
			uids = append(uids, u.UID)
		}
	}
	leaves, err := h.Hub.LeaveDays(c.UserContext(), uids...)
	if err != nil {
		return nil, filter, err
	}
	return Views.AttendanceRows(entries, leaves, users, filter), filter, nil
}

func (h *Handlers) AttendanceRows(c *fiber.Ctx) error {
	rows, _, err := h.attendanceRows(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(rows)
}

// ExportAttendance sends the same rows as an xlsx download.
func (h *Handlers) ExportAttendance(c *fiber.Ctx) error {
	rows, filter, err := h.attendanceRows(c)
	if err != nil {
		return h.fail(c, err)
	}
	buf, err := Reports.AttendanceWorkbook(rows)
	if err != nil {
		return h.fail(c, err)
	}
	c.Attachment(Reports.AttendanceFileName(filter.From, filter.To))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return c.Send(buf.Bytes())
}

// LeaveMonth returns the leave days of ?month=YYYY-MM for the caller, or for
// ?uid= when an admin asks.
func (h *Handlers) LeaveMonth(c *fiber.Ctx) error {
	now := AbstractFunctions.InReference(h.now())
	year, month := now.Year(), now.Month()
	if raw := c.Query("month"); raw != "" {
		t, err := time.ParseInLocation("2006-01", raw, AbstractFunctions.ReferenceZone())
		if err != nil {
			return h.fail(c, &Commands.CommandError{Key: "invalid_date", Params: []string{raw}, Err: Commands.ErrInvalidInput})
		}
		year, month = t.Year(), t.Month()
	}

	user := actor(c)
	uid := user.UID
	if other := c.Query("uid"); other != "" && user.IsAdmin() {
		uid = other
	}
	leaves, err := h.Hub.LeaveDays(c.UserContext(), uid)
	if err != nil {
		return h.fail(c, err)
	}
	days := Views.LeaveCalendar(leaves, uid, year, month)
	keys := make([]string, 0, len(days))
	for key := range days {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return c.JSON(fiber.Map{
		"user_id": uid,
		"month":   fmt.Sprintf("%04d-%02d", year, int(month)),
		"days":    keys,
	})
}

type leaveInput struct {
	Date string `json:"date"`
}

func (h *Handlers) ToggleLeave(c *fiber.Ctx) error {
	var input leaveInput
	if err := c.BodyParser(&input); err != nil {
		return h.badRequest(c, err)
	}
	onLeave, err := h.Commands.ToggleLeaveDay(c.UserContext(), actor(c), input.Date)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"date": input.Date, "on_leave": onLeave})
}

// OnLeave answers whether a user is on leave on ?date= (default today).
func (h *Handlers) OnLeave(c *fiber.Ctx) error {
	at, err := h.dateParam(c, "date", h.now())
	if err != nil {
		return h.fail(c, err)
	}
	uid := actor(c).UID
	if other := c.Query("uid"); other != "" && actor(c).IsAdmin() {
		uid = other
	}
	onLeave, err := h.Hub.OnLeave(c.UserContext(), uid, AbstractFunctions.DateKey(at))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"user_id": uid, "date": AbstractFunctions.DateKey(at), "on_leave": onLeave})
}
