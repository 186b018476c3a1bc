package Mappers

import (
	"strings"

	"Workdesk/AbstractFunctions"
	"Workdesk/Models"
	"Workdesk/Store"
)

func workLogStatus(v any) Models.WorkLogStatus {
	if s := Models.WorkLogStatus(strings.ToLower(asString(v))); s.Valid() {
		return s
	}
	return Models.WorkLogPending
}

func ToWorkLog(doc Store.Document) Models.WorkLogEntry {
	d := doc.Data
	clockIn, _ := asTime(d["clockInAt"])
	dateKey := asString(d["dateKey"])
	if _, err := AbstractFunctions.ParseDateKey(dateKey); err != nil {
		dateKey = ""
		if !clockIn.IsZero() {
			dateKey = AbstractFunctions.DateKey(clockIn)
		}
	}
	return Models.WorkLogEntry{
		ID:              doc.ID,
		UserID:          asString(d["userId"]),
		UserDisplayName: asString(d["userDisplayName"]),
		DateKey:         dateKey,
		ClockInAt:       clockIn,
		ClockOutAt:      asOptTime(d["clockOutAt"]),
		Status:          workLogStatus(d["status"]),
		ApprovedBy:      asOptString(d["approvedBy"]),
		ApprovedAt:      asOptTime(d["approvedAt"]),
		TardinessReason: asOptString(d["tardinessReason"]),
	}
}

func ToWorkLogs(docs []Store.Document) []Models.WorkLogEntry {
	out := make([]Models.WorkLogEntry, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ToWorkLog(doc))
	}
	return out
}

func WorkLogFields(w Models.WorkLogEntry) map[string]any {
	fields := map[string]any{
		"userId":          w.UserID,
		"userDisplayName": w.UserDisplayName,
		"dateKey":         w.DateKey,
		"clockOutAt":      timeOrNil(w.ClockOutAt),
		"status":          string(w.Status),
		"approvedBy":      stringOrNil(w.ApprovedBy),
		"approvedAt":      timeOrNil(w.ApprovedAt),
		"tardinessReason": stringOrNil(w.TardinessReason),
	}
	if !w.ClockInAt.IsZero() {
		fields["clockInAt"] = w.ClockInAt
	}
	return fields
}

// ToLeaveDay reads users/{uid}/leaveDays/{dateKey}.
func ToLeaveDay(doc Store.Document) Models.LeaveDay {
	createdAt, _ := asTime(doc.Data["createdAt"])
	uid := asString(doc.Data["userId"])
	if uid == "" {
		uid = pathSegment(doc.Path, 1)
	}
	key := asString(doc.Data["dateKey"])
	if key == "" {
		key = doc.ID
	}
	return Models.LeaveDay{UserID: uid, DateKey: key, CreatedAt: createdAt}
}

func ToLeaveDays(docs []Store.Document) []Models.LeaveDay {
	out := make([]Models.LeaveDay, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ToLeaveDay(doc))
	}
	return out
}

func LeaveDayFields(l Models.LeaveDay) map[string]any {
	fields := map[string]any{
		"userId":  l.UserID,
		"dateKey": l.DateKey,
	}
	if !l.CreatedAt.IsZero() {
		fields["createdAt"] = l.CreatedAt
	}
	return fields
}
