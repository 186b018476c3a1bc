package Mappers

import (
	"strings"

	"Workdesk/Models"
	"Workdesk/Store"
)

// legacyTaskStatuses maps retired status values onto the current enum.
var legacyTaskStatuses = map[string]Models.TaskStatus{
	"completed": Models.TaskSubmitted,
}

func taskStatus(v any) Models.TaskStatus {
	raw := strings.ToLower(asString(v))
	if s := Models.TaskStatus(raw); s.Valid() {
		return s
	}
	if s, ok := legacyTaskStatuses[raw]; ok {
		return s
	}
	return Models.TaskPending
}

func taskCategory(v any) Models.TaskCategory {
	if c := Models.TaskCategory(strings.ToLower(asString(v))); c.Valid() {
		return c
	}
	return Models.CategoryOffice
}

func taskPriority(v any) Models.TaskPriority {
	if p := Models.TaskPriority(strings.ToUpper(asString(v))); p.Valid() {
		return p
	}
	return Models.PriorityP2
}

// ToAttachment reads an attachment map; nil when it carries no url.
func ToAttachment(v any) *Models.Attachment {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	url := asString(m["url"])
	if url == "" {
		return nil
	}
	size, _ := asInt64(m["size"])
	if size < 0 {
		size = 0
	}
	mime := asString(m["mimeType"])
	if mime == "" {
		mime = asString(m["type"])
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	name := asString(m["name"])
	if name == "" {
		name = url[strings.LastIndex(url, "/")+1:]
	}
	return &Models.Attachment{URL: url, Name: name, Size: size, MimeType: mime}
}

func attachments(v any) []Models.Attachment {
	items, _ := v.([]any)
	out := make([]Models.Attachment, 0, len(items))
	for _, item := range items {
		if a := ToAttachment(item); a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// AttachmentFields is the stored form of an attachment.
func AttachmentFields(a Models.Attachment) map[string]any {
	return map[string]any{
		"url":      a.URL,
		"name":     a.Name,
		"size":     a.Size,
		"mimeType": a.MimeType,
	}
}

func ToTask(doc Store.Document) Models.Task {
	d := doc.Data
	createdAt, _ := asTime(d["createdAt"])
	return Models.Task{
		ID:                   doc.ID,
		AssigneeID:           asString(d["assigneeId"]),
		AssigneeDisplayName:  asString(d["assigneeDisplayName"]),
		CreatedBy:            asString(d["createdBy"]),
		CreatedByDisplayName: asString(d["createdByDisplayName"]),
		Title:                asString(d["title"]),
		Description:          asString(d["description"]),
		Category:             taskCategory(d["category"]),
		Priority:             taskPriority(d["priority"]),
		Status:               taskStatus(d["status"]),
		DueDate:              asOptTime(d["dueDate"]),
		CreatedAt:            createdAt,
		CompletedAt:          asOptTime(d["completedAt"]),
		ApprovedAt:           asOptTime(d["approvedAt"]),
		Attachments:          attachments(d["attachments"]),
		SubmissionNote:       asOptString(d["submissionNote"]),
	}
}

func ToTasks(docs []Store.Document) []Models.Task {
	out := make([]Models.Task, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ToTask(doc))
	}
	return out
}

// TaskFields returns every write-eligible task field.
func TaskFields(t Models.Task) map[string]any {
	atts := make([]any, 0, len(t.Attachments))
	for _, a := range t.Attachments {
		atts = append(atts, AttachmentFields(a))
	}
	fields := map[string]any{
		"assigneeId":           t.AssigneeID,
		"assigneeDisplayName":  t.AssigneeDisplayName,
		"createdBy":            t.CreatedBy,
		"createdByDisplayName": t.CreatedByDisplayName,
		"title":                t.Title,
		"description":          t.Description,
		"category":             string(t.Category),
		"priority":             string(t.Priority),
		"status":               string(t.Status),
		"dueDate":              timeOrNil(t.DueDate),
		"completedAt":          timeOrNil(t.CompletedAt),
		"approvedAt":           timeOrNil(t.ApprovedAt),
		"attachments":          atts,
		"submissionNote":       stringOrNil(t.SubmissionNote),
	}
	if !t.CreatedAt.IsZero() {
		fields["createdAt"] = t.CreatedAt
	}
	return fields
}
