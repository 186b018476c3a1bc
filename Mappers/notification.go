package Mappers

import (
	"strings"

	"Workdesk/Models"
	"Workdesk/Store"
)

func notificationType(v any) Models.NotificationType {
	if t := Models.NotificationType(strings.ToLower(asString(v))); t.Valid() {
		return t
	}
	return Models.NotificationTaskAssigned
}

// ToNotification reads users/{uid}/notifications/{id}.
func ToNotification(doc Store.Document) Models.Notification {
	d := doc.Data
	createdAt, _ := asTime(d["createdAt"])
	actor := asOptString(d["actorDisplayName"])
	if actor == nil {
		actor = asOptString(d["assignerName"])
	}
	return Models.Notification{
		ID:               doc.ID,
		RecipientID:      pathSegment(doc.Path, 1),
		Type:             notificationType(d["type"]),
		TaskID:           asString(d["taskId"]),
		Title:            asString(d["title"]),
		Read:             asBool(d["read"]),
		CreatedAt:        createdAt,
		ActorDisplayName: actor,
	}
}

func ToNotifications(docs []Store.Document) []Models.Notification {
	out := make([]Models.Notification, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ToNotification(doc))
	}
	return out
}

func NotificationFields(n Models.Notification) map[string]any {
	fields := map[string]any{
		"type":             string(n.Type),
		"taskId":           n.TaskID,
		"title":            n.Title,
		"read":             n.Read,
		"actorDisplayName": stringOrNil(n.ActorDisplayName),
	}
	if !n.CreatedAt.IsZero() {
		fields["createdAt"] = n.CreatedAt
	}
	return fields
}
