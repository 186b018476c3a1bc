package Mappers

import (
	"Workdesk/Models"
	"Workdesk/Store"
)

// ToChatMessage reads projects/{p}/subMenus/{s}/messages/{id}. A message whose
// server timestamp has not landed yet keeps a zero CreatedAt.
func ToChatMessage(doc Store.Document) Models.ChatMessage {
	d := doc.Data
	createdAt, _ := asTime(d["createdAt"])

	file := ToAttachment(d["file"])
	if file == nil {
		// flat fields written by older clients
		file = ToAttachment(map[string]any{
			"url":      d["fileUrl"],
			"name":     d["fileName"],
			"size":     d["fileSize"],
			"mimeType": d["fileType"],
		})
	}

	return Models.ChatMessage{
		ID:                doc.ID,
		ProjectID:         pathSegment(doc.Path, 1),
		SubMenuID:         pathSegment(doc.Path, 3),
		SenderID:          asString(d["senderId"]),
		SenderDisplayName: asString(d["senderDisplayName"]),
		SenderJobTitle:    asString(d["senderJobTitle"]),
		Text:              asString(d["text"]),
		CreatedAt:         createdAt,
		File:              file,
	}
}

func ToChatMessages(docs []Store.Document) []Models.ChatMessage {
	out := make([]Models.ChatMessage, 0, len(docs))
	for _, doc := range docs {
		out = append(out, ToChatMessage(doc))
	}
	return out
}

// ChatMessageFields omits createdAt; the write path stamps it with the server time.
func ChatMessageFields(m Models.ChatMessage) map[string]any {
	var file any
	if m.File != nil {
		file = AttachmentFields(*m.File)
	}
	return map[string]any{
		"senderId":          m.SenderID,
		"senderDisplayName": m.SenderDisplayName,
		"senderJobTitle":    m.SenderJobTitle,
		"text":              m.Text,
		"file":              file,
	}
}
