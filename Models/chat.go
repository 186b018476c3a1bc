package Models

import "time"

type ChatMessage struct {
	ID                string      `json:"id"`
	ProjectID         string      `json:"project_id"`
	SubMenuID         string      `json:"sub_menu_id"`
	SenderID          string      `json:"sender_id"`
	SenderDisplayName string      `json:"sender_display_name"`
	SenderJobTitle    string      `json:"sender_job_title"`
	Text              string      `json:"text"`
	CreatedAt         time.Time   `json:"created_at"` // zero until the server timestamp lands
	File              *Attachment `json:"file"`
}

// Pending reports whether the server timestamp has not been assigned yet.
func (m ChatMessage) Pending() bool {
	return m.CreatedAt.IsZero()
}
