package Models

import "time"

type NotificationType string

const (
	NotificationTaskAssigned  NotificationType = "task_assigned"
	NotificationTaskCompleted NotificationType = "task_completed"
	NotificationTaskRevision  NotificationType = "task_revision"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTaskAssigned, NotificationTaskCompleted, NotificationTaskRevision:
		return true
	}
	return false
}

type Notification struct {
	ID               string           `json:"id"`
	RecipientID      string           `json:"recipient_id"`
	Type             NotificationType `json:"type"`
	TaskID           string           `json:"task_id"`
	Title            string           `json:"title"`
	Read             bool             `json:"read"`
	CreatedAt        time.Time        `json:"created_at"`
	ActorDisplayName *string          `json:"actor_display_name"`
}
