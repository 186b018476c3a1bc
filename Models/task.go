package Models

import (
	"errors"
	"fmt"
	"time"
)

var ErrIllegalTransition = errors.New("illegal status transition")

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskSubmitted TaskStatus = "submitted"
	TaskRevision  TaskStatus = "revision"
	TaskApproved  TaskStatus = "approved"
)

// taskTransitions is the complete set of legal task status moves.
// approved has no outgoing edges.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:   {TaskSubmitted},
	TaskSubmitted: {TaskApproved, TaskRevision},
	TaskRevision:  {TaskSubmitted},
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskSubmitted, TaskRevision, TaskApproved:
		return true
	}
	return false
}

func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s TaskStatus) Terminal() bool {
	return len(taskTransitions[s]) == 0
}

// ValidateTaskTransition returns ErrIllegalTransition wrapped with the attempted move.
func ValidateTaskTransition(from, to TaskStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: task %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

type TaskCategory string

const (
	CategoryField  TaskCategory = "field"
	CategoryOffice TaskCategory = "office"
)

func (c TaskCategory) Valid() bool {
	return c == CategoryField || c == CategoryOffice
}

type TaskPriority string

const (
	PriorityP1 TaskPriority = "P1"
	PriorityP2 TaskPriority = "P2"
	PriorityP3 TaskPriority = "P3"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// Attachment is a file attached to a task or a chat message.
type Attachment struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type Task struct {
	ID                   string       `json:"id"`
	AssigneeID           string       `json:"assignee_id"`
	AssigneeDisplayName  string       `json:"assignee_display_name"`
	CreatedBy            string       `json:"created_by"`
	CreatedByDisplayName string       `json:"created_by_display_name"`
	Title                string       `json:"title"`
	Description          string       `json:"description"`
	Category             TaskCategory `json:"category"`
	Priority             TaskPriority `json:"priority"`
	Status               TaskStatus   `json:"status"`
	DueDate              *time.Time   `json:"due_date"`
	CreatedAt            time.Time    `json:"created_at"`
	CompletedAt          *time.Time   `json:"completed_at"`
	ApprovedAt           *time.Time   `json:"approved_at"`
	Attachments          []Attachment `json:"attachments"`
	SubmissionNote       *string      `json:"submission_note"`
}

// AttachmentsMutableBy reports whether uid may add or remove attachments right now.
func (t Task) AttachmentsMutableBy(uid string) bool {
	if uid == "" || uid != t.AssigneeID {
		return false
	}
	return t.Status == TaskPending || t.Status == TaskRevision
}

// Open reports whether the task still sits in someone's queue.
func (t Task) Open() bool {
	return t.Status != TaskApproved
}
