package Commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"Workdesk/Blob"
	"Workdesk/Mappers"
	"Workdesk/Models"
	"Workdesk/Store"
)

// MaxUploadBytes caps a single task or chat file.
const MaxUploadBytes = 50 << 20

type NewTask struct {
	AssigneeID  string     `json:"assignee_id" validate:"required"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	Category    string     `json:"category" validate:"omitempty,oneof=field office"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=P1 P2 P3"`
	DueDate     *time.Time `json:"due_date"`
}

// TaskEdit holds the admin-editable fields; nil leaves a field unchanged.
type TaskEdit struct {
	AssigneeID   *string    `json:"assignee_id" validate:"omitempty,min=1"`
	Title        *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string    `json:"description" validate:"omitempty,max=5000"`
	Category     *string    `json:"category" validate:"omitempty,oneof=field office"`
	Priority     *string    `json:"priority" validate:"omitempty,oneof=P1 P2 P3"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
}

func (s *Service) getTask(tx Store.Tx, taskID string) (Models.Task, error) {
	doc, err := tx.Get(Models.TaskPath(taskID))
	if err != nil {
		return Models.Task{}, storeError(err, "task")
	}
	return Mappers.ToTask(doc), nil
}

func transitionError(from, to Models.TaskStatus) error {
	err := Models.ValidateTaskTransition(from, to)
	if err == nil {
		return nil
	}
	return fail("illegal_transition", err, string(from), string(to))
}

// CreateTasks creates a batch of tasks atomically and notifies each assignee.
func (s *Service) CreateTasks(ctx context.Context, actor Models.AppUser, inputs []NewTask) ([]Models.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fail("empty_batch", ErrInvalidInput)
	}

	assignees := make(map[string]Models.AppUser)
	for i := range inputs {
		inputs[i].Title = strings.TrimSpace(inputs[i].Title)
		if err := s.validateInput(inputs[i]); err != nil {
			return nil, err
		}
		uid := inputs[i].AssigneeID
		if _, ok := assignees[uid]; ok {
			continue
		}
		u, err := s.lookupUser(ctx, uid)
		if err != nil {
			return nil, err
		}
		assignees[uid] = u
	}

	now := s.now()
	tasks := make([]Models.Task, 0, len(inputs))
	for _, in := range inputs {
		category := Models.TaskCategory(in.Category)
		if !category.Valid() {
			category = Models.CategoryOffice
		}
		priority := Models.TaskPriority(in.Priority)
		if !priority.Valid() {
			priority = Models.PriorityP2
		}
		tasks = append(tasks, Models.Task{
			ID:                   newID(),
			AssigneeID:           in.AssigneeID,
			AssigneeDisplayName:  assignees[in.AssigneeID].DisplayName,
			CreatedBy:            actor.UID,
			CreatedByDisplayName: actor.DisplayName,
			Title:                in.Title,
			Description:          strings.TrimSpace(in.Description),
			Category:             category,
			Priority:             priority,
			Status:               Models.TaskPending,
			DueDate:              in.DueDate,
			CreatedAt:            now,
			Attachments:          []Models.Attachment{},
		})
	}

	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx Store.Tx) error {
		for _, t := range tasks {
			if err := tx.Create(Models.TaskPath(t.ID), Mappers.TaskFields(t)); err != nil {
				return err
			}
			if err := s.notificationWrite(tx, t.AssigneeID, Models.NotificationTaskAssigned, t, actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err, "tasks")
	}
	log.Printf("%s created %d task(s)", actor.UID, len(tasks))
	return tasks, nil
}

// EditTask applies admin field edits. Edits are allowed in any status.
func (s *Service) EditTask(ctx context.Context, actor Models.AppUser, taskID string, edit TaskEdit) (Models.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return Models.Task{}, err
	}
	if err := s.validateInput(edit); err != nil {
		return Models.Task{}, err
	}

	var assignee *Models.AppUser
	if edit.AssigneeID != nil {
		u, err := s.lookupUser(ctx, *edit.AssigneeID)
		if err != nil {
			return Models.Task{}, err
		}
		assignee = &u
	}

	var updated Models.Task
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx Store.Tx) error {
		task, err := s.getTask(tx, taskID)
		if err != nil {
			return err
		}
		fields := map[string]any{}
		if assignee != nil {
			task.AssigneeID, task.AssigneeDisplayName = assignee.UID, assignee.DisplayName
			fields["assigneeId"], fields["assigneeDisplayName"] = task.AssigneeID, task.AssigneeDisplayName
		}
		if edit.Title != nil {
			task.Title = strings.TrimSpace(*edit.Title)
			fields["title"] = task.Title
		}
		if edit.Description != nil {
			task.Description = strings.TrimSpace(*edit.Description)
			fields["description"] = task.Description
		}
		if edit.Category != nil {
			task.Category = Models.TaskCategory(*edit.Category)
			fields["category"] = string(task.Category)
		}
		if edit.Priority != nil {
			task.Priority = Models.TaskPriority(*edit.Priority)
			fields["priority"] = string(task.Priority)
		}
		switch {
		case edit.ClearDueDate:
			task.DueDate = nil
			fields["dueDate"] = nil
		case edit.DueDate != nil:
			task.DueDate = edit.DueDate
			fields["dueDate"] = *edit.DueDate
		}
		updated = task
		if len(fields) == 0 {
			return nil
		}
		return tx.Update(Models.TaskPath(taskID), fields)
	})
	if err != nil {
		return Models.Task{}, storeError(err, "task")
	}
	return updated, nil
}

func attachmentGate(task Models.Task, actor Models.AppUser) error {
	if task.AssigneeID != actor.UID {
		return fail("not_assignee", ErrForbidden)
	}
	if !task.AttachmentsMutableBy(actor.UID) {
		return fail("attachments_locked", ErrAttachmentsLocked, string(task.Status))
	}
	return nil
}

// AddAttachment appends att to the task inside one transaction, so concurrent
// appends never overwrite each other and the status gate cannot go stale.
func (s *Service) AddAttachment(ctx context.Context, actor Models.AppUser, taskID string, att Models.Attachment) (Models.Task, error) {
	var updated Models.Task
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx Store.Tx) error {
		task, err := s.getTask(tx, taskID)
		if err != nil {
			return err
		}
		if err := attachmentGate(task, actor); err != nil {
			return err
		}
		task.Attachments = append(task.Attachments, att)
		updated = task
		return tx.Update(Models.TaskPath(taskID), map[string]any{
			"attachments": Mappers.TaskFields(task)["attachments"],
		})
	})
	if err != nil {
		return Models.Task{}, storeError(err, "task")
	}
	return updated, nil
}

// RemoveAttachment drops the attachment with the given url.
func (s *Service) RemoveAttachment(ctx context.Context, actor Models.AppUser, taskID, url string) (Models.Task, error) {
	var updated Models.Task
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx Store.Tx) error {
		task, err := s.getTask(tx, taskID)
		if err != nil {
			return err
		}
		if err := attachmentGate(task, actor); err != nil {
			return err
		}
		kept := make([]Models.Attachment, 0, len(task.Attachments))
		for _, a := range task.Attachments {
			if a.URL != url {
				kept = append(kept, a)
			}
		}
		if len(kept) == len(task.Attachments) {
			return fail("attachment_missing", ErrNotFound)
		}
		task.Attachments = kept
		updated = task
		return tx.Update(Models.TaskPath(taskID), map[string]any{
			"attachments": Mappers.TaskFields(task)["attachments"],
		})
	})
	if err != nil {
		return Models.Task{}, storeError(err, "task")
	}
	return updated, nil
}

// Upload is a file handed to an upload command.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
	Progress    Blob.ProgressFunc
}

// storeFile uploads a file under objectPath with the upload timeout and, for
// images, a thumbnail next to it.
func (s *Service) storeFile(ctx context.Context, objectPath string, up Upload) (Models.Attachment, error) {
	if s.blobs == nil {
		return Models.Attachment{}, fail("no_file_storage", ErrStorageUnavailable)
	}
	if up.Size > MaxUploadBytes {
		return Models.Attachment{}, fail("file_too_large", ErrInvalidInput, Blob.SafeName(up.Name), "50MB")
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body := up.Body
	var raw []byte
	if Blob.IsImage(contentType) {
		data, err := io.ReadAll(io.LimitReader(up.Body, MaxUploadBytes+1))
		if err != nil {
			return Models.Attachment{}, fail("upload_failed", err, Blob.SafeName(up.Name))
		}
		if len(data) > MaxUploadBytes {
			return Models.Attachment{}, fail("file_too_large", ErrInvalidInput, Blob.SafeName(up.Name), "50MB")
		}
		raw = data
		body = bytes.NewReader(data)
	}

	obj, err := Blob.UploadWithTimeout(ctx, s.blobs, s.uploadTimeout, objectPath, body, contentType, up.Progress)
	if errors.Is(err, Blob.ErrUploadTimeout) {
		return Models.Attachment{}, fail("upload_timeout", fmt.Errorf("%w: %w", ErrUploadTimeout, err))
	}
	if err != nil {
		return Models.Attachment{}, fail("upload_failed", err, Blob.SafeName(up.Name))
	}
	url, err := s.blobs.URL(ctx, objectPath)
	if err != nil {
		return Models.Attachment{}, fail("upload_failed", err, Blob.SafeName(up.Name))
	}

	if raw != nil {
		if thumb, err := Blob.Thumbnail(bytes.NewReader(raw)); err != nil {
			log.Printf("Thumbnail for %s skipped: %v", objectPath, err)
		} else if _, err := s.blobs.Upload(ctx, Blob.ThumbnailPath(objectPath), bytes.NewReader(thumb), "image/jpeg", nil); err != nil {
			log.Printf("Thumbnail upload for %s failed: %v", objectPath, err)
		}
	}

	return Models.Attachment{
		URL:      url,
		Name:     Blob.SafeName(up.Name),
		Size:     obj.Size,
		MimeType: contentType,
	}, nil
}

// UploadTaskFile stores a file for a task and attaches it. The gate is checked
// before the transfer and again when attaching.
func (s *Service) UploadTaskFile(ctx context.Context, actor Models.AppUser, taskID string, up Upload) (Models.Task, error) {
	doc, err := s.store.Get(ctx, Models.TaskPath(taskID))
	if err != nil {
		return Models.Task{}, storeError(err, "task")
	}
	if err := attachmentGate(Mappers.ToTask(doc), actor); err != nil {
		return Models.Task{}, err
	}

	objectPath := Blob.TaskFilePath(taskID, up.Name, s.now())
	att, err := s.storeFile(ctx, objectPath, up)
	if err != nil {
		return Models.Task{}, err
	}
	task, err := s.AddAttachment(ctx, actor, taskID, att)
	if err != nil {
		if derr := s.blobs.Delete(context.Background(), objectPath); derr != nil {
			log.Printf("Orphaned upload %s: %v", objectPath, derr)
		}
		return Models.Task{}, err
	}
	return task, nil
}

// SubmitTask moves the assignee's task to submitted and notifies its creator.
func (s *Service) SubmitTask(ctx context.Context, actor Models.AppUser, taskID, note string) (Models.Task, error) {
	var updated Models.Task
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx Store.Tx) error {
		task, err := s.getTask(tx, taskID)
		if err != nil {
			return err
		}
		if task.AssigneeID != actor.UID {
			return fail("not_assignee", ErrForbidden)
		}
		if err := transitionError(task.Status, Models.TaskSubmitted); err != nil {
			return err
		}
		now := s.now()
		task.Status = Models.TaskSubmitted
		task.CompletedAt = &now
		task.SubmissionNote = nil
		if n := strings.TrimSpace(note); n != "" {
			task.SubmissionNote = &n
		}
		updated = task
		if err := tx.Update(Models.TaskPath(taskID), map[string]any{
			"status":         string(task.Status),
			"completedAt":    now,
			"submissionNote": Mappers.TaskFields(task)["submissionNote"],
		}); err != nil {
			return err
		}
		return s.notificationWrite(tx, task.CreatedBy, Models.NotificationTaskCompleted, task, actor)
	})
	if err != nil {
		return Models.Task{}, storeError(err, "task")
	}
	return updated, nil
}

// ApproveTask closes a submitted task for good.
func (s *Service) ApproveTask(ctx context.Context, actor Models.AppUser, taskID string) (Models.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return Models.Task{}, err
	}
	var updated Models.Task
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx Store.Tx) error {
		task, err := s.getTask(tx, taskID)
		if err != nil {
			return err
		}
		if err := transitionError(task.Status, Models.TaskApproved); err != nil {
			return err
		}
		now := s.now()
		task.Status = Models.TaskApproved
		task.ApprovedAt = &now
		updated = task
		return tx.Update(Models.TaskPath(taskID), map[string]any{
			"status":     string(task.Status),
			"approvedAt": now,
		})
	})
	if err != nil {
		return Models.Task{}, storeError(err, "task")
	}
	return updated, nil
}

// RequestRevision sends a submitted task back to its assignee.
func (s *Service) RequestRevision(ctx context.Context, actor Models.AppUser, taskID string) (Models.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return Models.Task{}, err
	}
	var updated Models.Task
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx Store.Tx) error {
		task, err := s.getTask(tx, taskID)
		if err != nil {
			return err
		}
		if err := transitionError(task.Status, Models.TaskRevision); err != nil {
			return err
		}
		task.Status = Models.TaskRevision
		task.SubmissionNote = nil
		updated = task
		if err := tx.Update(Models.TaskPath(taskID), map[string]any{
			"status":         string(task.Status),
			"submissionNote": nil,
		}); err != nil {
			return err
		}
		return s.notificationWrite(tx, task.AssigneeID, Models.NotificationTaskRevision, task, actor)
	})
	if err != nil {
		return Models.Task{}, storeError(err, "task")
	}
	return updated, nil
}
