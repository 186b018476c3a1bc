// Package Commands is the server-authoritative write path. Every status change
// is checked against the transition tables inside a store transaction before
// it is written, and every failure comes back as a CommandError.
package Commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"Workdesk/Blob"
	"Workdesk/Mappers"
	"Workdesk/Models"
	"Workdesk/Store"
)

// RearmFunc is told which notification ids of a user were deleted.
type RearmFunc func(uid string, ids ...string)

type Options struct {
	Blobs         Blob.BlobStore
	Validator     *validator.Validate
	UploadTimeout time.Duration
	Now           func() time.Time
	Rearm         RearmFunc
}

type Service struct {
	store         Store.DocumentStore
	blobs         Blob.BlobStore
	validate      *validator.Validate
	uploadTimeout time.Duration
	now           func() time.Time
	rearm         RearmFunc
}

func NewService(store Store.DocumentStore, opts Options) *Service {
	s := &Service{
		store:         store,
		blobs:         opts.Blobs,
		validate:      opts.Validator,
		uploadTimeout: opts.UploadTimeout,
		now:           opts.Now,
		rearm:         opts.Rearm,
	}
	if s.validate == nil {
		s.validate = NewValidator()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetRearm installs the hook after construction, for wiring cycles.
func (s *Service) SetRearm(fn RearmFunc) {
	s.rearm = fn
}

func (s *Service) validateInput(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &CommandError{Key: "invalid_input", Err: ErrInvalidInput, validation: verrs}
	}
	return &CommandError{Key: "invalid_input", Err: fmt.Errorf("%w: %v", ErrInvalidInput, err)}
}

func requireAdmin(actor Models.AppUser) error {
	if !actor.IsAdmin() {
		return fail("admin_only", ErrForbidden)
	}
	return nil
}

func (s *Service) lookupUser(ctx context.Context, uid string) (Models.AppUser, error) {
	doc, err := s.store.Get(ctx, Models.UserPath(uid))
	if errors.Is(err, Store.ErrNotFound) {
		return Models.AppUser{}, fail("unknown_user", ErrInvalidInput, uid)
	}
	if err != nil {
		return Models.AppUser{}, storeError(err, "user")
	}
	return Mappers.ToUser(doc), nil
}

// notificationWrite is a notification document to create alongside a write.
func (s *Service) notificationWrite(tx Store.Tx, recipient string, typ Models.NotificationType, task Models.Task, actor Models.AppUser) error {
	if recipient == "" {
		return nil
	}
	var name *string
	if actor.DisplayName != "" {
		n := actor.DisplayName
		name = &n
	}
	fields := Mappers.NotificationFields(Models.Notification{
		Type:             typ,
		TaskID:           task.ID,
		Title:            task.Title,
		CreatedAt:        s.now(),
		ActorDisplayName: name,
	})
	return tx.Create(Models.NotificationPath(recipient, newID()), fields)
}

func newID() string {
	return uuid.NewString()
}
