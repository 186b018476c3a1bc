// Package Controllers is the HTTP surface. Reads are served from the Sync hub's
// live models, writes go through the Commands service.
package Controllers

import (
	"errors"
	"io"
	"log"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"

	"Workdesk/AbstractFunctions"
	"Workdesk/Commands"
	"Workdesk/Identity"
	"Workdesk/Models"
	"Workdesk/Store"
	"Workdesk/Sync"
	"Workdesk/Views"
	"Workdesk/middleware"
)

type Handlers struct {
	Hub        *Sync.Hub
	Commands   *Commands.Service
	Translator *Commands.Translator
	Store      Store.DocumentStore
	// Sessions is nil when sign-in is delegated to Firebase.
	Sessions     *Identity.Sessions
	WeeklyTarget time.Duration
	RequestLog   string
	Now          func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *Handlers) target() time.Duration {
	if h.WeeklyTarget <= 0 {
		return Views.DefaultWeeklyTarget
	}
	return h.WeeklyTarget
}

func (h *Handlers) locale(c *fiber.Ctx) string {
	return h.Translator.Locale(c.Get(fiber.HeaderAcceptLanguage))
}

// actor is the signed-in user. Routes without auth never call it.
func actor(c *fiber.Ctx) Models.AppUser {
	user, _ := middleware.CurrentUser(c)
	return user
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, Commands.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, Commands.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, Commands.ErrIllegalTransition),
		errors.Is(err, Commands.ErrAlreadyClockedIn),
		errors.Is(err, Commands.ErrNotApproved),
		errors.Is(err, Commands.ErrAlreadyClockedOut),
		errors.Is(err, Commands.ErrAttachmentsLocked):
		return fiber.StatusConflict
	case errors.Is(err, Commands.ErrInvalidInput),
		errors.Is(err, Commands.ErrEmptyMessage),
		errors.Is(err, Commands.ErrTardinessReasonRequired):
		return fiber.StatusBadRequest
	case errors.Is(err, Identity.ErrBadCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, Commands.ErrUploadTimeout):
		return fiber.StatusRequestTimeout
	case errors.Is(err, Commands.ErrStorageUnavailable), errors.Is(err, Sync.ErrViewUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// fail writes err as {"message", "code"} in the caller's language.
func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	var ce *Commands.CommandError
	if !errors.As(err, &ce) {
		switch {
		case errors.Is(err, Sync.ErrViewUnavailable):
			ce = &Commands.CommandError{Key: "view_unavailable", Err: err}
		case errors.Is(err, Identity.ErrBadCredentials):
			ce = &Commands.CommandError{Key: "bad_credentials", Err: err}
		case errors.Is(err, Store.ErrNotFound):
			ce = &Commands.CommandError{Key: "not_found", Params: []string{"data"}, Err: err}
		default:
			ce = &Commands.CommandError{Key: "write_failed", Params: []string{"data"}, Err: err}
		}
	}

	status := statusOf(ce)
	if status >= fiber.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"message": h.Translator.Message(ce, h.locale(c)),
		"code":    ce.Key,
	})
}

func (h *Handlers) badRequest(c *fiber.Ctx, err error) error {
	return h.fail(c, &Commands.CommandError{Key: "bad_request", Err: errors.Join(Commands.ErrInvalidInput, err)})
}

// dateParam reads a YYYY-MM-DD query value, defaulting to def.
func (h *Handlers) dateParam(c *fiber.Ctx, name string, def time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	t, err := AbstractFunctions.ParseDateKey(raw)
	if err != nil {
		return time.Time{}, &Commands.CommandError{Key: "invalid_date", Params: []string{raw}, Err: Commands.ErrInvalidInput}
	}
	return t, nil
}

// upload reads the multipart "file" field.
func upload(c *fiber.Ctx) (Commands.Upload, io.Closer, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return Commands.Upload{}, nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return Commands.Upload{}, nil, err
	}
	return Commands.Upload{
		Name:        fh.Filename,
		ContentType: contentType(fh),
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get(fiber.HeaderContentType); ct != "" {
		return ct
	}
	return fiber.MIMEOctetStream
}

func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
