package Commands

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"Workdesk/Models"
	"Workdesk/Store"
)

var (
	ErrForbidden               = errors.New("forbidden")
	ErrNotFound                = Store.ErrNotFound
	ErrIllegalTransition       = Models.ErrIllegalTransition
	ErrInvalidInput            = errors.New("invalid input")
	ErrTardinessReasonRequired = errors.New("tardiness reason required")
	ErrAlreadyClockedIn        = errors.New("already clocked in today")
	ErrNotApproved             = errors.New("work log not approved")
	ErrAlreadyClockedOut       = errors.New("already clocked out")
	ErrAttachmentsLocked       = errors.New("attachments locked")
	ErrEmptyMessage            = errors.New("empty message")
	ErrUploadTimeout           = errors.New("upload timed out")
	ErrStorageUnavailable      = errors.New("file storage unavailable")
)

// CommandError is a failed command as the initiating user should see it: a
// message key with parameters, rendered per locale by a Translator.
type CommandError struct {
	Key    string
	Params []string
	Err    error

	validation validator.ValidationErrors
}

func (e *CommandError) Error() string {
	text := render(defaultMessages[e.Key].en, e.Params)
	if text == "" {
		text = e.Key
	}
	if len(e.validation) > 0 {
		parts := make([]string, 0, len(e.validation))
		for _, fe := range e.validation {
			parts = append(parts, fe.Error())
		}
		text += ": " + strings.Join(parts, "; ")
	}
	return text
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func fail(key string, err error, params ...string) *CommandError {
	return &CommandError{Key: key, Params: params, Err: err}
}

func render(template string, params []string) string {
	for i, p := range params {
		template = strings.ReplaceAll(template, "{"+string(rune('0'+i))+"}", p)
	}
	return template
}

// storeError turns backend failures into command errors, keeping the cause.
func storeError(err error, what string) error {
	var ce *CommandError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return err
	case errors.Is(err, Store.ErrNotFound):
		return &CommandError{Key: "not_found", Params: []string{what}, Err: err}
	}
	return &CommandError{Key: "write_failed", Params: []string{what}, Err: err}
}
