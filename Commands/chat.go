package Commands

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"Workdesk/Blob"
	"Workdesk/Mappers"
	"Workdesk/Models"
	"Workdesk/Store"
)

const MaxMessageLength = 4000

// SendMessage posts to a channel. The message is ordered by the store's
// commit time, not the caller's clock.
func (s *Service) SendMessage(ctx context.Context, actor Models.AppUser, projectID, subMenuID, text string, file *Models.Attachment) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" && file == nil {
		return "", fail("empty_message", ErrEmptyMessage)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return "", fail("message_too_long", ErrInvalidInput, strconv.Itoa(MaxMessageLength))
	}
	if projectID == "" || subMenuID == "" {
		return "", fail("not_found", ErrNotFound, "channel")
	}

	fields := Mappers.ChatMessageFields(Models.ChatMessage{
		SenderID:          actor.UID,
		SenderDisplayName: actor.DisplayName,
		SenderJobTitle:    actor.JobTitle,
		Text:              text,
		File:              file,
	})
	fields["createdAt"] = Store.ServerTimestamp

	id, err := s.store.Create(ctx, Models.MessagesPath(projectID, subMenuID), fields)
	if err != nil {
		return "", storeError(err, "message")
	}
	return id, nil
}

// UploadChatFile stores a file for a channel; the caller sends it with SendMessage.
func (s *Service) UploadChatFile(ctx context.Context, actor Models.AppUser, projectID, subMenuID string, up Upload) (Models.Attachment, error) {
	if projectID == "" || subMenuID == "" {
		return Models.Attachment{}, fail("not_found", ErrNotFound, "channel")
	}
	return s.storeFile(ctx, Blob.ChatFilePath(projectID, subMenuID, up.Name, s.now()), up)
}
