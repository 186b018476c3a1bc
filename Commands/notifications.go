package Commands

import (
	"context"
	"log"
	"strings"

	"Workdesk/Models"
)

func (s *Service) rearmIDs(uid string, ids ...string) {
	if s.rearm != nil && len(ids) > 0 {
		s.rearm(uid, ids...)
	}
}

func (s *Service) MarkNotificationRead(ctx context.Context, actor Models.AppUser, id string) error {
	err := s.store.Update(ctx, Models.NotificationPath(actor.UID, id), map[string]any{"read": true})
	return storeError(err, "notification")
}

func (s *Service) DeleteNotification(ctx context.Context, actor Models.AppUser, id string) error {
	if err := s.store.Delete(ctx, Models.NotificationPath(actor.UID, id)); err != nil {
		return storeError(err, "notification")
	}
	s.rearmIDs(actor.UID, id)
	return nil
}

func (s *Service) deleteAllFor(ctx context.Context, uid string) (int, error) {
	docs, err := s.store.All(ctx, Models.NotificationsPath(uid))
	if err != nil {
		return 0, storeError(err, "notifications")
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		if err := s.store.Delete(ctx, doc.Path); err != nil {
			s.rearmIDs(uid, ids...)
			return len(ids), storeError(err, "notifications")
		}
		ids = append(ids, doc.ID)
	}
	s.rearmIDs(uid, ids...)
	return len(ids), nil
}

// DeleteAllNotifications clears the actor's own notifications.
func (s *Service) DeleteAllNotifications(ctx context.Context, actor Models.AppUser) (int, error) {
	return s.deleteAllFor(ctx, actor.UID)
}

// WipeAllNotifications clears every user's notifications.
func (s *Service) WipeAllNotifications(ctx context.Context, actor Models.AppUser) (int, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	users, err := s.store.All(ctx, Models.UsersCollection)
	if err != nil {
		return 0, storeError(err, "users")
	}
	total := 0
	for _, u := range users {
		n, err := s.deleteAllFor(ctx, u.ID)
		total += n
		if err != nil {
			return total, err
		}
	}
	log.Printf("%s wiped %d notification(s)", actor.UID, total)
	return total, nil
}

// RegisterPushToken adds a device token to the actor's profile.
func (s *Service) RegisterPushToken(ctx context.Context, actor Models.AppUser, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fail("invalid_input", ErrInvalidInput)
	}
	err := s.store.ArrayUnion(ctx, Models.UserPath(actor.UID), "pushTokens", token)
	return storeError(err, "profile")
}
