package Notifications

import (
	"context"
	"errors"
	"fmt"
	"log"

	"firebase.google.com/go/v4/messaging"

	"Workdesk/Models"
)

// Sink delivers one newly dispatched notification somewhere outside the store.
type Sink interface {
	Deliver(ctx context.Context, n Models.Notification) error
}

// Describe renders the one-line text shown for a notification.
func Describe(n Models.Notification) string {
	actor := "Someone"
	if n.ActorDisplayName != nil && *n.ActorDisplayName != "" {
		actor = *n.ActorDisplayName
	}
	switch n.Type {
	case Models.NotificationTaskCompleted:
		return fmt.Sprintf("%s submitted \"%s\" for review", actor, n.Title)
	case Models.NotificationTaskRevision:
		return fmt.Sprintf("%s requested a revision of \"%s\"", actor, n.Title)
	}
	return fmt.Sprintf("%s assigned you \"%s\"", actor, n.Title)
}

// PushClient is the slice of the FCM client PushSink uses.
type PushClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// TokenLookup returns the registered device tokens of a user.
type TokenLookup func(ctx context.Context, uid string) ([]string, error)

type PushSink struct {
	client PushClient
	tokens TokenLookup
}

func NewPushSink(client PushClient, tokens TokenLookup) *PushSink {
	return &PushSink{client: client, tokens: tokens}
}

func (p *PushSink) Deliver(ctx context.Context, n Models.Notification) error {
	tokens, err := p.tokens(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("push tokens for %s: %w", n.RecipientID, err)
	}
	if len(tokens) == 0 {
		return nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Data: map[string]string{
			"notification_id": n.ID,
			"type":            string(n.Type),
			"task_id":         n.TaskID,
		},
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  Describe(n),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
	}

	resp, err := p.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending push for %s: %w", n.ID, err)
	}
	if resp.FailureCount > 0 {
		log.Printf("Push for notification %s: %d of %d tokens failed", n.ID, resp.FailureCount, len(tokens))
	}
	return nil
}

// Poster posts plain text to a chat channel.
type Poster interface {
	Post(ctx context.Context, text string) error
}

// SlackSink mirrors notifications of the given types into a channel.
type SlackSink struct {
	poster Poster
	types  map[Models.NotificationType]bool
}

// NewSlackSink mirrors every type when types is empty.
func NewSlackSink(poster Poster, types ...Models.NotificationType) *SlackSink {
	set := make(map[Models.NotificationType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return &SlackSink{poster: poster, types: set}
}

func (s *SlackSink) Deliver(ctx context.Context, n Models.Notification) error {
	if len(s.types) > 0 && !s.types[n.Type] {
		return nil
	}
	return s.poster.Post(ctx, Describe(n))
}

// MultiSink delivers to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, n Models.Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Deliver(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
