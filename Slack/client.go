package Slack

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// api is the part of the slack-go client used here.
type api interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	DeleteMessageContext(ctx context.Context, channel, messageTimestamp string) (string, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	AddPinContext(ctx context.Context, channel string, item slack.ItemRef) error
	RemovePinContext(ctx context.Context, channel string, item slack.ItemRef) error
	ListPinsContext(ctx context.Context, channel string) ([]slack.Item, *slack.Paging, error)
}

// Client posts to one channel.
// Required bot token scopes: chat:write, pins:write, pins:read, channels:history.
type Client struct {
	api     api
	channel string
}

func NewClient(botToken, appToken, channel string) *Client {
	opts := []slack.Option{slack.OptionDebug(false)}
	if appToken != "" {
		opts = append(opts, slack.OptionAppLevelToken(appToken))
	}
	return &Client{api: slack.New(botToken, opts...), channel: channel}
}

func (c *Client) Channel() string {
	return c.channel
}

func (c *Client) Post(ctx context.Context, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, c.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post to %s: %w", c.channel, err)
	}
	return nil
}

// SendAndPin replaces the bot's previous messages in the channel with text and
// pins it. Nothing is sent when the latest bot message already says the same,
// ignoring "Last updated" lines.
func (c *Client) SendAndPin(ctx context.Context, text string) error {
	history, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: c.channel,
		Limit:     100,
	})
	if err != nil {
		log.Printf("Could not read %s history: %v", c.channel, err)
	} else {
		for _, msg := range history.Messages {
			if msg.BotID == "" {
				continue
			}
			if sameDigest(msg.Text, text) {
				return nil
			}
			break
		}
		for _, msg := range history.Messages {
			if msg.BotID == "" {
				continue
			}
			if _, _, err := c.api.DeleteMessageContext(ctx, c.channel, msg.Timestamp); err != nil {
				log.Printf("Could not delete message %s: %v", msg.Timestamp, err)
			}
		}
	}

	pins, _, err := c.api.ListPinsContext(ctx, c.channel)
	if err != nil {
		log.Printf("Could not list pins in %s: %v", c.channel, err)
	}
	for _, item := range pins {
		if item.Message == nil {
			continue
		}
		if err := c.api.RemovePinContext(ctx, c.channel, slack.NewRefToMessage(c.channel, item.Message.Timestamp)); err != nil {
			log.Printf("Could not unpin message %s: %v", item.Message.Timestamp, err)
		}
	}

	_, ts, err := c.api.PostMessageContext(ctx, c.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post to %s: %w", c.channel, err)
	}
	if err := c.api.AddPinContext(ctx, c.channel, slack.NewRefToMessage(c.channel, ts)); err != nil {
		log.Printf("Message sent but pinning failed: %v", err)
	}
	return nil
}

const lastUpdatedPrefix = "_Last updated:"

func lastUpdated(at time.Time) string {
	return lastUpdatedPrefix + " " + at.Format("2006-01-02 15:04") + "_"
}

func sameDigest(a, b string) bool {
	return strings.TrimSpace(stripLastUpdated(a)) == strings.TrimSpace(stripLastUpdated(b))
}

func stripLastUpdated(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), lastUpdatedPrefix) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
