package Slack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

var ErrUnknownCommand = errors.New("unknown command")

const helpText = "*Workdesk commands*\n" +
	"`!today` - who has clocked in today\n" +
	"`!missing` - who has not clocked in yet\n" +
	"`!week` - this week's hours per person\n" +
	"`!tasks` - task board by status\n" +
	"`!help` - this message"

// Commands answers the "!" commands typed into the channel.
type Commands struct {
	Board  Board
	Target time.Duration
	Now    func() time.Time
}

func (c Commands) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Commands) Handle(ctx context.Context, text string) (string, error) {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", ErrUnknownCommand
	}
	now := c.now()

	switch strings.ToLower(parts[0]) {
	case "!today":
		users, err := c.Board.Users()
		if err != nil {
			return "", err
		}
		entries, err := c.Board.WorkLogs()
		if err != nil {
			return "", err
		}
		return FormatToday(users, entries, now), nil
	case "!missing":
		missing, err := MissingClockIns(ctx, c.Board, now)
		if err != nil {
			return "", err
		}
		return FormatReminder(missing, now), nil
	case "!week":
		users, err := c.Board.Users()
		if err != nil {
			return "", err
		}
		entries, err := c.Board.WorkLogs()
		if err != nil {
			return "", err
		}
		return FormatWeekly(users, entries, now, c.Target, now), nil
	case "!tasks":
		tasks, err := c.Board.Tasks()
		if err != nil {
			return "", err
		}
		return FormatTasks(tasks), nil
	case "!help":
		return helpText, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCommand, parts[0])
}

// Listen answers commands posted to the client's channel over socket mode
// until ctx is cancelled. It needs an app-level token.
func (c *Client) Listen(ctx context.Context, commands Commands) error {
	sc, ok := c.api.(*slack.Client)
	if !ok {
		return errors.New("socket mode needs a slack-go client")
	}
	socket := socketmode.New(sc)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case envelope, ok := <-socket.Events:
				if !ok {
					return
				}
				if envelope.Type != socketmode.EventTypeEventsAPI {
					continue
				}
				event, ok := envelope.Data.(slackevents.EventsAPIEvent)
				if !ok {
					log.Printf("Unexpected event type: %s", envelope.Type)
					continue
				}
				if envelope.Request != nil {
					socket.Ack(*envelope.Request)
				}
				c.handleEvent(ctx, event, commands)
			}
		}
	}()

	log.Println("Starting Slack command listener...")
	return socket.RunContext(ctx)
}

func (c *Client) handleEvent(ctx context.Context, event slackevents.EventsAPIEvent, commands Commands) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok || msg.BotID != "" || msg.Channel != c.channel || !strings.HasPrefix(msg.Text, "!") {
		return
	}
	reply, err := commands.Handle(ctx, msg.Text)
	if errors.Is(err, ErrUnknownCommand) {
		reply, err = "Unknown command. Try `!help`.", nil
	}
	if err != nil {
		log.Printf("Slack command %q failed: %v", msg.Text, err)
		reply = "Could not answer that right now."
	}
	if err := c.Post(ctx, reply); err != nil {
		log.Printf("Error sending response: %v", err)
	}
}
