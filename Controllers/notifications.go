package Controllers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"Workdesk/Models"
)

const streamPing = 25 * time.Second

func (h *Handlers) GetNotifications(c *fiber.Ctx) error {
	list, err := h.Hub.Notifications(c.UserContext(), actor(c).UID)
	if err != nil {
		return h.fail(c, err)
	}
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	return c.JSON(fiber.Map{"notifications": list, "unread": unread})
}

func (h *Handlers) MarkNotificationRead(c *fiber.Ctx) error {
	if err := h.Commands.MarkNotificationRead(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) DeleteNotification(c *fiber.Ctx) error {
	if err := h.Commands.DeleteNotification(c.UserContext(), actor(c), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) DeleteAllNotifications(c *fiber.Ctx) error {
	n, err := h.Commands.DeleteAllNotifications(c.UserContext(), actor(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"deleted": n})
}

// WipeNotifications clears every user's notifications.
func (h *Handlers) WipeNotifications(c *fiber.Ctx) error {
	n, err := h.Commands.WipeAllNotifications(c.UserContext(), actor(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"deleted": n})
}

// StreamNotifications is a server-sent event feed of the caller's
// notifications: every unseen one on connect, then each new one once.
func (h *Handlers) StreamNotifications(c *fiber.Ctx) error {
	uid := actor(c).UID
	stream, err := h.Hub.Stream(uid)
	if err != nil {
		return h.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer stream.Close()
		if err := pump(w, stream, streamPing); err != nil {
			log.Printf("Notification stream of %s ended: %v", uid, err)
		}
	}))
	return nil
}

type eventSource interface {
	Events() <-chan Models.Notification
	Done() <-chan struct{}
	Err() error
}

// pump writes src to w as SSE until src ends or the client goes away, which
// shows up as a failed flush.
func pump(w *bufio.Writer, src eventSource, ping time.Duration) error {
	ticker := time.NewTicker(ping)
	defer ticker.Stop()

	fmt.Fprint(w, "retry: 5000\n\n")
	if err := w.Flush(); err != nil {
		return err
	}
	for {
		select {
		case n := <-src.Events():
			data, err := json.Marshal(n)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, data)
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
		case <-src.Done():
			if err := src.Err(); err != nil {
				fmt.Fprint(w, "event: error\ndata: {\"code\":\"view_unavailable\"}\n\n")
				w.Flush()
				return err
			}
			return w.Flush()
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}
