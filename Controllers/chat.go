package Controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"Workdesk/AbstractFunctions"
	"Workdesk/Views"
)

// viewerZone is ?tz= when it names a known zone, else the reference zone.
func viewerZone(c *fiber.Ctx) *time.Location {
	if name := c.Query("tz"); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return AbstractFunctions.ReferenceZone()
}

// GetChat returns the thread's messages grouped by date in the viewer's zone.
func (h *Handlers) GetChat(c *fiber.Ctx) error {
	messages, err := h.Hub.Chat(c.UserContext(), c.Params("projectId"), c.Params("subMenuId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(Views.GroupChatByDate(messages, viewerZone(c), h.now()))
}

type messageInput struct {
	Text string `json:"text"`
}

func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	var input messageInput
	if err := c.BodyParser(&input); err != nil {
		return h.badRequest(c, err)
	}
	id, err := h.Commands.SendMessage(c.UserContext(), actor(c), c.Params("projectId"), c.Params("subMenuId"), input.Text, nil)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// SendFile uploads the multipart "file" and posts it with the optional
// "text" form value.
func (h *Handlers) SendFile(c *fiber.Ctx) error {
	up, closer, err := upload(c)
	if err != nil {
		return h.badRequest(c, err)
	}
	defer closer.Close()

	user := actor(c)
	projectID, subMenuID := c.Params("projectId"), c.Params("subMenuId")
	att, err := h.Commands.UploadChatFile(c.UserContext(), user, projectID, subMenuID, up)
	if err != nil {
		return h.fail(c, err)
	}
	id, err := h.Commands.SendMessage(c.UserContext(), user, projectID, subMenuID, c.FormValue("text"), &att)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "file": att})
}
