package Controllers

import (
	"github.com/gofiber/fiber/v2"

	"Workdesk/Commands"
	"Workdesk/Models"
	"Workdesk/Views"
)

// GetTasks is the admin queue: every task not yet approved, newest first.
// ?status= narrows it to the given statuses, approved included.
func (h *Handlers) GetTasks(c *fiber.Ctx) error {
	tasks, err := h.Hub.Tasks()
	if err != nil {
		return h.fail(c, err)
	}

	var statuses []Models.TaskStatus
	for _, raw := range c.Context().QueryArgs().PeekMulti("status") {
		s := Models.TaskStatus(raw)
		if !s.Valid() {
			return h.fail(c, &Commands.CommandError{Key: "invalid_input", Err: Commands.ErrInvalidInput})
		}
		statuses = append(statuses, s)
	}
	if len(statuses) > 0 {
		return c.JSON(Views.TasksByStatus(tasks, statuses...))
	}
	return c.JSON(Views.ActiveTasks(tasks))
}

// MyTasks is the signed-in user's queue.
func (h *Handlers) MyTasks(c *fiber.Ctx) error {
	tasks, err := h.Hub.Tasks()
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(Views.AssigneeQueue(tasks, actor(c).UID))
}

func (h *Handlers) GetTask(c *fiber.Ctx) error {
	tasks, err := h.Hub.Tasks()
	if err != nil {
		return h.fail(c, err)
	}
	user := actor(c)
	for _, t := range tasks {
		if t.ID != c.Params("id") {
			continue
		}
		if !user.IsAdmin() && t.AssigneeID != user.UID {
			break
		}
		return c.JSON(t)
	}
	return h.fail(c, &Commands.CommandError{Key: "not_found", Params: []string{"task"}, Err: Commands.ErrNotFound})
}

type createTasksInput struct {
	Tasks []Commands.NewTask `json:"tasks"`
}

func (h *Handlers) CreateTasks(c *fiber.Ctx) error {
	var input createTasksInput
	if err := c.BodyParser(&input); err != nil {
		return h.badRequest(c, err)
	}
	created, err := h.Commands.CreateTasks(c.UserContext(), actor(c), input.Tasks)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handlers) EditTask(c *fiber.Ctx) error {
	var edit Commands.TaskEdit
	if err := c.BodyParser(&edit); err != nil {
		return h.badRequest(c, err)
	}
	task, err := h.Commands.EditTask(c.UserContext(), actor(c), c.Params("id"), edit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(task)
}

type submitInput struct {
	Note string `json:"note"`
}

func (h *Handlers) SubmitTask(c *fiber.Ctx) error {
	var input submitInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return h.badRequest(c, err)
		}
	}
	task, err := h.Commands.SubmitTask(c.UserContext(), actor(c), c.Params("id"), input.Note)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(task)
}

func (h *Handlers) ApproveTask(c *fiber.Ctx) error {
	task, err := h.Commands.ApproveTask(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(task)
}

func (h *Handlers) RequestRevision(c *fiber.Ctx) error {
	task, err := h.Commands.RequestRevision(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(task)
}

// UploadAttachment takes a multipart "file" and attaches it to the task.
func (h *Handlers) UploadAttachment(c *fiber.Ctx) error {
	up, closer, err := upload(c)
	if err != nil {
		return h.badRequest(c, err)
	}
	defer closer.Close()

	task, err := h.Commands.UploadTaskFile(c.UserContext(), actor(c), c.Params("id"), up)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// RemoveAttachment detaches the file with ?url= from the task.
func (h *Handlers) RemoveAttachment(c *fiber.Ctx) error {
	url := c.Query("url")
	if url == "" {
		return h.fail(c, &Commands.CommandError{Key: "invalid_input", Err: Commands.ErrInvalidInput})
	}
	task, err := h.Commands.RemoveAttachment(c.UserContext(), actor(c), c.Params("id"), url)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(task)
}
