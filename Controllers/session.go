package Controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"Workdesk/AbstractFunctions"
	"Workdesk/Identity"
	"Workdesk/Views"
	"Workdesk/middleware"
)

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs in against the local user store and sets the session cookie.
func (h *Handlers) Login(c *fiber.Ctx) error {
	if h.Sessions == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Sign in with Firebase",
		})
	}
	var input loginInput
	if err := c.BodyParser(&input); err != nil {
		return h.badRequest(c, err)
	}

	user, err := Identity.Login(c.UserContext(), h.Store, input.Email, input.Password)
	if err != nil {
		return h.fail(c, err)
	}
	token, expires, err := h.Sessions.Issue(user.UID)
	if err != nil {
		return h.fail(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": expires,
		"user":       user,
	})
}

func (h *Handlers) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{"message": "success"})
}

// Me returns the signed-in user with today's work log and this week's total.
func (h *Handlers) Me(c *fiber.Ctx) error {
	user := actor(c)
	now := h.now()
	resp := fiber.Map{"user": user}

	entries, err := h.Hub.WorkLogs()
	if err != nil {
		return h.fail(c, err)
	}
	resp["today"] = Views.TodayEntry(entries, user.UID, now)
	week := Views.Weekly(entries, user.UID, now, h.target())
	resp["week"] = fiber.Map{
		"total":    week.TotalLabel(),
		"progress": week.ProgressCapped(),
		"tardy":    week.TardyCount,
	}
	resp["date_key"] = AbstractFunctions.DateKey(now)
	return c.JSON(resp)
}

type pushTokenInput struct {
	Token string `json:"token"`
}

func (h *Handlers) RegisterPushToken(c *fiber.Ctx) error {
	var input pushTokenInput
	if err := c.BodyParser(&input); err != nil {
		return h.badRequest(c, err)
	}
	if err := h.Commands.RegisterPushToken(c.UserContext(), actor(c), input.Token); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Users lists every profile, for assignee pickers and admin screens.
func (h *Handlers) Users(c *fiber.Ctx) error {
	users, err := h.Hub.Users()
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(users)
}
