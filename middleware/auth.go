package middleware

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"Workdesk/Identity"
	"Workdesk/Models"
)

const (
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "jwt"
	userKey       = "user"
)

// UserLookup resolves a verified uid to the merged user profile.
type UserLookup func(ctx context.Context, uid string) (Models.AppUser, error)

type Auth struct {
	Verifier Identity.Verifier
	Lookup   UserLookup
}

func bearer(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if token := c.Cookies(SessionCookie); token != "" {
		return token
	}
	// EventSource cannot set headers.
	return c.Query("access_token")
}

// Verify authenticates the request and, when role is set, requires it.
// An empty role admits any signed-in user.
func (a *Auth) Verify(role Models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if user, ok := CurrentUser(c); ok {
			return a.authorize(c, user, role)
		}

		token := bearer(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not Logged In.",
			})
		}

		uid, err := a.Verifier.Verify(c.UserContext(), token)
		if err != nil {
			if !errors.Is(err, Identity.ErrInvalidToken) {
				log.Printf("Token verification failed: %v", err)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		}

		user, err := a.Lookup(c.UserContext(), uid)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "User not found",
			})
		}

		c.Locals(userKey, user)
		return a.authorize(c, user, role)
	}
}

func (a *Auth) authorize(c *fiber.Ctx, user Models.AppUser, role Models.Role) error {
	if role != "" && user.Role != role {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Insufficient permissions to access this resource",
		})
	}
	return c.Next()
}

// CurrentUser is the user stored by Verify.
func CurrentUser(c *fiber.Ctx) (Models.AppUser, bool) {
	user, ok := c.Locals(userKey).(Models.AppUser)
	return user, ok
}
