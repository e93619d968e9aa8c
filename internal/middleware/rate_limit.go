package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/examflow/examflow-api/internal/utils"
)

// RateLimit creates a per-user rate limiter keyed by the authenticated user,
// falling back to the client IP for anonymous traffic. The identifier scopes
// the bucket so paper uploads and broadcasts do not share a quota.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			userID := fmt.Sprintf("%v", c.Locals("user_id"))
			if userID == "" || userID == "0" {
				userID = c.IP()
			}
			return fmt.Sprintf("%s:%s", identifier, userID)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "Too many requests, slow down")
		},
	})
}
