package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/examflow/examflow-api/internal/utils"
)

// RequireRole ensures the resolved actor holds one of the allowed roles.
// Must run after LoadActor.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromCtx(c)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if _, ok := allowed[strings.ToLower(actor.Role)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
