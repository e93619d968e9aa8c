package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/examflow/examflow-api/internal/repository"
	"github.com/examflow/examflow-api/internal/service"
	"github.com/examflow/examflow-api/internal/utils"
)

const actorLocalsKey = "actor"

// LoadActor resolves the authenticated user's role and department from the
// store and binds a service.Actor to the request. Tokens are only identity;
// a deleted account or missing role assignment fails here, not deeper in.
func LoadActor(users repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(uint)
		if !ok || userID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		ctx := c.UserContext()
		profile, err := users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.SendError(c, fiber.StatusUnauthorized, "account no longer exists")
			}
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load account")
		}

		role, err := users.GetRole(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.SendError(c, fiber.StatusForbidden, "account has no role assigned")
			}
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load account role")
		}

		c.Locals(actorLocalsKey, service.Actor{
			ID:           profile.ID,
			Role:         role,
			DepartmentID: profile.DepartmentID,
		})

		return c.Next()
	}
}

// ActorFromCtx returns the actor bound by LoadActor, if any.
func ActorFromCtx(c *fiber.Ctx) (service.Actor, bool) {
	actor, ok := c.Locals(actorLocalsKey).(service.Actor)
	return actor, ok
}
