package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/examflow/examflow-api/internal/config"
	"github.com/examflow/examflow-api/internal/handler"
	"github.com/examflow/examflow-api/internal/middleware"
	"github.com/examflow/examflow-api/internal/models"
	"github.com/examflow/examflow-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	PaperHandler        *handler.PaperHandler
	ReviewHandler       *handler.ReviewHandler
	NotificationHandler *handler.NotificationHandler
	AdminUserHandler    *handler.AdminUserHandler
	RosterHandler       *handler.RosterHandler
	StatsHandler        *handler.StatsHandler
	ScheduleHandler     *handler.ScheduleHandler
	AuditHandler        *handler.AuditHandler
	JWTMiddleware       fiber.Handler
	ActorMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application. Every protected
// group runs the JWT check, then the actor loader, then role guards. The
// services re-check roles themselves so a misrouted group fails closed.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	actorMiddleware := deps.ActorMiddleware
	if actorMiddleware == nil {
		actorMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	protected := api.Group("", jwtMiddleware, actorMiddleware)

	if deps.PaperHandler != nil {
		papers := protected.Group("/papers",
			middleware.RequireRole(models.RoleTeacher),
			middleware.RateLimit("papers", 30, time.Minute))
		deps.PaperHandler.Register(papers)
	}

	if deps.ReviewHandler != nil {
		review := protected.Group("/review", middleware.RequireRole(models.RoleHOD))
		deps.ReviewHandler.Register(review)
	}

	if deps.NotificationHandler != nil {
		notifications := protected.Group("/notifications")
		deps.NotificationHandler.Register(notifications)

		broadcast := protected.Group("/broadcasts",
			middleware.RequireRole(models.RoleHOD),
			middleware.RateLimit("broadcasts", 10, time.Minute))
		deps.NotificationHandler.RegisterBroadcast(broadcast)
	}

	if deps.RosterHandler != nil {
		roster := protected.Group("/roster", middleware.RequireRole(models.RoleHOD))
		deps.RosterHandler.Register(roster)
	}

	if deps.ScheduleHandler != nil {
		schedules := protected.Group("/schedules", middleware.RequireRole(models.RoleExamCell))
		deps.ScheduleHandler.Register(schedules)
	}

	admin := protected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	if deps.AdminUserHandler != nil {
		deps.AdminUserHandler.Register(admin)
	}
	if deps.StatsHandler != nil {
		deps.StatsHandler.Register(admin.Group("/stats"))
	}
	if deps.AuditHandler != nil {
		deps.AuditHandler.Register(admin.Group("/audit"))
	}
}
