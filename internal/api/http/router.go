package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/queue-engine/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Departments *handlers.DepartmentsHandler
	Tickets     *handlers.TicketsHandler
	Admin       *handlers.AdminHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	departments := app.Group("/departments")
	departments.Get("/:id", cfg.Departments.GetDepartment)
	departments.Post("/:id/tickets", cfg.Departments.BookTicket)
	departments.Post("/:id/call-next", cfg.Departments.CallNext)
	departments.Get("/:id/queue", cfg.Departments.GetQueue)

	tickets := app.Group("/tickets")
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/status", cfg.Tickets.GetStatus)
	tickets.Get("/:id/notifications", cfg.Tickets.GetNotifications)
	tickets.Post("/:id/complete", cfg.Tickets.Complete)
	tickets.Post("/:id/cancel", cfg.Tickets.Cancel)
	tickets.Post("/:id/skip", cfg.Tickets.Skip)
	tickets.Post("/:id/escalate", cfg.Tickets.Escalate)

	admin := app.Group("/admin")
	admin.Get("/notifications/failed", cfg.Admin.FailedNotifications)
	admin.Get("/metrics", cfg.Admin.Metrics)
}
