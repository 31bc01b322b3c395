package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/queue-engine/internal/api/dto"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/service"
)

// AdminHandler serves operator views.
type AdminHandler struct {
	engine  *service.QueueEngine
	metrics *observability.Metrics
}

// NewAdminHandler constructs handler.
func NewAdminHandler(engine *service.QueueEngine, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{engine: engine, metrics: metrics}
}

// FailedNotifications GET /admin/notifications/failed.
func (h *AdminHandler) FailedNotifications(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	events, err := h.engine.FailedNotifications(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewNotificationResponses(events)})
}

// Metrics GET /admin/metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
