package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/queue-engine/internal/api/dto"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/service"
	apperrors "github.com/spec-kit/queue-engine/pkg/util/errorutil"
)

// TicketsHandler exposes per-ticket reads and transitions.
type TicketsHandler struct {
	engine *service.QueueEngine
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(engine *service.QueueEngine) *TicketsHandler {
	return &TicketsHandler{engine: engine}
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.engine.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetStatus GET /tickets/:id/status.
func (h *TicketsHandler) GetStatus(c *fiber.Ctx) error {
	status, err := h.engine.TicketStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewQueueStatusResponse(status)})
}

// GetNotifications GET /tickets/:id/notifications.
func (h *TicketsHandler) GetNotifications(c *fiber.Ctx) error {
	events, err := h.engine.TicketNotifications(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewNotificationResponses(events)})
}

// Complete POST /tickets/:id/complete.
func (h *TicketsHandler) Complete(c *fiber.Ctx) error {
	return h.transition(c, domain.ActionComplete)
}

// Cancel POST /tickets/:id/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, domain.ActionCancel)
}

// Skip POST /tickets/:id/skip.
func (h *TicketsHandler) Skip(c *fiber.Ctx) error {
	return h.transition(c, domain.ActionSkip)
}

// Escalate POST /tickets/:id/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	return h.transition(c, domain.ActionEscalate)
}

func (h *TicketsHandler) transition(c *fiber.Ctx, action domain.TicketAction) error {
	ctx := c.UserContext()
	id := c.Params("id")

	var (
		ticket *domain.Ticket
		err    error
	)
	switch action {
	case domain.ActionComplete:
		ticket, err = h.engine.CompleteTicket(ctx, id)
	case domain.ActionCancel:
		ticket, err = h.engine.CancelTicket(ctx, id)
	case domain.ActionSkip:
		ticket, err = h.engine.SkipTicket(ctx, id)
	case domain.ActionEscalate:
		ticket, err = h.engine.EscalateTicket(ctx, id)
	default:
		return apperrors.NewValidationError("unsupported action", map[string]any{"action": action})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}
