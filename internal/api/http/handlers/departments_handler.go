package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/queue-engine/internal/api/dto"
	"github.com/spec-kit/queue-engine/internal/service"
	apperrors "github.com/spec-kit/queue-engine/pkg/util/errorutil"
)

// DepartmentsHandler exposes booking and queue operations of a department.
type DepartmentsHandler struct {
	engine *service.QueueEngine
}

// NewDepartmentsHandler constructs handler.
func NewDepartmentsHandler(engine *service.QueueEngine) *DepartmentsHandler {
	return &DepartmentsHandler{engine: engine}
}

// BookTicket POST /departments/:id/tickets.
func (h *DepartmentsHandler) BookTicket(c *fiber.Ctx) error {
	var req dto.BookTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.PatientID == "" {
		return apperrors.NewValidationError("patient_id required", nil)
	}

	booking, err := h.engine.BookTicket(c.UserContext(), service.IssueInput{
		PatientID:    req.PatientID,
		DepartmentID: c.Params("id"),
		Notes:        req.Notes,
		Priority:     req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.BookingResponse{
		Ticket:               dto.NewTicketResponse(&booking.Ticket),
		Position:             booking.Position,
		EstimatedWaitMinutes: booking.EstimatedWaitMinutes,
	}})
}

// CallNext POST /departments/:id/call-next.
func (h *DepartmentsHandler) CallNext(c *fiber.Ctx) error {
	ticket, err := h.engine.CallNext(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetQueue GET /departments/:id/queue.
func (h *DepartmentsHandler) GetQueue(c *fiber.Ctx) error {
	status, snapshot, err := h.engine.DepartmentStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DepartmentQueueResponse{
		Status: dto.NewQueueStatusResponse(status),
		Queue:  dto.NewQueueEntries(snapshot),
	}})
}

// GetDepartment GET /departments/:id.
func (h *DepartmentsHandler) GetDepartment(c *fiber.Ctx) error {
	dept, bookable, err := h.engine.Department(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"id":                       dept.ID,
		"hospital_id":              dept.HospitalID,
		"name":                     dept.Name,
		"daily_capacity":           dept.DailyCapacity,
		"average_service_time_min": dept.AverageServiceTimeMin,
		"is_active":                dept.IsActive && dept.HospitalActive,
		"bookable":                 bookable,
	}})
}
