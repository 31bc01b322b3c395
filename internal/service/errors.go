package service

import (
	"errors"
	"fmt"

	"github.com/spec-kit/queue-engine/internal/domain"
	apperrors "github.com/spec-kit/queue-engine/pkg/util/errorutil"
)

// Sentinel errors returned by the queue services. Match them with errors.Is;
// DomainError compares by code so details do not affect matching.
var (
	ErrDepartmentNotFound    = apperrors.NewNotFound("department", nil)
	ErrTicketNotFound        = apperrors.NewNotFound("ticket", nil)
	ErrDepartmentUnavailable = apperrors.NewPrecondition(apperrors.CodeDepartmentUnavailable, "This department is not accepting bookings right now", nil)
	ErrCapacityExceeded      = apperrors.NewPrecondition(apperrors.CodeCapacityExceeded, "This department is fully booked for today", nil)
	ErrQueueEmpty            = apperrors.NewPrecondition(apperrors.CodeQueueEmpty, "There are no patients waiting in this department", nil)
	ErrInvalidTransition     = apperrors.NewPrecondition(apperrors.CodeInvalidTransition, "This ticket cannot be changed in its current state", nil)
	ErrBookingFailed         = apperrors.NewTransient(apperrors.CodeBookingFailed, nil)
	ErrOperationFailed       = apperrors.NewTransient(apperrors.CodeOperationFailed, nil)
)

func invalidTransition(ticket domain.Ticket, action domain.TicketAction) error {
	return apperrors.NewPrecondition(
		apperrors.CodeInvalidTransition,
		fmt.Sprintf("Ticket %d cannot be %s while %s", ticket.TokenNumber, actionVerb(action), ticket.Status),
		map[string]any{"ticket_id": ticket.ID, "status": ticket.Status, "action": action},
	)
}

func actionVerb(action domain.TicketAction) string {
	switch action {
	case domain.ActionCall:
		return "called"
	case domain.ActionComplete:
		return "completed"
	case domain.ActionCancel:
		return "cancelled"
	case domain.ActionSkip:
		return "skipped"
	case domain.ActionEscalate:
		return "escalated"
	}
	return string(action)
}

func isDomainError(err error) bool {
	var domainErr *apperrors.DomainError
	return errors.As(err, &domainErr)
}
