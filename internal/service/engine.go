package service

import (
	"context"
	"errors"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/repository"
)

// QueueEngine is the contract surface used by adapters (HTTP, CLI).
type QueueEngine struct {
	registry      *DepartmentRegistry
	sequencer     *TicketSequencer
	stateMachine  *QueueStateMachine
	estimator     *WaitEstimator
	notifications *NotificationService
	tickets       repository.TicketRepository
}

// EngineDependencies bundles the engine's components.
type EngineDependencies struct {
	Registry      *DepartmentRegistry
	Sequencer     *TicketSequencer
	StateMachine  *QueueStateMachine
	Estimator     *WaitEstimator
	Notifications *NotificationService
	TicketRepo    repository.TicketRepository
}

// Booking is the result of a successful bookTicket call.
type Booking struct {
	Ticket               domain.Ticket
	Position             int
	EstimatedWaitMinutes int
}

// NewQueueEngine constructs the facade.
func NewQueueEngine(deps EngineDependencies) *QueueEngine {
	return &QueueEngine{
		registry:      deps.Registry,
		sequencer:     deps.Sequencer,
		stateMachine:  deps.StateMachine,
		estimator:     deps.Estimator,
		notifications: deps.Notifications,
		tickets:       deps.TicketRepo,
	}
}

// BookTicket issues a ticket and reports its position at the time of the read
// that follows the commit.
func (e *QueueEngine) BookTicket(ctx context.Context, input IssueInput) (*Booking, error) {
	ticket, err := e.sequencer.IssueTicket(ctx, input)
	if err != nil {
		return nil, err
	}
	booking := &Booking{Ticket: *ticket}

	// the ticket is committed; a failed estimate must not fail the booking
	position, err := e.estimator.PositionOf(ctx, *ticket)
	if err != nil {
		return booking, nil
	}
	dept, err := e.registry.GetDepartment(ctx, ticket.DepartmentID)
	if err != nil {
		return booking, nil
	}
	booking.Position = position
	booking.EstimatedWaitMinutes = EstimatedWaitMinutes(position, *dept)
	return booking, nil
}

// CallNext serves the head of the department queue.
func (e *QueueEngine) CallNext(ctx context.Context, departmentID string) (*domain.Ticket, error) {
	return e.stateMachine.CallNext(ctx, departmentID)
}

// CompleteTicket finishes a SERVING ticket.
func (e *QueueEngine) CompleteTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return e.stateMachine.Complete(ctx, ticketID)
}

// CancelTicket withdraws a WAITING ticket.
func (e *QueueEngine) CancelTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return e.stateMachine.Cancel(ctx, ticketID)
}

// SkipTicket marks a no-show.
func (e *QueueEngine) SkipTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return e.stateMachine.Skip(ctx, ticketID)
}

// EscalateTicket raises a WAITING ticket to EMERGENCY.
func (e *QueueEngine) EscalateTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return e.stateMachine.Escalate(ctx, ticketID)
}

// GetTicket returns a ticket by id.
func (e *QueueEngine) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := e.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

// TicketStatus is getQueueStatus by ticket.
func (e *QueueEngine) TicketStatus(ctx context.Context, ticketID string) (domain.QueueStatus, error) {
	return e.estimator.StatusForTicket(ctx, ticketID)
}

// DepartmentStatus is getQueueStatus by department, with the snapshot it was computed from.
func (e *QueueEngine) DepartmentStatus(ctx context.Context, departmentID string) (domain.QueueStatus, domain.QueueSnapshot, error) {
	return e.estimator.StatusForDepartment(ctx, departmentID)
}

// Department returns department configuration with its bookability for today.
func (e *QueueEngine) Department(ctx context.Context, departmentID string) (*domain.Department, bool, error) {
	dept, err := e.registry.GetDepartment(ctx, departmentID)
	if err != nil {
		return nil, false, err
	}
	return dept, e.registry.IsBookable(*dept), nil
}

// FailedNotifications lists notifications that exhausted their retries.
func (e *QueueEngine) FailedNotifications(ctx context.Context, limit int) ([]domain.NotificationEvent, error) {
	return e.notifications.ListFailed(ctx, limit)
}

// TicketNotifications lists the notifications recorded for a ticket.
func (e *QueueEngine) TicketNotifications(ctx context.Context, ticketID string) ([]domain.NotificationEvent, error) {
	return e.notifications.ListForTicket(ctx, ticketID)
}
