package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/repository"
)

// WaitEstimator computes queue positions and wait estimates from committed
// rows. It takes no locks, so polling never contends with bookings.
type WaitEstimator struct {
	tickets  repository.TicketRepository
	registry *DepartmentRegistry
}

// NewWaitEstimator constructs the estimator.
func NewWaitEstimator(tickets repository.TicketRepository, registry *DepartmentRegistry) *WaitEstimator {
	return &WaitEstimator{tickets: tickets, registry: registry}
}

// Snapshot returns the department's WAITING tickets in service order.
func (e *WaitEstimator) Snapshot(ctx context.Context, departmentID string) (domain.QueueSnapshot, error) {
	waiting, err := e.tickets.ListWaiting(ctx, departmentID)
	if err != nil {
		return domain.QueueSnapshot{}, err
	}
	// stores already order by queue rule; sorting again keeps the rule in one place
	domain.SortQueue(waiting)
	return domain.QueueSnapshot{DepartmentID: departmentID, Tickets: waiting}, nil
}

// PositionOf returns the 1-based rank of the ticket, or 0 when it is not WAITING.
func (e *WaitEstimator) PositionOf(ctx context.Context, ticket domain.Ticket) (int, error) {
	if ticket.Status != domain.TicketStatusWaiting {
		return 0, nil
	}
	snapshot, err := e.Snapshot(ctx, ticket.DepartmentID)
	if err != nil {
		return 0, err
	}
	return snapshot.PositionOf(ticket.ID), nil
}

// EstimatedWaitMinutes is position times the department's average service
// time. It is a fixed-rate approximation and ignores variance in service time.
func EstimatedWaitMinutes(position int, dept domain.Department) int {
	if position <= 0 {
		return 0
	}
	return position * dept.AverageServiceTimeMin
}

// StatusForTicket reports position, estimate and queue totals for one ticket.
func (e *WaitEstimator) StatusForTicket(ctx context.Context, ticketID string) (status domain.QueueStatus, err error) {
	ctx, span := observability.StartSpan(ctx, "WaitEstimator.StatusForTicket")
	span.SetAttributes(attribute.String("ticket.id", ticketID))
	defer func() { observability.EndSpan(span, err) }()

	ticket, err := e.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.QueueStatus{}, ErrTicketNotFound
		}
		return domain.QueueStatus{}, err
	}
	dept, err := e.registry.GetDepartment(ctx, ticket.DepartmentID)
	if err != nil {
		return domain.QueueStatus{}, err
	}
	snapshot, err := e.Snapshot(ctx, ticket.DepartmentID)
	if err != nil {
		return domain.QueueStatus{}, err
	}
	serving, err := e.currentlyServing(ctx, ticket.DepartmentID)
	if err != nil {
		return domain.QueueStatus{}, err
	}

	position := 0
	if ticket.Status == domain.TicketStatusWaiting {
		position = snapshot.PositionOf(ticket.ID)
	}
	return domain.QueueStatus{
		DepartmentID:          ticket.DepartmentID,
		TicketID:              ticket.ID,
		Position:              position,
		EstimatedWaitMinutes:  EstimatedWaitMinutes(position, *dept),
		CurrentlyServingToken: serving,
		TotalWaiting:          len(snapshot.Tickets),
	}, nil
}

// StatusForDepartment reports queue totals for a department. Position is 0 and
// the estimate is the time to clear every ticket already WAITING.
func (e *WaitEstimator) StatusForDepartment(ctx context.Context, departmentID string) (status domain.QueueStatus, snapshot domain.QueueSnapshot, err error) {
	ctx, span := observability.StartSpan(ctx, "WaitEstimator.StatusForDepartment")
	span.SetAttributes(attribute.String("department.id", departmentID))
	defer func() { observability.EndSpan(span, err) }()

	dept, err := e.registry.GetDepartment(ctx, departmentID)
	if err != nil {
		return domain.QueueStatus{}, domain.QueueSnapshot{}, err
	}
	snapshot, err = e.Snapshot(ctx, departmentID)
	if err != nil {
		return domain.QueueStatus{}, domain.QueueSnapshot{}, err
	}
	serving, err := e.currentlyServing(ctx, departmentID)
	if err != nil {
		return domain.QueueStatus{}, domain.QueueSnapshot{}, err
	}
	total := len(snapshot.Tickets)
	return domain.QueueStatus{
		DepartmentID:          departmentID,
		EstimatedWaitMinutes:  EstimatedWaitMinutes(total, *dept),
		CurrentlyServingToken: serving,
		TotalWaiting:          total,
	}, snapshot, nil
}

func (e *WaitEstimator) currentlyServing(ctx context.Context, departmentID string) (int, error) {
	ticket, err := e.tickets.LatestServing(ctx, departmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return ticket.TokenNumber, nil
}
