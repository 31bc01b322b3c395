package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/repository"
	apperrors "github.com/spec-kit/queue-engine/pkg/util/errorutil"
)

// QueueStateMachine applies lifecycle transitions to tickets.
type QueueStateMachine struct {
	store      repository.QueueStore
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	retry      RetryPolicy
	clock      func() time.Time
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// StateMachineDependencies bundles state machine collaborators.
type StateMachineDependencies struct {
	QueueStore repository.QueueStore
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Retry      RetryPolicy
	Clock      func() time.Time
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewQueueStateMachine constructs the state machine.
func NewQueueStateMachine(deps StateMachineDependencies) *QueueStateMachine {
	m := &QueueStateMachine{
		store:      deps.QueueStore,
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		retry:      deps.Retry,
		clock:      deps.Clock,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// CallNext moves the head of the department queue from WAITING to SERVING.
// It holds the department lock, so concurrent calls serve distinct tickets.
func (m *QueueStateMachine) CallNext(ctx context.Context, departmentID string) (called *domain.Ticket, err error) {
	ctx, span := observability.StartSpan(ctx, "QueueStateMachine.CallNext")
	span.SetAttributes(attribute.String("department.id", departmentID))
	defer func() { observability.EndSpan(span, err) }()

	if departmentID == "" {
		return nil, apperrors.NewValidationError("department_id is required", nil)
	}

	var remaining []domain.Ticket
	err = m.retryOp(ctx, "call_next", func() error {
		return m.store.WithDepartmentLock(ctx, departmentID, func(ctx context.Context, tx repository.DepartmentTx) error {
			head, err := tx.HeadOfQueue(ctx)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrQueueEmpty
				}
				return err
			}
			next, _, err := domain.ApplyAction(*head, domain.ActionCall, m.clock())
			if err != nil {
				return invalidTransition(*head, domain.ActionCall)
			}
			if err := tx.UpdateTicket(ctx, &next, *head); err != nil {
				return err
			}
			called = &next
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDepartmentNotFound
		}
		return nil, m.operationError("call_next", departmentID, err)
	}

	if waiting, err := m.tickets.ListWaiting(ctx, departmentID); err == nil {
		remaining = waiting
	} else {
		m.logger.Warn("list waiting after call failed", zap.String("department_id", departmentID), zap.Error(err))
	}

	span.SetAttributes(attribute.Int("ticket.token", called.TokenNumber))
	m.metrics.RecordTransition(string(domain.ActionCall))
	publish(ctx, m.dispatcher, events.EventTicketCalled, *called, events.TicketCalledPayload{Ticket: *called, Remaining: remaining})
	return called, nil
}

// Complete moves a SERVING ticket to COMPLETED and stamps servedAt.
func (m *QueueStateMachine) Complete(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return m.transition(ctx, ticketID, domain.ActionComplete, events.EventTicketCompleted)
}

// Cancel moves a WAITING ticket to CANCELLED.
func (m *QueueStateMachine) Cancel(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return m.transition(ctx, ticketID, domain.ActionCancel, events.EventTicketCancelled)
}

// Skip moves a WAITING or SERVING ticket to SKIPPED.
func (m *QueueStateMachine) Skip(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return m.transition(ctx, ticketID, domain.ActionSkip, events.EventTicketSkipped)
}

// Escalate raises a WAITING ticket to EMERGENCY priority.
func (m *QueueStateMachine) Escalate(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return m.transition(ctx, ticketID, domain.ActionEscalate, events.EventTicketEscalated)
}

// transition performs an optimistic read-check-write on a single ticket row.
// A repeated action whose target already holds returns the stored ticket.
func (m *QueueStateMachine) transition(ctx context.Context, ticketID string, action domain.TicketAction, eventType events.EventType) (result *domain.Ticket, err error) {
	ctx, span := observability.StartSpan(ctx, "QueueStateMachine."+string(action))
	span.SetAttributes(attribute.String("ticket.id", ticketID))
	defer func() { observability.EndSpan(span, err) }()

	if ticketID == "" {
		return nil, apperrors.NewValidationError("ticket_id is required", nil)
	}

	changed := false
	err = m.retryOp(ctx, string(action), func() error {
		current, err := m.tickets.GetByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTicketNotFound
			}
			return err
		}
		next, didChange, err := domain.ApplyAction(*current, action, m.clock())
		if err != nil {
			return invalidTransition(*current, action)
		}
		if !didChange {
			result, changed = current, false
			return nil
		}
		if err := m.tickets.UpdateIfUnchanged(ctx, &next, *current); err != nil {
			return err
		}
		result, changed = &next, true
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, m.operationError(string(action), ticketID, err)
	}

	if changed {
		m.metrics.RecordTransition(string(action))
		publish(ctx, m.dispatcher, eventType, *result, events.TicketPayload{Ticket: *result})
	}
	return result, nil
}

func (m *QueueStateMachine) retryOp(ctx context.Context, operation string, op func() error) error {
	attempt := 0
	return m.retry.run(ctx, func() error {
		attempt++
		if attempt > 1 {
			m.metrics.RecordRetry(operation)
		}
		return op()
	})
}

func (m *QueueStateMachine) operationError(operation, id string, err error) error {
	if isDomainError(err) {
		return err
	}
	m.logger.Warn("queue operation failed",
		zap.String("operation", operation),
		zap.String("id", id),
		zap.Bool("contention", repository.IsRetryable(err)),
		zap.Error(err))
	return apperrors.NewTransient(apperrors.CodeOperationFailed, err)
}
