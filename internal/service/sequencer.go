package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/repository"
	apperrors "github.com/spec-kit/queue-engine/pkg/util/errorutil"
)

// TicketSequencer issues gap-free, per-department token numbers.
type TicketSequencer struct {
	store      repository.QueueStore
	registry   *DepartmentRegistry
	dispatcher events.Dispatcher
	retry      RetryPolicy
	clock      func() time.Time
	location   *time.Location
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// SequencerDependencies bundles sequencer collaborators.
type SequencerDependencies struct {
	QueueStore repository.QueueStore
	Registry   *DepartmentRegistry
	Dispatcher events.Dispatcher
	Retry      RetryPolicy
	Clock      func() time.Time
	Location   *time.Location
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// IssueInput describes a booking request.
type IssueInput struct {
	PatientID    string
	DepartmentID string
	Notes        string
	Priority     domain.TicketPriority
}

// NewTicketSequencer constructs the sequencer.
func NewTicketSequencer(deps SequencerDependencies) *TicketSequencer {
	s := &TicketSequencer{
		store:      deps.QueueStore,
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		retry:      deps.Retry,
		clock:      deps.Clock,
		location:   deps.Location,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// IssueTicket allocates the next token of the department and persists a
// WAITING ticket in one transaction under the department lock. TOKEN_ISSUED
// is published only after commit.
func (s *TicketSequencer) IssueTicket(ctx context.Context, input IssueInput) (ticket *domain.Ticket, err error) {
	ctx, span := observability.StartSpan(ctx, "TicketSequencer.IssueTicket")
	span.SetAttributes(attribute.String("department.id", input.DepartmentID))
	defer func() { observability.EndSpan(span, err) }()

	input.PatientID = strings.TrimSpace(input.PatientID)
	input.DepartmentID = strings.TrimSpace(input.DepartmentID)
	if input.PatientID == "" || input.DepartmentID == "" {
		return nil, apperrors.NewValidationError("patient_id and department_id are required", nil)
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityNormal
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("priority must be NORMAL or EMERGENCY", map[string]any{"priority": input.Priority})
	}

	attempt := 0
	err = s.retry.run(ctx, func() error {
		attempt++
		if attempt > 1 {
			s.metrics.RecordRetry("issue_ticket")
		}
		issued, err := s.issueOnce(ctx, input)
		if err != nil {
			return err
		}
		ticket = issued
		return nil
	})
	if err != nil {
		return nil, s.bookingError(input.DepartmentID, err)
	}

	span.SetAttributes(attribute.Int("ticket.token", ticket.TokenNumber))
	s.metrics.RecordTicketIssued(ticket.DepartmentID)
	if s.registry != nil {
		s.registry.Invalidate(ctx, ticket.DepartmentID)
	}
	publish(ctx, s.dispatcher, events.EventTicketIssued, *ticket, events.TicketPayload{Ticket: *ticket})
	return ticket, nil
}

func (s *TicketSequencer) issueOnce(ctx context.Context, input IssueInput) (*domain.Ticket, error) {
	var issued *domain.Ticket
	err := s.store.WithDepartmentLock(ctx, input.DepartmentID, func(ctx context.Context, tx repository.DepartmentTx) error {
		dept := tx.Department()
		now := s.clock()
		day := domain.ServiceDay(now, s.location)

		if !dept.IsActive || !dept.HospitalActive {
			return ErrDepartmentUnavailable
		}
		issuedToday := dept.IssuedOn(day)
		if issuedToday >= dept.DailyCapacity {
			return ErrCapacityExceeded
		}

		token := issuedToday + 1
		if err := tx.SaveCounter(ctx, token, day); err != nil {
			return err
		}
		ticket := &domain.Ticket{
			ID:           uuid.NewString(),
			PatientID:    input.PatientID,
			HospitalID:   dept.HospitalID,
			DepartmentID: dept.ID,
			ServiceDate:  day,
			TokenNumber:  token,
			Status:       domain.TicketStatusWaiting,
			Priority:     input.Priority,
			Notes:        strings.TrimSpace(input.Notes),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.InsertTicket(ctx, ticket); err != nil {
			return err
		}
		issued = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

func (s *TicketSequencer) bookingError(departmentID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrDepartmentNotFound
	case isDomainError(err):
		return err
	}
	s.logger.Warn("booking failed",
		zap.String("department_id", departmentID),
		zap.Bool("contention", repository.IsRetryable(err)),
		zap.Error(err))
	return apperrors.NewTransient(apperrors.CodeBookingFailed, err)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, eventType events.EventType, ticket domain.Ticket, payload interface{}) {
	if dispatcher == nil {
		return
	}
	_ = dispatcher.Publish(context.WithoutCancel(ctx), events.Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		TicketID:     ticket.ID,
		DepartmentID: ticket.DepartmentID,
		Timestamp:    time.Now(),
		Payload:      payload,
	})
}
