package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/events"
	"github.com/spec-kit/queue-engine/internal/observability"
	"github.com/spec-kit/queue-engine/internal/repository"
	apperrors "github.com/spec-kit/queue-engine/pkg/util/errorutil"
)

// Waker is nudged after a new notification is stored.
type Waker interface {
	Wake()
}

// RecipientResolver maps a ticket to the address its notifications go to.
type RecipientResolver interface {
	Resolve(ctx context.Context, ticket domain.Ticket) (string, error)
}

// PatientIDRecipient addresses notifications to the ticket's patient id,
// which the chat front end uses as its chat identifier.
type PatientIDRecipient struct{}

// Resolve implements RecipientResolver.
func (PatientIDRecipient) Resolve(_ context.Context, ticket domain.Ticket) (string, error) {
	return ticket.PatientID, nil
}

// NotificationService turns ticket events into persisted notification events.
// Delivery itself belongs to the notification worker.
type NotificationService struct {
	notifications  repository.NotificationRepository
	dispatcher     events.Dispatcher
	estimator      *WaitEstimator
	registry       *DepartmentRegistry
	resolver       RecipientResolver
	waker          Waker
	channel        string
	aheadPositions int
	clock          func() time.Time
	logger         *zap.Logger
	metrics        *observability.Metrics
}

// NotificationDependencies bundles notification collaborators.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	Dispatcher       events.Dispatcher
	Estimator        *WaitEstimator
	Registry         *DepartmentRegistry
	Resolver         RecipientResolver
	Waker            Waker
	Channel          string
	// AheadPositions is how many tickets behind the called one get a POSITION_UPDATE.
	AheadPositions int
	Clock          func() time.Time
	Logger         *zap.Logger
	Metrics        *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	n := &NotificationService{
		notifications:  deps.NotificationRepo,
		dispatcher:     deps.Dispatcher,
		estimator:      deps.Estimator,
		registry:       deps.Registry,
		resolver:       deps.Resolver,
		waker:          deps.Waker,
		channel:        deps.Channel,
		aheadPositions: deps.AheadPositions,
		clock:          deps.Clock,
		logger:         deps.Logger,
		metrics:        deps.Metrics,
	}
	if n.resolver == nil {
		n.resolver = PatientIDRecipient{}
	}
	if n.channel == "" {
		n.channel = "log"
	}
	if n.clock == nil {
		n.clock = time.Now
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	return n
}

// SetWaker attaches the worker to nudge once it exists.
func (n *NotificationService) SetWaker(w Waker) {
	n.waker = w
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketIssued, n.handleTicketIssued)
	n.dispatcher.Subscribe(events.EventTicketCalled, n.handleTicketCalled)
	n.dispatcher.Subscribe(events.EventTicketCancelled, n.handleTicketCancelled)
}

// Enqueue stores a PENDING notification. A second call for the same ticket
// and type while the first is PENDING or SENT is a no-op.
func (n *NotificationService) Enqueue(ctx context.Context, ticketID string, notificationType domain.NotificationType, recipient, message string) error {
	if strings.TrimSpace(ticketID) == "" || strings.TrimSpace(recipient) == "" {
		return apperrors.NewValidationError("ticket_id and recipient are required", nil)
	}
	now := n.clock()
	event := &domain.NotificationEvent{
		ID:            uuid.NewString(),
		TicketID:      ticketID,
		Type:          notificationType,
		Channel:       n.channel,
		Recipient:     recipient,
		Message:       message,
		Status:        domain.NotificationPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	inserted, err := n.notifications.Enqueue(ctx, event)
	if err != nil {
		return err
	}
	if !inserted {
		n.metrics.RecordNotification("duplicate")
		n.logger.Debug("notification already queued",
			zap.String("ticket_id", ticketID),
			zap.String("type", string(notificationType)))
		return nil
	}
	n.metrics.RecordNotification("enqueued")
	if n.waker != nil {
		n.waker.Wake()
	}
	return nil
}

// ListFailed returns notifications that exhausted their retries.
func (n *NotificationService) ListFailed(ctx context.Context, limit int) ([]domain.NotificationEvent, error) {
	return n.notifications.ListFailed(ctx, limit)
}

// ListForTicket returns every notification recorded for a ticket.
func (n *NotificationService) ListForTicket(ctx context.Context, ticketID string) ([]domain.NotificationEvent, error) {
	return n.notifications.ListByTicket(ctx, ticketID)
}

func (n *NotificationService) handleTicketIssued(ctx context.Context, event events.Event) error {
	ticket, ok := events.TicketFromPayload(event.Payload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	dept := n.department(ctx, ticket.DepartmentID)
	position := 0
	if n.estimator != nil {
		if p, err := n.estimator.PositionOf(ctx, ticket); err == nil {
			position = p
		}
	}
	message := fmt.Sprintf("Your token number is %d for %s. Position %d, estimated wait %d minutes.",
		ticket.TokenNumber, dept.Name, position, EstimatedWaitMinutes(position, dept))
	return n.notify(ctx, ticket, domain.NotificationTokenIssued, message)
}

func (n *NotificationService) handleTicketCalled(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCalledPayload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	dept := n.department(ctx, payload.Ticket.DepartmentID)
	message := fmt.Sprintf("Token %d, it is your turn. Please proceed to %s.", payload.Ticket.TokenNumber, dept.Name)
	if err := n.notify(ctx, payload.Ticket, domain.NotificationYourTurn, message); err != nil {
		return err
	}

	for i, waiting := range payload.Remaining {
		if i >= n.aheadPositions {
			break
		}
		position := i + 1
		message := fmt.Sprintf("Token %d: you are number %d in line for %s.", waiting.TokenNumber, position, dept.Name)
		if position == 1 {
			message = fmt.Sprintf("Token %d: you are next in line for %s.", waiting.TokenNumber, dept.Name)
		}
		if err := n.notify(ctx, waiting, domain.NotificationPositionUpdate, message); err != nil {
			n.logger.Warn("position update not queued", zap.String("ticket_id", waiting.ID), zap.Error(err))
		}
	}
	return nil
}

func (n *NotificationService) handleTicketCancelled(ctx context.Context, event events.Event) error {
	ticket, ok := events.TicketFromPayload(event.Payload)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", event.Type)
	}
	dept := n.department(ctx, ticket.DepartmentID)
	message := fmt.Sprintf("Your token %d for %s has been cancelled.", ticket.TokenNumber, dept.Name)
	return n.notify(ctx, ticket, domain.NotificationCancelled, message)
}

func (n *NotificationService) notify(ctx context.Context, ticket domain.Ticket, notificationType domain.NotificationType, message string) error {
	recipient, err := n.resolver.Resolve(ctx, ticket)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	return n.Enqueue(ctx, ticket.ID, notificationType, recipient, message)
}

func (n *NotificationService) department(ctx context.Context, id string) domain.Department {
	if n.registry != nil {
		if dept, err := n.registry.GetDepartment(ctx, id); err == nil {
			return *dept
		}
	}
	return domain.Department{ID: id, Name: "the department"}
}
