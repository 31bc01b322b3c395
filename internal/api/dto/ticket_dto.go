package dto

import (
	"time"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// BookTicketRequest payload.
type BookTicketRequest struct {
	PatientID string                `json:"patient_id"`
	Notes     string                `json:"notes"`
	Priority  domain.TicketPriority `json:"priority"`
}

// TicketResponse represents a ticket.
type TicketResponse struct {
	ID           string                `json:"id"`
	PatientID    string                `json:"patient_id"`
	HospitalID   string                `json:"hospital_id"`
	DepartmentID string                `json:"department_id"`
	ServiceDate  string                `json:"service_date"`
	TokenNumber  int                   `json:"token_number"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	Notes        string                `json:"notes,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	CalledAt     *time.Time            `json:"called_at,omitempty"`
	ServedAt     *time.Time            `json:"served_at,omitempty"`
}

// BookingResponse is returned by bookTicket.
type BookingResponse struct {
	Ticket               TicketResponse `json:"ticket"`
	Position             int            `json:"position"`
	EstimatedWaitMinutes int            `json:"estimated_wait_minutes"`
}

// QueueStatusResponse answers getQueueStatus.
type QueueStatusResponse struct {
	DepartmentID          string `json:"department_id"`
	TicketID              string `json:"ticket_id,omitempty"`
	Position              int    `json:"position"`
	EstimatedWaitMinutes  int    `json:"estimated_wait_minutes"`
	CurrentlyServingToken int    `json:"currently_serving_token"`
	TotalWaiting          int    `json:"total_waiting"`
}

// QueueEntry is one WAITING ticket in a department snapshot.
type QueueEntry struct {
	Position    int                   `json:"position"`
	TicketID    string                `json:"ticket_id"`
	TokenNumber int                   `json:"token_number"`
	Priority    domain.TicketPriority `json:"priority"`
	ServiceDate string                `json:"service_date"`
}

// DepartmentQueueResponse combines department status with its snapshot.
type DepartmentQueueResponse struct {
	Status QueueStatusResponse `json:"status"`
	Queue  []QueueEntry        `json:"queue"`
}

// NotificationResponse represents a notification event.
type NotificationResponse struct {
	ID            string                    `json:"id"`
	TicketID      string                    `json:"ticket_id"`
	Type          domain.NotificationType   `json:"type"`
	Channel       string                    `json:"channel"`
	Recipient     string                    `json:"recipient"`
	Message       string                    `json:"message"`
	Status        domain.NotificationStatus `json:"status"`
	Attempt       int                       `json:"attempt"`
	LastError     string                    `json:"last_error,omitempty"`
	NextAttemptAt time.Time                 `json:"next_attempt_at"`
	CreatedAt     time.Time                 `json:"created_at"`
	SentAt        *time.Time                `json:"sent_at,omitempty"`
}

const dateLayout = "2006-01-02"

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:           ticket.ID,
		PatientID:    ticket.PatientID,
		HospitalID:   ticket.HospitalID,
		DepartmentID: ticket.DepartmentID,
		ServiceDate:  ticket.ServiceDate.Format(dateLayout),
		TokenNumber:  ticket.TokenNumber,
		Status:       ticket.Status,
		Priority:     ticket.Priority,
		Notes:        ticket.Notes,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
		CalledAt:     ticket.CalledAt,
		ServedAt:     ticket.ServedAt,
	}
}

// NewQueueStatusResponse maps a queue status.
func NewQueueStatusResponse(status domain.QueueStatus) QueueStatusResponse {
	return QueueStatusResponse{
		DepartmentID:          status.DepartmentID,
		TicketID:              status.TicketID,
		Position:              status.Position,
		EstimatedWaitMinutes:  status.EstimatedWaitMinutes,
		CurrentlyServingToken: status.CurrentlyServingToken,
		TotalWaiting:          status.TotalWaiting,
	}
}

// NewQueueEntries maps a snapshot to positioned entries.
func NewQueueEntries(snapshot domain.QueueSnapshot) []QueueEntry {
	entries := make([]QueueEntry, 0, len(snapshot.Tickets))
	for i, ticket := range snapshot.Tickets {
		entries = append(entries, QueueEntry{
			Position:    i + 1,
			TicketID:    ticket.ID,
			TokenNumber: ticket.TokenNumber,
			Priority:    ticket.Priority,
			ServiceDate: ticket.ServiceDate.Format(dateLayout),
		})
	}
	return entries
}

// NewNotificationResponses maps notification events.
func NewNotificationResponses(events []domain.NotificationEvent) []NotificationResponse {
	items := make([]NotificationResponse, 0, len(events))
	for _, event := range events {
		items = append(items, NotificationResponse{
			ID:            event.ID,
			TicketID:      event.TicketID,
			Type:          event.Type,
			Channel:       event.Channel,
			Recipient:     event.Recipient,
			Message:       event.Message,
			Status:        event.Status,
			Attempt:       event.Attempt,
			LastError:     event.LastError,
			NextAttemptAt: event.NextAttemptAt,
			CreatedAt:     event.CreatedAt,
			SentAt:        event.SentAt,
		})
	}
	return items
}
