package events

import (
	"time"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketIssued    EventType = "ticket_issued"
	EventTicketCalled    EventType = "ticket_called"
	EventTicketCompleted EventType = "ticket_completed"
	EventTicketCancelled EventType = "ticket_cancelled"
	EventTicketSkipped   EventType = "ticket_skipped"
	EventTicketEscalated EventType = "ticket_escalated"
)

// Event represents a domain event emitted by services after a commit.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	TicketID     string      `json:"ticket_id"`
	DepartmentID string      `json:"department_id"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// TicketPayload carries the committed ticket.
type TicketPayload struct {
	Ticket domain.Ticket `json:"ticket"`
}

// TicketCalledPayload lists the waiting tickets that follow the called one.
type TicketCalledPayload struct {
	Ticket    domain.Ticket   `json:"ticket"`
	Remaining []domain.Ticket `json:"remaining"`
}

// TicketFromPayload extracts the ticket carried by any ticket event payload.
func TicketFromPayload(payload interface{}) (domain.Ticket, bool) {
	switch p := payload.(type) {
	case TicketPayload:
		return p.Ticket, true
	case TicketCalledPayload:
		return p.Ticket, true
	}
	return domain.Ticket{}, false
}
