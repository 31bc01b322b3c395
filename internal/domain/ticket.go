package domain

import "time"

// TicketStatus enumerates lifecycle states for queue tickets.
type TicketStatus string

const (
	TicketStatusWaiting   TicketStatus = "WAITING"
	TicketStatusServing   TicketStatus = "SERVING"
	TicketStatusCompleted TicketStatus = "COMPLETED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
	TicketStatusSkipped   TicketStatus = "SKIPPED"
)

// Terminal reports whether no further transitions leave the status.
func (s TicketStatus) Terminal() bool {
	switch s {
	case TicketStatusCompleted, TicketStatusCancelled, TicketStatusSkipped:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusWaiting, TicketStatusServing, TicketStatusCompleted, TicketStatusCancelled, TicketStatusSkipped:
		return true
	}
	return false
}

// TicketPriority orders tickets inside a department queue.
type TicketPriority string

const (
	TicketPriorityNormal    TicketPriority = "NORMAL"
	TicketPriorityEmergency TicketPriority = "EMERGENCY"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	return p == TicketPriorityNormal || p == TicketPriorityEmergency
}

// Rank is the sort key for a priority; lower is served first.
func (p TicketPriority) Rank() int {
	if p == TicketPriorityEmergency {
		return 0
	}
	return 1
}

// Ticket is one patient's place in one department queue.
type Ticket struct {
	ID           string
	PatientID    string
	HospitalID   string
	DepartmentID string
	ServiceDate  time.Time
	TokenNumber  int
	Status       TicketStatus
	Priority     TicketPriority
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CalledAt     *time.Time
	ServedAt     *time.Time
}
