package domain

import (
	"errors"
	"time"
)

// ErrInvalidTransition is returned when an action is not allowed from the ticket's current state.
var ErrInvalidTransition = errors.New("invalid ticket transition")

// TicketAction names a state machine operation.
type TicketAction string

const (
	ActionCall     TicketAction = "call_next"
	ActionComplete TicketAction = "complete"
	ActionCancel   TicketAction = "cancel"
	ActionSkip     TicketAction = "skip"
	ActionEscalate TicketAction = "escalate"
)

type transition struct {
	from []TicketStatus
	to   TicketStatus
}

var transitionMap = map[TicketAction]transition{
	ActionCall:     {from: []TicketStatus{TicketStatusWaiting}, to: TicketStatusServing},
	ActionComplete: {from: []TicketStatus{TicketStatusServing}, to: TicketStatusCompleted},
	ActionCancel:   {from: []TicketStatus{TicketStatusWaiting}, to: TicketStatusCancelled},
	ActionSkip:     {from: []TicketStatus{TicketStatusWaiting, TicketStatusServing}, to: TicketStatusSkipped},
	// escalate keeps the status and only flips priority
	ActionEscalate: {from: []TicketStatus{TicketStatusWaiting}, to: TicketStatusWaiting},
}

// ValidTransition reports whether action may be applied to a ticket in fromStatus.
func ValidTransition(action TicketAction, fromStatus TicketStatus) bool {
	rule, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range rule.from {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// ApplyAction computes the ticket that results from action at time now.
// changed is false when the ticket already reflects the action, so repeated
// invocations return the current ticket instead of failing.
func ApplyAction(ticket Ticket, action TicketAction, now time.Time) (next Ticket, changed bool, err error) {
	rule, ok := transitionMap[action]
	if !ok {
		return ticket, false, ErrInvalidTransition
	}
	if action == ActionEscalate {
		if ticket.Status != TicketStatusWaiting {
			return ticket, false, ErrInvalidTransition
		}
		if ticket.Priority == TicketPriorityEmergency {
			return ticket, false, nil
		}
		next = ticket
		next.Priority = TicketPriorityEmergency
		next.UpdatedAt = now
		return next, true, nil
	}
	if ticket.Status == rule.to {
		return ticket, false, nil
	}
	if !ValidTransition(action, ticket.Status) {
		return ticket, false, ErrInvalidTransition
	}

	next = ticket
	next.Status = rule.to
	next.UpdatedAt = now
	switch action {
	case ActionCall:
		calledAt := now
		next.CalledAt = &calledAt
	case ActionComplete:
		servedAt := now
		next.ServedAt = &servedAt
	}
	return next, true, nil
}
