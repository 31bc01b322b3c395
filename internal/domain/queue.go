package domain

import "sort"

// QueueSnapshot is the ordered set of WAITING tickets of a department at one instant.
type QueueSnapshot struct {
	DepartmentID string
	Tickets      []Ticket
}

// QueueStatus summarizes the live queue for a ticket or a department.
type QueueStatus struct {
	DepartmentID          string
	TicketID              string
	Position              int
	EstimatedWaitMinutes  int
	CurrentlyServingToken int
	TotalWaiting          int
}

// QueueLess reports whether a is served before b: EMERGENCY first, then older
// service days, then lower token numbers.
func QueueLess(a, b Ticket) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() < b.Priority.Rank()
	}
	if !a.ServiceDate.Equal(b.ServiceDate) {
		return a.ServiceDate.Before(b.ServiceDate)
	}
	return a.TokenNumber < b.TokenNumber
}

// SortQueue orders tickets in place by QueueLess.
func SortQueue(tickets []Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		return QueueLess(tickets[i], tickets[j])
	})
}

// PositionOf returns the 1-based rank of ticketID in the snapshot, or 0 if absent.
func (s QueueSnapshot) PositionOf(ticketID string) int {
	for i := range s.Tickets {
		if s.Tickets[i].ID == ticketID {
			return i + 1
		}
	}
	return 0
}

// Head returns the next ticket to serve.
func (s QueueSnapshot) Head() (Ticket, bool) {
	if len(s.Tickets) == 0 {
		return Ticket{}, false
	}
	return s.Tickets[0], true
}
