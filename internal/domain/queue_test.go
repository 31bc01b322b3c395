package domain

import (
	"testing"
	"time"
)

func TestSortQueueOrdersByPriorityThenToken(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tickets := []Ticket{
		{ID: "n2", TokenNumber: 2, Priority: TicketPriorityNormal, ServiceDate: day},
		{ID: "e5", TokenNumber: 5, Priority: TicketPriorityEmergency, ServiceDate: day},
		{ID: "n1", TokenNumber: 1, Priority: TicketPriorityNormal, ServiceDate: day},
		{ID: "e3", TokenNumber: 3, Priority: TicketPriorityEmergency, ServiceDate: day},
		{ID: "old9", TokenNumber: 9, Priority: TicketPriorityNormal, ServiceDate: day.AddDate(0, 0, -1)},
	}
	SortQueue(tickets)

	want := []string{"e3", "e5", "old9", "n1", "n2"}
	for i, id := range want {
		if tickets[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i+1, tickets[i].ID, id)
		}
	}

	snapshot := QueueSnapshot{Tickets: tickets}
	if pos := snapshot.PositionOf("n1"); pos != 4 {
		t.Fatalf("PositionOf(n1)=%d, want 4", pos)
	}
	if pos := snapshot.PositionOf("missing"); pos != 0 {
		t.Fatalf("PositionOf(missing)=%d, want 0", pos)
	}
	head, ok := snapshot.Head()
	if !ok || head.ID != "e3" {
		t.Fatalf("Head()=%v,%v", head.ID, ok)
	}
}

func TestDepartmentBookable(t *testing.T) {
	today := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	dept := Department{
		DailyCapacity:   3,
		IsActive:        true,
		HospitalActive:  true,
		LastIssuedToken: 3,
		CounterDate:     today,
	}
	if dept.Bookable(today) {
		t.Fatalf("full department reported bookable")
	}
	if !dept.Bookable(today.AddDate(0, 0, 1)) {
		t.Fatalf("counter from previous day should not count against capacity")
	}
	dept.HospitalActive = false
	if dept.Bookable(today.AddDate(0, 0, 1)) {
		t.Fatalf("inactive hospital reported bookable")
	}
}
