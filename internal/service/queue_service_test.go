package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/spec-kit/queue-engine/internal/domain"
)

func TestCallNextThenPositionScenario(t *testing.T) {
	f := newFixture(t, testDepartment("dept-b", 10))
	first := f.book(t, "dept-b", "p1")
	second := f.book(t, "dept-b", "p2")

	called, err := f.c.Engine.CallNext(t.Context(), "dept-b")
	if err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	if called.ID != first.Ticket.ID || called.Status != domain.TicketStatusServing {
		t.Fatalf("called %+v, want ticket 1 SERVING", called)
	}
	if called.CalledAt == nil || called.ServedAt != nil {
		t.Fatalf("calledAt=%v servedAt=%v", called.CalledAt, called.ServedAt)
	}

	status, err := f.c.Engine.TicketStatus(t.Context(), second.Ticket.ID)
	if err != nil {
		t.Fatalf("TicketStatus: %v", err)
	}
	if status.Position != 1 || status.EstimatedWaitMinutes != 10 {
		t.Fatalf("position=%d wait=%d, want 1 and 10", status.Position, status.EstimatedWaitMinutes)
	}
	if status.CurrentlyServingToken != 1 || status.TotalWaiting != 1 {
		t.Fatalf("serving=%d waiting=%d", status.CurrentlyServingToken, status.TotalWaiting)
	}

	served, err := f.c.Engine.TicketStatus(t.Context(), first.Ticket.ID)
	if err != nil {
		t.Fatalf("TicketStatus: %v", err)
	}
	if served.Position != 0 || served.EstimatedWaitMinutes != 0 {
		t.Fatalf("serving ticket reported position %d", served.Position)
	}
}

func TestEscalatedTicketIsCalledFirst(t *testing.T) {
	f := newFixture(t, testDepartment("dept-c", 10))
	f.book(t, "dept-c", "p1")
	f.book(t, "dept-c", "p2")
	third := f.book(t, "dept-c", "p3")

	escalated, err := f.c.Engine.EscalateTicket(t.Context(), third.Ticket.ID)
	if err != nil {
		t.Fatalf("EscalateTicket: %v", err)
	}
	if escalated.Priority != domain.TicketPriorityEmergency || escalated.Status != domain.TicketStatusWaiting {
		t.Fatalf("escalated %+v", escalated)
	}

	status, err := f.c.Engine.TicketStatus(t.Context(), third.Ticket.ID)
	if err != nil {
		t.Fatalf("TicketStatus: %v", err)
	}
	if status.Position != 1 {
		t.Fatalf("escalated position=%d, want 1", status.Position)
	}

	called, err := f.c.Engine.CallNext(t.Context(), "dept-c")
	if err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	if called.TokenNumber != 3 {
		t.Fatalf("called token %d, want 3", called.TokenNumber)
	}
}

func TestEmergencyBookingJumpsQueue(t *testing.T) {
	f := newFixture(t, testDepartment("dept-a", 10))
	f.book(t, "dept-a", "p1")
	booking, err := f.c.Engine.BookTicket(t.Context(), IssueInput{
		PatientID:    "p2",
		DepartmentID: "dept-a",
		Priority:     domain.TicketPriorityEmergency,
	})
	if err != nil {
		t.Fatalf("BookTicket: %v", err)
	}
	if booking.Position != 1 {
		t.Fatalf("emergency position=%d, want 1", booking.Position)
	}
}

func TestCallNextEmptyAndUnknown(t *testing.T) {
	f := newFixture(t, testDepartment("dept-a", 10))

	if _, err := f.c.Engine.CallNext(t.Context(), "dept-a"); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected QueueEmpty, got %v", err)
	}
	if _, err := f.c.Engine.CallNext(t.Context(), "dept-missing"); !errors.Is(err, ErrDepartmentNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestConcurrentCallNextServesDistinctTickets(t *testing.T) {
	const patients = 25
	f := newFixture(t, testDepartment("dept-a", 100))
	for i := 0; i < patients; i++ {
		f.book(t, "dept-a", fmt.Sprintf("p%d", i))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		served = make(map[string]int)
	)
	for i := 0; i < patients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := f.c.StateMachine.CallNext(context.Background(), "dept-a")
			if err != nil {
				t.Errorf("CallNext: %v", err)
				return
			}
			mu.Lock()
			served[ticket.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(served) != patients {
		t.Fatalf("served %d distinct tickets, want %d", len(served), patients)
	}
	for id, n := range served {
		if n != 1 {
			t.Fatalf("ticket %s served %d times", id, n)
		}
	}
	if _, err := f.c.StateMachine.CallNext(t.Context(), "dept-a"); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected QueueEmpty after draining, got %v", err)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t, testDepartment("dept-a", 10))
	booking := f.book(t, "dept-a", "p1")
	if _, err := f.c.Engine.CallNext(t.Context(), "dept-a"); err != nil {
		t.Fatalf("CallNext: %v", err)
	}

	first, err := f.c.Engine.CompleteTicket(t.Context(), booking.Ticket.ID)
	if err != nil {
		t.Fatalf("CompleteTicket: %v", err)
	}
	if first.Status != domain.TicketStatusCompleted || first.ServedAt == nil {
		t.Fatalf("completed %+v", first)
	}
	second, err := f.c.Engine.CompleteTicket(t.Context(), booking.Ticket.ID)
	if err != nil {
		t.Fatalf("second CompleteTicket: %v", err)
	}
	if !second.ServedAt.Equal(*first.ServedAt) || !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("second completion changed the ticket: %+v vs %+v", second, first)
	}
}

func TestTransitionsFromClosedStatesAreRejected(t *testing.T) {
	f := newFixture(t, testDepartment("dept-a", 10))
	waiting := f.book(t, "dept-a", "p1").Ticket
	cancelled := f.book(t, "dept-a", "p2").Ticket
	if _, err := f.c.Engine.CancelTicket(t.Context(), cancelled.ID); err != nil {
		t.Fatalf("CancelTicket: %v", err)
	}

	tests := []struct {
		name   string
		id     string
		action func(context.Context, string) (*domain.Ticket, error)
		want   error
	}{
		{name: "complete waiting", id: waiting.ID, action: f.c.Engine.CompleteTicket, want: ErrInvalidTransition},
		{name: "complete cancelled", id: cancelled.ID, action: f.c.Engine.CompleteTicket, want: ErrInvalidTransition},
		{name: "skip cancelled", id: cancelled.ID, action: f.c.Engine.SkipTicket, want: ErrInvalidTransition},
		{name: "escalate cancelled", id: cancelled.ID, action: f.c.Engine.EscalateTicket, want: ErrInvalidTransition},
		{name: "unknown ticket", id: "missing", action: f.c.Engine.CancelTicket, want: ErrTicketNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.action(t.Context(), tt.id); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	again, err := f.c.Engine.CancelTicket(t.Context(), cancelled.ID)
	if err != nil || again.Status != domain.TicketStatusCancelled {
		t.Fatalf("repeated cancel: %v %+v", err, again)
	}
}

func TestSkipFromWaitingAndServing(t *testing.T) {
	f := newFixture(t, testDepartment("dept-a", 10))
	first := f.book(t, "dept-a", "p1").Ticket
	second := f.book(t, "dept-a", "p2").Ticket

	if _, err := f.c.Engine.CallNext(t.Context(), "dept-a"); err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	for _, id := range []string{first.ID, second.ID} {
		skipped, err := f.c.Engine.SkipTicket(t.Context(), id)
		if err != nil {
			t.Fatalf("SkipTicket(%s): %v", id, err)
		}
		if skipped.Status != domain.TicketStatusSkipped {
			t.Fatalf("status=%s", skipped.Status)
		}
	}
	if _, err := f.c.Engine.CallNext(t.Context(), "dept-a"); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("skipped tickets must leave the queue, got %v", err)
	}
}

func TestEscalateOnlyWhileWaiting(t *testing.T) {
	f := newFixture(t, testDepartment("dept-a", 10))
	ticket := f.book(t, "dept-a", "p1").Ticket

	first, err := f.c.Engine.EscalateTicket(t.Context(), ticket.ID)
	if err != nil {
		t.Fatalf("EscalateTicket: %v", err)
	}
	second, err := f.c.Engine.EscalateTicket(t.Context(), ticket.ID)
	if err != nil || !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("repeated escalate: %v", err)
	}

	if _, err := f.c.Engine.CallNext(t.Context(), "dept-a"); err != nil {
		t.Fatalf("CallNext: %v", err)
	}
	if _, err := f.c.Engine.EscalateTicket(t.Context(), ticket.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition for SERVING ticket, got %v", err)
	}
}

func TestPositionMatchesTicketsAhead(t *testing.T) {
	f := newFixture(t, testDepartment("dept-a", 20))
	var ids []string
	for i := 0; i < 8; i++ {
		ids = append(ids, f.book(t, "dept-a", fmt.Sprintf("p%d", i)).Ticket.ID)
	}
	for _, i := range []int{5, 2} {
		if _, err := f.c.Engine.EscalateTicket(t.Context(), ids[i]); err != nil {
			t.Fatalf("EscalateTicket: %v", err)
		}
	}
	if _, err := f.c.Engine.CancelTicket(t.Context(), ids[0]); err != nil {
		t.Fatalf("CancelTicket: %v", err)
	}

	_, snapshot, err := f.c.Engine.DepartmentStatus(t.Context(), "dept-a")
	if err != nil {
		t.Fatalf("DepartmentStatus: %v", err)
	}
	for _, ticket := range snapshot.Tickets {
		ahead := 0
		for _, other := range snapshot.Tickets {
			if domain.QueueLess(other, ticket) {
				ahead++
			}
		}
		position, err := f.c.Estimator.PositionOf(t.Context(), ticket)
		if err != nil {
			t.Fatalf("PositionOf: %v", err)
		}
		if position != ahead+1 {
			t.Fatalf("token %d: position %d, want %d", ticket.TokenNumber, position, ahead+1)
		}
	}
	if head, _ := snapshot.Head(); head.TokenNumber != 3 {
		t.Fatalf("head token %d, want 3", head.TokenNumber)
	}
}

func TestDepartmentStatus(t *testing.T) {
	f := newFixture(t, testDepartment("dept-a", 20))
	for i := 0; i < 3; i++ {
		f.book(t, "dept-a", fmt.Sprintf("p%d", i))
	}
	if _, err := f.c.Engine.CallNext(t.Context(), "dept-a"); err != nil {
		t.Fatalf("CallNext: %v", err)
	}

	status, snapshot, err := f.c.Engine.DepartmentStatus(t.Context(), "dept-a")
	if err != nil {
		t.Fatalf("DepartmentStatus: %v", err)
	}
	if status.TotalWaiting != 2 || len(snapshot.Tickets) != 2 {
		t.Fatalf("waiting=%d snapshot=%d", status.TotalWaiting, len(snapshot.Tickets))
	}
	if status.CurrentlyServingToken != 1 || status.EstimatedWaitMinutes != 20 {
		t.Fatalf("serving=%d wait=%d", status.CurrentlyServingToken, status.EstimatedWaitMinutes)
	}
	if _, _, err := f.c.Engine.DepartmentStatus(t.Context(), "missing"); !errors.Is(err, ErrDepartmentNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
