package domain

import (
	"errors"
	"testing"
	"time"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		action TicketAction
		from   TicketStatus
		valid  bool
	}{
		{ActionCall, TicketStatusWaiting, true},
		{ActionCall, TicketStatusServing, false},
		{ActionComplete, TicketStatusServing, true},
		{ActionComplete, TicketStatusWaiting, false},
		{ActionCancel, TicketStatusWaiting, true},
		{ActionCancel, TicketStatusServing, false},
		{ActionSkip, TicketStatusWaiting, true},
		{ActionSkip, TicketStatusServing, true},
		{ActionSkip, TicketStatusCompleted, false},
		{ActionEscalate, TicketStatusWaiting, true},
		{ActionEscalate, TicketStatusServing, false},
		{"unknown", TicketStatusWaiting, false},
	}

	for _, tt := range cases {
		if got := ValidTransition(tt.action, tt.from); got != tt.valid {
			t.Fatalf("ValidTransition(%q, %q)=%v, want %v", tt.action, tt.from, got, tt.valid)
		}
	}
}

func TestApplyActionTerminalStatesAreClosed(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	actions := []TicketAction{ActionCall, ActionComplete, ActionCancel, ActionSkip, ActionEscalate}
	for _, status := range []TicketStatus{TicketStatusCompleted, TicketStatusCancelled, TicketStatusSkipped} {
		for _, action := range actions {
			ticket := Ticket{ID: "t1", Status: status, Priority: TicketPriorityNormal}
			next, changed, err := ApplyAction(ticket, action, now)
			if changed {
				t.Fatalf("%s from %s changed the ticket", action, status)
			}
			if next.Status != status {
				t.Fatalf("%s from %s moved status to %s", action, status, next.Status)
			}
			if transitionMap[action].to == status && action != ActionEscalate {
				if err != nil {
					t.Fatalf("repeating %s on %s should be a no-op, got %v", action, status, err)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s from %s: expected ErrInvalidTransition, got %v", action, status, err)
			}
		}
	}
}

func TestApplyActionSetsTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ticket := Ticket{ID: "t1", Status: TicketStatusWaiting, Priority: TicketPriorityNormal}

	called, changed, err := ApplyAction(ticket, ActionCall, now)
	if err != nil || !changed {
		t.Fatalf("call: changed=%v err=%v", changed, err)
	}
	if called.Status != TicketStatusServing || called.CalledAt == nil || called.ServedAt != nil {
		t.Fatalf("unexpected called ticket: %+v", called)
	}

	done, changed, err := ApplyAction(called, ActionComplete, now.Add(5*time.Minute))
	if err != nil || !changed {
		t.Fatalf("complete: changed=%v err=%v", changed, err)
	}
	if done.ServedAt == nil || !done.ServedAt.Equal(now.Add(5*time.Minute)) {
		t.Fatalf("served_at not set: %+v", done.ServedAt)
	}

	again, changed, err := ApplyAction(done, ActionComplete, now.Add(10*time.Minute))
	if err != nil || changed {
		t.Fatalf("second complete: changed=%v err=%v", changed, err)
	}
	if !again.ServedAt.Equal(*done.ServedAt) {
		t.Fatalf("second complete moved served_at")
	}
}

func TestApplyActionEscalate(t *testing.T) {
	now := time.Now()
	ticket := Ticket{ID: "t1", Status: TicketStatusWaiting, Priority: TicketPriorityNormal}

	next, changed, err := ApplyAction(ticket, ActionEscalate, now)
	if err != nil || !changed {
		t.Fatalf("escalate: changed=%v err=%v", changed, err)
	}
	if next.Priority != TicketPriorityEmergency || next.Status != TicketStatusWaiting {
		t.Fatalf("unexpected escalated ticket: %+v", next)
	}

	if _, changed, err := ApplyAction(next, ActionEscalate, now); err != nil || changed {
		t.Fatalf("re-escalate: changed=%v err=%v", changed, err)
	}

	serving := Ticket{ID: "t2", Status: TicketStatusServing, Priority: TicketPriorityNormal}
	if _, _, err := ApplyAction(serving, ActionEscalate, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("escalate serving: expected ErrInvalidTransition, got %v", err)
	}
}
