package events

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/queue-engine/internal/domain"
)

func TestPublishContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var calls []string
	d.Subscribe(EventTicketIssued, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventTicketIssued, func(_ context.Context, e Event) error {
		calls = append(calls, "second")
		ticket, ok := TicketFromPayload(e.Payload)
		if !ok || ticket.TokenNumber != 7 {
			t.Errorf("unexpected payload %#v", e.Payload)
		}
		return nil
	})
	d.Subscribe(EventTicketCalled, func(context.Context, Event) error {
		calls = append(calls, "unrelated")
		return nil
	})

	err := d.Publish(context.Background(), Event{
		Type:    EventTicketIssued,
		Payload: TicketPayload{Ticket: domain.Ticket{TokenNumber: 7}},
	})
	if err != nil {
		t.Fatalf("Publish returned %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestPublishRecoversHandlerPanic(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	reached := false
	d.Subscribe(EventTicketCancelled, func(context.Context, Event) error {
		panic("nil recipient")
	})
	d.Subscribe(EventTicketCancelled, func(context.Context, Event) error {
		reached = true
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventTicketCancelled}); err != nil {
		t.Fatalf("Publish returned %v", err)
	}
	if !reached {
		t.Fatalf("second handler was not invoked after a panic")
	}
}
