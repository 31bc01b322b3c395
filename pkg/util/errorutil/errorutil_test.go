package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestDomainErrorMatchesByCode(t *testing.T) {
	sentinel := NewPrecondition(CodeCapacityExceeded, "full", nil)
	detailed := NewPrecondition(CodeCapacityExceeded, "full", map[string]any{"department_id": "d-1"})
	wrapped := fmt.Errorf("book: %w", detailed)

	if !errors.Is(wrapped, sentinel) {
		t.Fatalf("expected wrapped error to match sentinel by code")
	}
	if errors.Is(wrapped, NewPrecondition(CodeQueueEmpty, "empty", nil)) {
		t.Fatalf("different codes must not match")
	}
	if !HasCode(wrapped, CodeCapacityExceeded) || HasCode(errors.New("plain"), CodeCapacityExceeded) {
		t.Fatalf("HasCode mismatch")
	}
}

func TestToDomainError(t *testing.T) {
	if ToDomainError(nil) != nil {
		t.Fatalf("nil error must stay nil")
	}

	cause := errors.New("deadlock detected")
	transient := NewTransient(CodeBookingFailed, cause)
	got := ToDomainError(fmt.Errorf("wrap: %w", transient))
	if got.Code != CodeBookingFailed || got.HTTPStatus != http.StatusServiceUnavailable {
		t.Fatalf("unexpected %+v", got)
	}
	if !errors.Is(got, cause) {
		t.Fatalf("transient error must unwrap to its cause")
	}

	internal := ToDomainError(cause)
	if internal.Code != CodeInternal || internal.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected %+v", internal)
	}
}

func TestNotFoundMessage(t *testing.T) {
	err := ToDomainError(NewNotFound("ticket", nil))
	if err.Message != "ticket not found" || err.HTTPStatus != http.StatusNotFound {
		t.Fatalf("unexpected %+v", err)
	}
	if err.Details == nil {
		t.Fatalf("details must be initialized")
	}
}
