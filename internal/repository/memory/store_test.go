package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/repository"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newStore() *Store {
	s := NewStore()
	s.PutHospital("hosp-1", true)
	s.PutDepartment(domain.Department{ID: "dept-a", HospitalID: "hosp-1", Name: "ENT", DailyCapacity: 10, IsActive: true})
	return s
}

func TestFailedTransactionLeavesNoTrace(t *testing.T) {
	s := newStore()
	boom := errors.New("boom")

	err := s.Queue().WithDepartmentLock(t.Context(), "dept-a", func(ctx context.Context, tx repository.DepartmentTx) error {
		if err := tx.SaveCounter(ctx, 1, day); err != nil {
			return err
		}
		if err := tx.InsertTicket(ctx, &domain.Ticket{ID: "t1", DepartmentID: "dept-a", ServiceDate: day, TokenNumber: 1, Status: domain.TicketStatusWaiting}); err != nil {
			return err
		}
		head, err := tx.HeadOfQueue(ctx)
		if err != nil || head.ID != "t1" {
			t.Fatalf("staged insert not visible inside transaction: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}

	dept, _ := s.Departments().GetByID(t.Context(), "dept-a")
	if dept.LastIssuedToken != 0 || !dept.CounterDate.IsZero() {
		t.Fatalf("counter written by rolled back transaction: %+v", dept)
	}
	if _, err := s.Tickets().GetByID(t.Context(), "t1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("ticket written by rolled back transaction: %v", err)
	}
}

func TestDuplicateTokenRejectedAtCommit(t *testing.T) {
	s := newStore()
	insert := func(id string) error {
		return s.Queue().WithDepartmentLock(t.Context(), "dept-a", func(ctx context.Context, tx repository.DepartmentTx) error {
			return tx.InsertTicket(ctx, &domain.Ticket{ID: id, DepartmentID: "dept-a", ServiceDate: day, TokenNumber: 1, Status: domain.TicketStatusWaiting})
		})
	}
	if err := insert("t1"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insert("t2"); err == nil {
		t.Fatalf("expected duplicate token error")
	}
}

func TestLockWaitHonorsContext(t *testing.T) {
	s := newStore()
	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.Queue().WithDepartmentLock(context.Background(), "dept-a", func(context.Context, repository.DepartmentTx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	err := s.Queue().WithDepartmentLock(ctx, "dept-a", func(context.Context, repository.DepartmentTx) error {
		t.Fatalf("lock acquired while held")
		return nil
	})
	if !errors.Is(err, repository.ErrContention) || !repository.IsRetryable(err) {
		t.Fatalf("expected contention error, got %v", err)
	}
}

func TestUpdateIfUnchangedDetectsStaleTicket(t *testing.T) {
	s := newStore()
	ticket := domain.Ticket{ID: "t1", DepartmentID: "dept-a", ServiceDate: day, TokenNumber: 1, Status: domain.TicketStatusWaiting, Priority: domain.TicketPriorityNormal}
	if err := s.Queue().WithDepartmentLock(t.Context(), "dept-a", func(ctx context.Context, tx repository.DepartmentTx) error {
		return tx.InsertTicket(ctx, &ticket)
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	cancelled := ticket
	cancelled.Status = domain.TicketStatusCancelled
	if err := s.Tickets().UpdateIfUnchanged(t.Context(), &cancelled, ticket); err != nil {
		t.Fatalf("first update: %v", err)
	}
	skipped := ticket
	skipped.Status = domain.TicketStatusSkipped
	if err := s.Tickets().UpdateIfUnchanged(t.Context(), &skipped, ticket); !errors.Is(err, repository.ErrStaleTicket) {
		t.Fatalf("expected ErrStaleTicket, got %v", err)
	}
	missing := ticket
	missing.ID = "nope"
	if err := s.Tickets().UpdateIfUnchanged(t.Context(), &missing, ticket); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
