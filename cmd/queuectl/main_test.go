package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/api/dto"
	"github.com/spec-kit/queue-engine/internal/config"
	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/repository/memory"
	"github.com/spec-kit/queue-engine/internal/service"
)

func newTestEngine(t *testing.T) *service.QueueEngine {
	t.Helper()
	store := memory.NewStore()
	store.PutHospital("h-1", true)
	store.PutDepartment(domain.Department{
		ID:                    "cardio",
		HospitalID:            "h-1",
		Name:                  "Cardiology",
		DailyCapacity:         10,
		AverageServiceTimeMin: 15,
		IsActive:              true,
	})
	return service.Wire(service.Options{
		Stores: service.Stores{
			Departments:   store.Departments(),
			Tickets:       store.Tickets(),
			Notifications: store.Notifications(),
			Queue:         store.Queue(),
		},
		Retry:    service.RetryPolicy{MaxAttempts: 2, Initial: time.Millisecond, Max: time.Millisecond},
		Location: time.UTC,
	}).Engine
}

func TestExecuteBookCallAndComplete(t *testing.T) {
	ctx := t.Context()
	engine := newTestEngine(t)

	result, err := execute(ctx, engine, "book", commandArgs{departmentID: "cardio", patientID: "p-1"})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	booking := result.(dto.BookingResponse)
	if booking.Ticket.TokenNumber != 1 || booking.Position != 1 || booking.EstimatedWaitMinutes != 15 {
		t.Fatalf("unexpected booking %+v", booking)
	}

	result, err = execute(ctx, engine, "call-next", commandArgs{departmentID: "cardio"})
	if err != nil {
		t.Fatalf("call-next: %v", err)
	}
	if called := result.(dto.TicketResponse); called.Status != domain.TicketStatusServing {
		t.Fatalf("call-next status = %s", called.Status)
	}

	result, err = execute(ctx, engine, "complete", commandArgs{ticketID: booking.Ticket.ID})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done := result.(dto.TicketResponse); done.Status != domain.TicketStatusCompleted || done.ServedAt == nil {
		t.Fatalf("unexpected completed ticket %+v", done)
	}
}

func TestExecuteStatusRequiresTarget(t *testing.T) {
	_, err := execute(t.Context(), newTestEngine(t), "status", commandArgs{})
	var exit *exitError
	if !errors.As(err, &exit) || exit.code != 2 {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestDescribePreconditionErrors(t *testing.T) {
	engine := newTestEngine(t)
	_, err := execute(t.Context(), engine, "call-next", commandArgs{departmentID: "cardio"})
	if err == nil {
		t.Fatalf("expected queue empty error")
	}
	described := describe(err)
	var exit *exitError
	if !errors.As(described, &exit) || exit.code != 3 {
		t.Fatalf("expected exit code 3, got %v", described)
	}
	if !strings.Contains(described.Error(), "QUEUE_EMPTY") {
		t.Fatalf("message %q does not name the code", described.Error())
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"reboot"}, &out); err == nil {
		t.Fatalf("expected error for unknown command")
	}
	out.Reset()
	if err := run(context.Background(), []string{"--help"}, &out); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out.String(), "call-next") {
		t.Fatalf("usage not printed: %q", out.String())
	}
}

func TestOpenDepartmentCacheSkipsMissingRedis(t *testing.T) {
	cache, closeCache := openDepartmentCache(t.Context(), config.RedisConfig{}, zap.NewNop())
	defer closeCache()
	if cache != nil {
		t.Fatalf("expected no cache without REDIS_ADDR, got %T", cache)
	}

	cache, closeUnreachable := openDepartmentCache(t.Context(), config.RedisConfig{Addr: "127.0.0.1:1"}, zap.NewNop())
	defer closeUnreachable()
	if cache != nil {
		t.Fatalf("expected no cache when redis does not answer, got %T", cache)
	}
}
