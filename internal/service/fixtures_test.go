package service

import (
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/repository/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingWaker struct {
	mu    sync.Mutex
	count int
}

func (w *countingWaker) Wake() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count++
}

type fixture struct {
	store *memory.Store
	clock *testClock
	c     *Components
}

func testDepartment(id string, capacity int) domain.Department {
	return domain.Department{
		ID:                    id,
		HospitalID:            "hosp-1",
		Name:                  "Cardiology",
		DailyCapacity:         capacity,
		AverageServiceTimeMin: 10,
		IsActive:              true,
	}
}

func newFixture(t *testing.T, depts ...domain.Department) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.PutHospital("hosp-1", true)
	for _, dept := range depts {
		store.PutDepartment(dept)
	}
	clock := newTestClock()
	c := Wire(Options{
		Stores: Stores{
			Departments:   store.Departments(),
			Tickets:       store.Tickets(),
			Notifications: store.Notifications(),
			Queue:         store.Queue(),
		},
		Retry:          RetryPolicy{MaxAttempts: 5, Initial: time.Millisecond, Max: 5 * time.Millisecond},
		Clock:          clock.Now,
		Location:       time.UTC,
		AheadPositions: 1,
	})
	return &fixture{store: store, clock: clock, c: c}
}

func (f *fixture) book(t *testing.T, departmentID, patientID string) *Booking {
	t.Helper()
	booking, err := f.c.Engine.BookTicket(t.Context(), IssueInput{PatientID: patientID, DepartmentID: departmentID})
	if err != nil {
		t.Fatalf("BookTicket(%s, %s): %v", departmentID, patientID, err)
	}
	return booking
}
