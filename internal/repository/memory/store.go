// Package memory holds an in-process implementation of the repository
// interfaces. It is the sole-writer backend: per-department mutual exclusion
// comes from an in-process lock instead of a database row lock, so it must not
// be shared across engine instances.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/repository"
)

// Store keeps departments, tickets and notification events in memory.
type Store struct {
	mu            sync.RWMutex
	hospitals     map[string]bool
	departments   map[string]domain.Department
	tickets       map[string]domain.Ticket
	notifications map[string]domain.NotificationEvent
	order         []string

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		hospitals:     make(map[string]bool),
		departments:   make(map[string]domain.Department),
		tickets:       make(map[string]domain.Ticket),
		notifications: make(map[string]domain.NotificationEvent),
		locks:         make(map[string]chan struct{}),
	}
}

// PutHospital registers or updates a hospital's active flag.
func (s *Store) PutHospital(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hospitals[id] = active
}

// PutDepartment registers or replaces a department.
func (s *Store) PutDepartment(dept domain.Department) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hospitals[dept.HospitalID]; !ok {
		s.hospitals[dept.HospitalID] = true
	}
	s.departments[dept.ID] = dept
}

// Departments returns the department repository view of the store.
func (s *Store) Departments() repository.DepartmentRepository { return departmentRepo{s} }

// Tickets returns the ticket repository view of the store.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Notifications returns the notification repository view of the store.
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }

// Queue returns the department-locking transaction view of the store.
func (s *Store) Queue() repository.QueueStore { return queueStore{s} }

func (s *Store) department(id string) (domain.Department, bool) {
	dept, ok := s.departments[id]
	if !ok {
		return domain.Department{}, false
	}
	dept.HospitalActive = s.hospitals[dept.HospitalID]
	return dept, true
}

func (s *Store) lockFor(departmentID string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[departmentID]
	if !ok {
		lock = make(chan struct{}, 1)
		s.locks[departmentID] = lock
	}
	return lock
}

type departmentRepo struct{ s *Store }

func (r departmentRepo) GetByID(_ context.Context, id string) (*domain.Department, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	dept, ok := r.s.department(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &dept, nil
}

func (r departmentRepo) ListActive(_ context.Context) ([]domain.Department, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Department
	for id := range r.s.departments {
		dept, _ := r.s.department(id)
		if dept.IsActive && dept.HospitalActive {
			result = append(result, dept)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ticket, nil
}

func (r ticketRepo) ListWaiting(_ context.Context, departmentID string) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.waiting(departmentID, nil), nil
}

func (r ticketRepo) LatestServing(_ context.Context, departmentID string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *domain.Ticket
	for _, ticket := range r.s.tickets {
		if ticket.DepartmentID != departmentID || ticket.Status != domain.TicketStatusServing {
			continue
		}
		candidate := ticket
		if latest == nil || calledAfter(candidate, *latest) {
			latest = &candidate
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r ticketRepo) UpdateIfUnchanged(_ context.Context, next *domain.Ticket, expected domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkUnchanged(next.ID, expected); err != nil {
		return err
	}
	r.s.tickets[next.ID] = *next
	return nil
}

// waiting returns WAITING tickets of a department in queue order, with staged
// overrides applied on top of committed rows. Callers hold s.mu.
func (s *Store) waiting(departmentID string, staged map[string]domain.Ticket) []domain.Ticket {
	var result []domain.Ticket
	for id, ticket := range s.tickets {
		if override, ok := staged[id]; ok {
			ticket = override
		}
		if ticket.DepartmentID == departmentID && ticket.Status == domain.TicketStatusWaiting {
			result = append(result, ticket)
		}
	}
	for id, ticket := range staged {
		if _, committed := s.tickets[id]; committed {
			continue
		}
		if ticket.DepartmentID == departmentID && ticket.Status == domain.TicketStatusWaiting {
			result = append(result, ticket)
		}
	}
	domain.SortQueue(result)
	return result
}

// checkUnchanged verifies the optimistic precondition. Callers hold s.mu.
func (s *Store) checkUnchanged(id string, expected domain.Ticket) error {
	current, ok := s.tickets[id]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != expected.Status || current.Priority != expected.Priority {
		return repository.ErrStaleTicket
	}
	return nil
}

func calledAfter(a, b domain.Ticket) bool {
	switch {
	case a.CalledAt == nil:
		return false
	case b.CalledAt == nil:
		return true
	case !a.CalledAt.Equal(*b.CalledAt):
		return a.CalledAt.After(*b.CalledAt)
	}
	return a.TokenNumber > b.TokenNumber
}

type queueStore struct{ s *Store }

func (q queueStore) WithDepartmentLock(ctx context.Context, departmentID string, fn func(ctx context.Context, tx repository.DepartmentTx) error) error {
	lock := q.s.lockFor(departmentID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", repository.ErrContention, ctx.Err())
	}
	defer func() { <-lock }()

	q.s.mu.RLock()
	dept, ok := q.s.department(departmentID)
	q.s.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}

	tx := &departmentTx{
		s:       q.s,
		dept:    dept,
		staged:  make(map[string]domain.Ticket),
		expects: make(map[string]domain.Ticket),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

type departmentTx struct {
	s            *Store
	dept         domain.Department
	counterDirty bool
	inserts      []string
	staged       map[string]domain.Ticket
	expects      map[string]domain.Ticket
}

func (t *departmentTx) Department() domain.Department { return t.dept }

func (t *departmentTx) SaveCounter(_ context.Context, lastIssued int, day time.Time) error {
	t.dept.LastIssuedToken = lastIssued
	t.dept.CounterDate = day
	t.counterDirty = true
	return nil
}

func (t *departmentTx) InsertTicket(_ context.Context, ticket *domain.Ticket) error {
	if _, exists := t.staged[ticket.ID]; exists {
		return fmt.Errorf("duplicate ticket id %s", ticket.ID)
	}
	t.staged[ticket.ID] = *ticket
	t.inserts = append(t.inserts, ticket.ID)
	return nil
}

func (t *departmentTx) HeadOfQueue(_ context.Context) (*domain.Ticket, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	queue := t.s.waiting(t.dept.ID, t.staged)
	if len(queue) == 0 {
		return nil, repository.ErrNotFound
	}
	head := queue[0]
	return &head, nil
}

func (t *departmentTx) UpdateTicket(_ context.Context, next *domain.Ticket, expected domain.Ticket) error {
	if staged, ok := t.staged[next.ID]; ok {
		if staged.Status != expected.Status || staged.Priority != expected.Priority {
			return repository.ErrStaleTicket
		}
	} else {
		t.s.mu.RLock()
		err := t.s.checkUnchanged(next.ID, expected)
		t.s.mu.RUnlock()
		if err != nil {
			return err
		}
		t.expects[next.ID] = expected
	}
	t.staged[next.ID] = *next
	return nil
}

// commit validates every optimistic precondition and token uniqueness, then
// applies all staged writes at once.
func (t *departmentTx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for id, expected := range t.expects {
		if err := t.s.checkUnchanged(id, expected); err != nil {
			return err
		}
	}
	for _, id := range t.inserts {
		inserted := t.staged[id]
		for _, existing := range t.s.tickets {
			if existing.DepartmentID == inserted.DepartmentID &&
				domain.SameDay(existing.ServiceDate, inserted.ServiceDate) &&
				existing.TokenNumber == inserted.TokenNumber {
				return fmt.Errorf("token %d already issued for department %s", inserted.TokenNumber, inserted.DepartmentID)
			}
		}
	}

	if t.counterDirty {
		stored := t.s.departments[t.dept.ID]
		stored.LastIssuedToken = t.dept.LastIssuedToken
		stored.CounterDate = t.dept.CounterDate
		t.s.departments[t.dept.ID] = stored
	}
	for id, ticket := range t.staged {
		t.s.tickets[id] = ticket
	}
	return nil
}
