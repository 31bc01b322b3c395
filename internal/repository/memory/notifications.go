package memory

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/repository"
)

type notificationRepo struct{ s *Store }

func (r notificationRepo) Enqueue(_ context.Context, event *domain.NotificationEvent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.notifications {
		if existing.TicketID == event.TicketID && existing.Type == event.Type && existing.Status != domain.NotificationFailed {
			return false, nil
		}
	}
	r.s.notifications[event.ID] = *event
	r.s.order = append(r.s.order, event.ID)
	return true, nil
}

func (r notificationRepo) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]domain.NotificationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var due []domain.NotificationEvent
	for _, id := range r.s.order {
		event := r.s.notifications[id]
		if event.Status == domain.NotificationPending && !event.NextAttemptAt.After(now) {
			due = append(due, event)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		leased := r.s.notifications[due[i].ID]
		leased.NextAttemptAt = now.Add(lease)
		r.s.notifications[leased.ID] = leased
		due[i] = leased
	}
	return due, nil
}

func (r notificationRepo) MarkSent(_ context.Context, id string, attempt int, sentAt time.Time) error {
	return r.update(id, func(event *domain.NotificationEvent) {
		event.Status = domain.NotificationSent
		event.Attempt = attempt
		event.LastError = ""
		sent := sentAt
		event.SentAt = &sent
	})
}

func (r notificationRepo) MarkRetry(_ context.Context, id string, attempt int, lastError string, nextAttemptAt time.Time) error {
	return r.update(id, func(event *domain.NotificationEvent) {
		event.Status = domain.NotificationPending
		event.Attempt = attempt
		event.LastError = lastError
		event.NextAttemptAt = nextAttemptAt
	})
}

func (r notificationRepo) MarkFailed(_ context.Context, id string, attempt int, lastError string) error {
	return r.update(id, func(event *domain.NotificationEvent) {
		event.Status = domain.NotificationFailed
		event.Attempt = attempt
		event.LastError = lastError
	})
}

func (r notificationRepo) ListFailed(_ context.Context, limit int) ([]domain.NotificationEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.NotificationEvent
	for i := len(r.s.order) - 1; i >= 0 && len(result) < limit; i-- {
		event := r.s.notifications[r.s.order[i]]
		if event.Status == domain.NotificationFailed {
			result = append(result, event)
		}
	}
	return result, nil
}

func (r notificationRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.NotificationEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.NotificationEvent
	for _, id := range r.s.order {
		event := r.s.notifications[id]
		if event.TicketID == ticketID {
			result = append(result, event)
		}
	}
	return result, nil
}

func (r notificationRepo) update(id string, apply func(event *domain.NotificationEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event, ok := r.s.notifications[id]
	if !ok {
		return repository.ErrNotFound
	}
	apply(&event)
	r.s.notifications[id] = event
	return nil
}
