package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// NotificationRepository persists notification events and their delivery state.
type NotificationRepository interface {
	// Enqueue stores a PENDING event. It returns false without writing when a
	// PENDING or SENT event already exists for the same ticket and type.
	Enqueue(ctx context.Context, event *domain.NotificationEvent) (bool, error)
	// ClaimDue leases up to limit PENDING events whose next attempt is due,
	// pushing their next attempt out by lease so concurrent workers skip them.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.NotificationEvent, error)
	MarkSent(ctx context.Context, id string, attempt int, sentAt time.Time) error
	MarkRetry(ctx context.Context, id string, attempt int, lastError string, nextAttemptAt time.Time) error
	MarkFailed(ctx context.Context, id string, attempt int, lastError string) error
	ListFailed(ctx context.Context, limit int) ([]domain.NotificationEvent, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.NotificationEvent, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

const notificationColumns = `id, ticket_id, type, channel, recipient, message, status, attempt,
               COALESCE(last_error, ''), next_attempt_at, created_at, sent_at`

func (r *notificationRepository) Enqueue(ctx context.Context, event *domain.NotificationEvent) (bool, error) {
	const query = `
        INSERT INTO notification_events (id, ticket_id, type, channel, recipient, message, status, attempt, next_attempt_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (ticket_id, type) WHERE status <> 'FAILED' DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query,
		event.ID,
		event.TicketID,
		event.Type,
		event.Channel,
		event.Recipient,
		event.Message,
		event.Status,
		event.Attempt,
		event.NextAttemptAt,
		event.CreatedAt,
	)
	if err != nil {
		return false, classify(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *notificationRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.NotificationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        UPDATE notification_events SET next_attempt_at = $2
        WHERE id IN (
            SELECT id FROM notification_events
            WHERE status = 'PENDING' AND next_attempt_at <= $1
            ORDER BY next_attempt_at
            LIMIT $3
            FOR UPDATE SKIP LOCKED
        )
        RETURNING ` + notificationColumns
	rows, err := r.pool.Query(ctx, query, now, now.Add(lease), limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *notificationRepository) MarkSent(ctx context.Context, id string, attempt int, sentAt time.Time) error {
	const query = `
        UPDATE notification_events SET status='SENT', attempt=$2, sent_at=$3, last_error=NULL
        WHERE id=$1`
	return r.exec(ctx, query, id, attempt, sentAt)
}

func (r *notificationRepository) MarkRetry(ctx context.Context, id string, attempt int, lastError string, nextAttemptAt time.Time) error {
	const query = `
        UPDATE notification_events SET status='PENDING', attempt=$2, last_error=$3, next_attempt_at=$4
        WHERE id=$1`
	return r.exec(ctx, query, id, attempt, lastError, nextAttemptAt)
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id string, attempt int, lastError string) error {
	const query = `
        UPDATE notification_events SET status='FAILED', attempt=$2, last_error=$3
        WHERE id=$1`
	return r.exec(ctx, query, id, attempt, lastError)
}

func (r *notificationRepository) ListFailed(ctx context.Context, limit int) ([]domain.NotificationEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notification_events
        WHERE status='FAILED' ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *notificationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.NotificationEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notification_events
        WHERE ticket_id=$1 ORDER BY created_at`, ticketID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *notificationRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanNotifications(rows pgx.Rows) ([]domain.NotificationEvent, error) {
	var result []domain.NotificationEvent
	for rows.Next() {
		var event domain.NotificationEvent
		if err := rows.Scan(
			&event.ID,
			&event.TicketID,
			&event.Type,
			&event.Channel,
			&event.Recipient,
			&event.Message,
			&event.Status,
			&event.Attempt,
			&event.LastError,
			&event.NextAttemptAt,
			&event.CreatedAt,
			&event.SentAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
