package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// TicketRepository encapsulates ticket reads and single-row conditional writes.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// ListWaiting returns the WAITING tickets of a department in queue order.
	ListWaiting(ctx context.Context, departmentID string) ([]domain.Ticket, error)
	// LatestServing returns the most recently called SERVING ticket of a department.
	LatestServing(ctx context.Context, departmentID string) (*domain.Ticket, error)
	// UpdateIfUnchanged writes next only if the stored row still has expected's
	// status and priority; otherwise it returns ErrStaleTicket.
	UpdateIfUnchanged(ctx context.Context, next *domain.Ticket, expected domain.Ticket) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, patient_id, hospital_id, department_id, service_date, token_number,
               status, priority, notes, created_at, updated_at, called_at, served_at`

const queueOrder = `ORDER BY CASE priority WHEN 'EMERGENCY' THEN 0 ELSE 1 END, service_date, token_number`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return getTicket(ctx, r.pool, id)
}

func (r *ticketRepository) ListWaiting(ctx context.Context, departmentID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE department_id=$1 AND status='WAITING' ` + queueOrder
	rows, err := r.pool.Query(ctx, query, departmentID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) LatestServing(ctx context.Context, departmentID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE department_id=$1 AND status='SERVING'
        ORDER BY called_at DESC NULLS LAST, token_number DESC
        LIMIT 1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, departmentID))
	if err != nil {
		return nil, classify(err)
	}
	return ticket, nil
}

func (r *ticketRepository) UpdateIfUnchanged(ctx context.Context, next *domain.Ticket, expected domain.Ticket) error {
	return updateTicketIfUnchanged(ctx, r.pool, next, expected)
}

func getTicket(ctx context.Context, q queryable, id string) (*domain.Ticket, error) {
	ticket, err := scanTicket(q.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id))
	if err != nil {
		return nil, classify(err)
	}
	return ticket, nil
}

func insertTicket(ctx context.Context, q queryable, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, patient_id, hospital_id, department_id, service_date, token_number,
                             status, priority, notes, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := q.Exec(ctx, query,
		ticket.ID,
		ticket.PatientID,
		ticket.HospitalID,
		ticket.DepartmentID,
		ticket.ServiceDate,
		ticket.TokenNumber,
		ticket.Status,
		ticket.Priority,
		ticket.Notes,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return classify(err)
}

func updateTicketIfUnchanged(ctx context.Context, q queryable, next *domain.Ticket, expected domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, priority=$2, called_at=$3, served_at=$4, updated_at=$5
        WHERE id=$6 AND status=$7 AND priority=$8`
	cmd, err := q.Exec(ctx, query,
		next.Status,
		next.Priority,
		next.CalledAt,
		next.ServedAt,
		next.UpdatedAt,
		next.ID,
		expected.Status,
		expected.Priority,
	)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		if _, err := getTicket(ctx, q, next.ID); err != nil {
			return err
		}
		return ErrStaleTicket
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.PatientID,
		&ticket.HospitalID,
		&ticket.DepartmentID,
		&ticket.ServiceDate,
		&ticket.TokenNumber,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Notes,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.CalledAt,
		&ticket.ServedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
