package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// DepartmentTx is the set of writes available while a department row is locked.
// Nothing written through it is visible to other callers until the enclosing
// QueueStore.WithDepartmentLock call returns nil.
type DepartmentTx interface {
	// Department returns the locked department row as read at lock time.
	Department() domain.Department
	SaveCounter(ctx context.Context, lastIssued int, day time.Time) error
	InsertTicket(ctx context.Context, ticket *domain.Ticket) error
	// HeadOfQueue returns the next WAITING ticket in queue order or ErrNotFound.
	HeadOfQueue(ctx context.Context) (*domain.Ticket, error)
	UpdateTicket(ctx context.Context, next *domain.Ticket, expected domain.Ticket) error
}

// QueueStore runs fn inside a transaction holding an exclusive lock on one department row.
// Any error from fn rolls back every write made through the DepartmentTx.
type QueueStore interface {
	WithDepartmentLock(ctx context.Context, departmentID string, fn func(ctx context.Context, tx DepartmentTx) error) error
}

// QueueStoreOptions tunes the postgres queue store.
type QueueStoreOptions struct {
	// LockTimeout bounds how long a transaction waits for the department row lock.
	LockTimeout time.Duration
	// Serializable runs department transactions at SERIALIZABLE instead of READ COMMITTED.
	Serializable bool
}

type queueStore struct {
	pool *pgxpool.Pool
	opts QueueStoreOptions
}

// NewQueueStore builds the postgres implementation of QueueStore.
func NewQueueStore(pool *pgxpool.Pool, opts QueueStoreOptions) QueueStore {
	return &queueStore{pool: pool, opts: opts}
}

func (s *queueStore) WithDepartmentLock(ctx context.Context, departmentID string, fn func(ctx context.Context, tx DepartmentTx) error) (err error) {
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	if s.opts.Serializable {
		txOpts.IsoLevel = pgx.Serializable
	}
	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if s.opts.LockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.opts.LockTimeout.Milliseconds())
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return classify(err)
		}
	}

	dept, err := scanDepartment(tx.QueryRow(ctx, departmentSelect+` WHERE d.id=$1 FOR UPDATE OF d`, departmentID))
	if err != nil {
		return classify(err)
	}

	if err = fn(ctx, &departmentTx{tx: tx, dept: *dept}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

type departmentTx struct {
	tx   pgx.Tx
	dept domain.Department
}

func (t *departmentTx) Department() domain.Department {
	return t.dept
}

func (t *departmentTx) SaveCounter(ctx context.Context, lastIssued int, day time.Time) error {
	const query = `
        UPDATE departments SET last_issued_token=$1, counter_date=$2, updated_at=NOW()
        WHERE id=$3`
	if _, err := t.tx.Exec(ctx, query, lastIssued, day, t.dept.ID); err != nil {
		return classify(err)
	}
	t.dept.LastIssuedToken = lastIssued
	t.dept.CounterDate = day
	return nil
}

func (t *departmentTx) InsertTicket(ctx context.Context, ticket *domain.Ticket) error {
	return insertTicket(ctx, t.tx, ticket)
}

func (t *departmentTx) HeadOfQueue(ctx context.Context) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE department_id=$1 AND status='WAITING' ` + queueOrder + `
        LIMIT 1
        FOR UPDATE`
	ticket, err := scanTicket(t.tx.QueryRow(ctx, query, t.dept.ID))
	if err != nil {
		return nil, classify(err)
	}
	return ticket, nil
}

func (t *departmentTx) UpdateTicket(ctx context.Context, next *domain.Ticket, expected domain.Ticket) error {
	return updateTicketIfUnchanged(ctx, t.tx, next, expected)
}
