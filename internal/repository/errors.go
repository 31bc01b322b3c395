package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a department, ticket or notification id does not resolve.
	ErrNotFound = errors.New("record not found")
	// ErrStaleTicket is returned when a ticket changed between read and conditional write.
	ErrStaleTicket = errors.New("ticket changed concurrently")
	// ErrContention marks lock waits, deadlocks and serialization failures that are safe to retry.
	ErrContention = errors.New("transaction contention")
)

// postgres SQLSTATE codes treated as contention
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
)

// IsRetryable reports whether err is a contention failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrContention) || errors.Is(err, ErrStaleTicket)
}

// classify maps driver errors onto repository sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
			return fmt.Errorf("%w: %s", ErrContention, pgErr.Message)
		}
	}
	return err
}
