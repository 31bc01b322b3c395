package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/queue-engine/internal/domain"
)

// queryable is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DepartmentRepository reads department configuration.
type DepartmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Department, error)
	ListActive(ctx context.Context) ([]domain.Department, error)
}

type departmentRepository struct {
	pool *pgxpool.Pool
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepository{pool: pool}
}

const departmentSelect = `
        SELECT d.id, d.hospital_id, d.name, d.daily_capacity, d.avg_service_time_min,
               d.is_active, h.is_active, d.last_issued_token, d.counter_date, d.created_at, d.updated_at
        FROM departments d
        JOIN hospitals h ON h.id = d.hospital_id`

func (r *departmentRepository) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	dept, err := scanDepartment(r.pool.QueryRow(ctx, departmentSelect+` WHERE d.id=$1`, id))
	if err != nil {
		return nil, classify(err)
	}
	return dept, nil
}

func (r *departmentRepository) ListActive(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.pool.Query(ctx, departmentSelect+` WHERE d.is_active = TRUE AND h.is_active = TRUE ORDER BY d.name`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *dept)
	}
	return result, rows.Err()
}

func scanDepartment(row pgx.Row) (*domain.Department, error) {
	var dept domain.Department
	var counterDate *time.Time
	if err := row.Scan(
		&dept.ID,
		&dept.HospitalID,
		&dept.Name,
		&dept.DailyCapacity,
		&dept.AverageServiceTimeMin,
		&dept.IsActive,
		&dept.HospitalActive,
		&dept.LastIssuedToken,
		&counterDate,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if counterDate != nil {
		dept.CounterDate = *counterDate
	}
	return &dept, nil
}
