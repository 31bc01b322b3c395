package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/queue-engine/internal/domain"
	"github.com/spec-kit/queue-engine/internal/repository"
)

// DepartmentCache is a read-through cache of department configuration.
type DepartmentCache interface {
	Get(ctx context.Context, id string) (*domain.Department, bool, error)
	Set(ctx context.Context, dept domain.Department) error
	Invalidate(ctx context.Context, id string) error
}

// DepartmentRegistry answers department lookups for the other queue components.
// It never mutates department rows.
type DepartmentRegistry struct {
	departments repository.DepartmentRepository
	cache       DepartmentCache
	clock       func() time.Time
	location    *time.Location
	logger      *zap.Logger
}

// RegistryDependencies bundles registry collaborators.
type RegistryDependencies struct {
	DepartmentRepo repository.DepartmentRepository
	// Cache is optional.
	Cache    DepartmentCache
	Clock    func() time.Time
	Location *time.Location
	Logger   *zap.Logger
}

// NewDepartmentRegistry constructs the registry.
func NewDepartmentRegistry(deps RegistryDependencies) *DepartmentRegistry {
	r := &DepartmentRegistry{
		departments: deps.DepartmentRepo,
		cache:       deps.Cache,
		clock:       deps.Clock,
		location:    deps.Location,
		logger:      deps.Logger,
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.location == nil {
		r.location = time.UTC
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// GetDepartment returns the department or ErrDepartmentNotFound.
func (r *DepartmentRegistry) GetDepartment(ctx context.Context, id string) (*domain.Department, error) {
	if r.cache != nil {
		dept, ok, err := r.cache.Get(ctx, id)
		if err != nil {
			r.logger.Warn("department cache read failed", zap.String("department_id", id), zap.Error(err))
		} else if ok {
			return dept, nil
		}
	}

	dept, err := r.departments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDepartmentNotFound
		}
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, *dept); err != nil {
			r.logger.Warn("department cache write failed", zap.String("department_id", id), zap.Error(err))
		}
	}
	return dept, nil
}

// ListActive returns bookable-in-principle departments of active hospitals.
func (r *DepartmentRegistry) ListActive(ctx context.Context) ([]domain.Department, error) {
	return r.departments.ListActive(ctx)
}

// IsBookable reports whether the department accepts a booking for today.
// The answer is advisory; the sequencer re-checks under the department lock.
func (r *DepartmentRegistry) IsBookable(dept domain.Department) bool {
	return dept.Bookable(r.Today())
}

// Today returns the current operational day.
func (r *DepartmentRegistry) Today() time.Time {
	return domain.ServiceDay(r.clock(), r.location)
}

// Invalidate drops a cached department after its counter changed.
func (r *DepartmentRegistry) Invalidate(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, id); err != nil {
		r.logger.Warn("department cache invalidate failed", zap.String("department_id", id), zap.Error(err))
	}
}
