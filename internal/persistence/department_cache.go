package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/queue-engine/internal/domain"
)

const departmentKeyPrefix = "queue:department:"

// DepartmentCache stores department configuration in Redis as JSON.
type DepartmentCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDepartmentCache returns nil when Redis is not configured.
func NewDepartmentCache(r *Redis, ttl time.Duration) *DepartmentCache {
	if r == nil || r.Client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DepartmentCache{client: r.Client, ttl: ttl}
}

// Get returns the cached department, if present.
func (c *DepartmentCache) Get(ctx context.Context, id string) (*domain.Department, bool, error) {
	raw, err := c.client.Get(ctx, departmentKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var dept domain.Department
	if err := json.Unmarshal(raw, &dept); err != nil {
		return nil, false, err
	}
	return &dept, true, nil
}

// Set caches the department for the configured TTL.
func (c *DepartmentCache) Set(ctx context.Context, dept domain.Department) error {
	raw, err := json.Marshal(dept)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, departmentKeyPrefix+dept.ID, raw, c.ttl).Err()
}

// Invalidate removes the cached department.
func (c *DepartmentCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, departmentKeyPrefix+id).Err()
}
