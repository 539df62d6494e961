package availability

import (
	"context"
	"fmt"
	"time"

	"realtyhub/internal/domain"
	"realtyhub/internal/models"
)

// Checker answers conflict queries against an availability index. It
// performs no writes.
type Checker struct {
	index domain.AvailabilityIndex
}

func NewChecker(index domain.AvailabilityIndex) *Checker {
	return &Checker{index: index}
}

// HasConflict reports whether [start, end] intersects any block or held
// stay of the property.
func (c *Checker) HasConflict(ctx context.Context, propertyID int64, start, end time.Time) (bool, error) {
	conflicts, err := c.Conflicts(ctx, propertyID, start, end)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// Conflicts returns the holds that collide with [start, end].
func (c *Checker) Conflicts(ctx context.Context, propertyID int64, start, end time.Time) ([]models.Hold, error) {
	candidate, err := NewDateRange(start, end)
	if err != nil {
		return nil, err
	}
	holds, err := c.index.Holds(ctx, propertyID, candidate.Start, candidate.End)
	if err != nil {
		return nil, fmt.Errorf("load holds for property %d: %w", propertyID, err)
	}
	return Conflicting(candidate, holds), nil
}
