// Package availability decides whether a candidate range of calendar days
// collides with the commitments already held for a property.
package availability

import (
	"fmt"
	"time"

	"realtyhub/internal/models"
)

// DateRange is a closed interval of UTC calendar days: Start and End are
// both part of the range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange normalizes both ends to calendar days and rejects End < Start.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: models.Day(start), End: models.Day(end)}
	if start.IsZero() {
		return DateRange{}, models.Invalid("start", "is required")
	}
	if end.IsZero() {
		return DateRange{}, models.Invalid("end", "is required")
	}
	if r.End.Before(r.Start) {
		return DateRange{}, models.Invalid("end", "must not be before start")
	}
	return r, nil
}

// Overlaps implements the inclusive rule: [a,b] and [c,d] conflict iff
// a <= d and c <= b. A range ending on day N conflicts with one starting
// on day N.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.Start.After(o.End) && !o.Start.After(r.End)
}

func (r DateRange) Contains(day time.Time) bool {
	d := models.Day(day)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days counts the calendar days covered, both ends included.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s]", r.Start.Format(models.DateLayout), r.End.Format(models.DateLayout))
}

// FromHold returns the range of an index row.
func FromHold(h models.Hold) DateRange {
	return DateRange{Start: models.Day(h.Start), End: models.Day(h.End)}
}

// Conflicting returns the holds overlapping candidate.
func Conflicting(candidate DateRange, holds []models.Hold) []models.Hold {
	var out []models.Hold
	for _, h := range holds {
		if FromHold(h).Overlaps(candidate) {
			out = append(out, h)
		}
	}
	return out
}
