package models

import "time"

// AvailabilityBlock is an owner-declared period during which a property is
// unbookable. Start and End are both blocked.
type AvailabilityBlock struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Reason     string    `json:"reason,omitempty"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type HoldSource string

const (
	HoldBlock   HoldSource = "block"
	HoldBooking HoldSource = "booking"
)

// Hold is one committed range in the availability index.
type Hold struct {
	ID         int64      `json:"id"`
	PropertyID int64      `json:"property_id"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	Source     HoldSource `json:"source"`
	BookingID  *int64     `json:"booking_id,omitempty"`
	BlockID    *int64     `json:"block_id,omitempty"`
}

// SideEffectFailure is an internal journal row for an effect that failed
// after a booking write. It is never returned to API callers.
type SideEffectFailure struct {
	ID          int64      `json:"id"`
	BookingID   int64      `json:"booking_id"`
	Effect      string     `json:"effect"`
	EventKind   string     `json:"event_kind,omitempty"`
	Payload     string     `json:"payload,omitempty"`
	LastError   string     `json:"last_error"`
	Attempts    int        `json:"attempts"`
	Status      string     `json:"status"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
