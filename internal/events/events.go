package events

import (
	"encoding/json"
	"fmt"

	"realtyhub/internal/models"
)

type Kind string

const (
	KindBookingCreated           Kind = "booking_created"
	KindBookingStatusChanged     Kind = "booking_status_changed"
	KindBookingCancelled         Kind = "booking_cancelled"
	KindJobAssigned              Kind = "job_assigned"
	KindJobStatusChanged         Kind = "job_status_changed"
	KindMaintenanceTicketUpdated Kind = "maintenance_ticket_updated"
)

// Kinds lists every kind the bus carries.
var Kinds = []Kind{
	KindBookingCreated,
	KindBookingStatusChanged,
	KindBookingCancelled,
	KindJobAssigned,
	KindJobStatusChanged,
	KindMaintenanceTicketUpdated,
}

// Event is a typed domain event. Implementations use value receivers so
// the kind can be read from a zero value.
type Event interface {
	EventKind() Kind
}

// BookingCreated is addressed to the property owner.
type BookingCreated struct {
	BookingID      int64              `json:"booking_id"`
	PropertyID     int64              `json:"property_id"`
	PropertyTitle  string             `json:"property_title,omitempty"`
	OwnerID        int64              `json:"owner_id"`
	BookingKind    models.BookingKind `json:"booking_kind"`
	RequesterID    *int64             `json:"requester_id,omitempty"`
	ContactName    string             `json:"contact_name"`
	ConversationID *int64             `json:"conversation_id,omitempty"`
}

func (BookingCreated) EventKind() Kind { return KindBookingCreated }

// BookingStatusChanged is addressed to the authenticated requester.
type BookingStatusChanged struct {
	BookingID     int64                `json:"booking_id"`
	PropertyID    int64                `json:"property_id"`
	PropertyTitle string               `json:"property_title,omitempty"`
	RecipientID   int64                `json:"recipient_id"`
	From          models.BookingStatus `json:"from"`
	To            models.BookingStatus `json:"to"`
	Note          string               `json:"note,omitempty"`
}

func (BookingStatusChanged) EventKind() Kind { return KindBookingStatusChanged }

// BookingCancelled is addressed to the property owner.
type BookingCancelled struct {
	BookingID     int64  `json:"booking_id"`
	PropertyID    int64  `json:"property_id"`
	PropertyTitle string `json:"property_title,omitempty"`
	OwnerID       int64  `json:"owner_id"`
	ContactName   string `json:"contact_name"`
	ByGuest       bool   `json:"by_guest"`
}

func (BookingCancelled) EventKind() Kind { return KindBookingCancelled }

type JobAssigned struct {
	JobID      int64  `json:"job_id"`
	AssigneeID int64  `json:"assignee_id"`
	PropertyID *int64 `json:"property_id,omitempty"`
	Title      string `json:"title"`
}

func (JobAssigned) EventKind() Kind { return KindJobAssigned }

type JobStatusChanged struct {
	JobID       int64  `json:"job_id"`
	RecipientID int64  `json:"recipient_id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
}

func (JobStatusChanged) EventKind() Kind { return KindJobStatusChanged }

type MaintenanceTicketUpdated struct {
	TicketID    int64  `json:"ticket_id"`
	RecipientID int64  `json:"recipient_id"`
	PropertyID  *int64 `json:"property_id,omitempty"`
	Status      string `json:"status"`
	Summary     string `json:"summary"`
}

func (MaintenanceTicketUpdated) EventKind() Kind { return KindMaintenanceTicketUpdated }

// Recipient returns the user an event is addressed to and the payload
// field that names them.
func Recipient(event Event) (int64, string) {
	switch e := event.(type) {
	case BookingCreated:
		return e.OwnerID, "owner_id"
	case BookingStatusChanged:
		return e.RecipientID, "recipient_id"
	case BookingCancelled:
		return e.OwnerID, "owner_id"
	case JobAssigned:
		return e.AssigneeID, "assignee_id"
	case JobStatusChanged:
		return e.RecipientID, "recipient_id"
	case MaintenanceTicketUpdated:
		return e.RecipientID, "recipient_id"
	}
	return 0, "recipient_id"
}

// Validate rejects events that no listener could deliver.
func Validate(event Event) error {
	if event == nil {
		return models.Invalid("event", "is required")
	}
	if id, field := Recipient(event); id <= 0 {
		return models.Invalid("payload."+field, "is required")
	}
	return nil
}

// Decode rebuilds a typed event from its kind and JSON payload.
func Decode(kind Kind, raw []byte) (Event, error) {
	var (
		event Event
		err   error
	)
	switch kind {
	case KindBookingCreated:
		var e BookingCreated
		err = json.Unmarshal(raw, &e)
		event = e
	case KindBookingStatusChanged:
		var e BookingStatusChanged
		err = json.Unmarshal(raw, &e)
		event = e
	case KindBookingCancelled:
		var e BookingCancelled
		err = json.Unmarshal(raw, &e)
		event = e
	case KindJobAssigned:
		var e JobAssigned
		err = json.Unmarshal(raw, &e)
		event = e
	case KindJobStatusChanged:
		var e JobStatusChanged
		err = json.Unmarshal(raw, &e)
		event = e
	case KindMaintenanceTicketUpdated:
		var e MaintenanceTicketUpdated
		err = json.Unmarshal(raw, &e)
		event = e
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", kind, err)
	}
	return event, nil
}

// Encode is the inverse of Decode.
func Encode(event Event) (Kind, []byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s event: %w", event.EventKind(), err)
	}
	return event.EventKind(), raw, nil
}
