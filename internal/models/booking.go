package models

import (
	"encoding/json"
	"strings"
	"time"
)

type BookingKind string

const (
	KindViewing BookingKind = "viewing"
	KindInquiry BookingKind = "inquiry"
	KindStay    BookingKind = "stay"
)

func (k BookingKind) Valid() bool {
	switch k {
	case KindViewing, KindInquiry, KindStay:
		return true
	}
	return false
}

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
	StatusRejected  BookingStatus = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// ReleasesHold reports whether a stay in this status gives its dates back.
func (s BookingStatus) ReleasesHold() bool {
	return s == StatusCancelled || s == StatusRejected
}

// Contact is the submitter's contact triple, present for guests and users alike.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (c Contact) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Invalid("contact.name", "is required")
	}
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return Invalid("contact.email", "is required")
	}
	if at := strings.Index(email, "@"); at < 1 || at == len(email)-1 {
		return Invalid("contact.email", "is not a valid address")
	}
	if strings.TrimSpace(c.Phone) == "" {
		return Invalid("contact.phone", "is required")
	}
	return nil
}

type Payment struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
	Status string  `json:"status"`
}

type Booking struct {
	ID          int64         `json:"id"`
	PropertyID  int64         `json:"property_id"`
	RequesterID *int64        `json:"requester_id,omitempty"` // nil for guest submissions
	Kind        BookingKind   `json:"kind"`
	Status      BookingStatus `json:"status"`
	Contact     Contact       `json:"contact"`
	Payload     Payload       `json:"payload"`
	Payment     *Payment      `json:"payment,omitempty"`
	Message     string        `json:"message,omitempty"`
	Note        string        `json:"note,omitempty"`
	Version     int64         `json:"version"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsGuest reports whether the booking was submitted without authentication.
func (b *Booking) IsGuest() bool {
	return b.RequesterID == nil
}

// Stay returns the stay payload when the booking holds calendar dates.
func (b *Booking) Stay() (*StayPayload, bool) {
	p, ok := b.Payload.(*StayPayload)
	return p, ok
}

// MarshalJSON adds the payload discriminator next to the payload body.
func (b Booking) MarshalJSON() ([]byte, error) {
	type plain Booking
	var typ PayloadType
	if b.Payload != nil {
		typ = b.Payload.Type()
	}
	return json.Marshal(struct {
		plain
		PayloadType PayloadType `json:"payload_type,omitempty"`
	}{plain: plain(b), PayloadType: typ})
}

// Int64Ptr is a small helper for optional ids.
func Int64Ptr(v int64) *int64 {
	return &v
}
