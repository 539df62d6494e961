package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type PayloadType string

const (
	PayloadViewing           PayloadType = "viewing"
	PayloadStay              PayloadType = "stay"
	PayloadGeneralInquiry    PayloadType = "inquiry_general"
	PayloadLeaseInquiry      PayloadType = "inquiry_lease"
	PayloadSaleOffer         PayloadType = "inquiry_sale"
	PayloadCommercialInquiry PayloadType = "inquiry_commercial"
)

// Payload is the kind-specific part of a booking. Each variant validates
// its own required fields.
type Payload interface {
	Kind() BookingKind
	Type() PayloadType
	Validate() error
}

type ViewingPayload struct {
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
}

func (*ViewingPayload) Kind() BookingKind { return KindViewing }
func (*ViewingPayload) Type() PayloadType { return PayloadViewing }

func (p *ViewingPayload) Validate() error {
	if p.ScheduledAt.IsZero() {
		return Invalid("payload.scheduled_at", "is required")
	}
	if p.DurationMinutes < 0 || p.DurationMinutes > MaxViewingMinutes {
		return Invalid("payload.duration_minutes", fmt.Sprintf("must be between 0 and %d", MaxViewingMinutes))
	}
	return nil
}

// StayPayload holds a closed range of calendar days: both CheckIn and
// CheckOut are occupied.
type StayPayload struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
	Guests   int       `json:"guests"`
}

func (*StayPayload) Kind() BookingKind { return KindStay }
func (*StayPayload) Type() PayloadType { return PayloadStay }

func (p *StayPayload) Validate() error {
	if p.CheckIn.IsZero() {
		return Invalid("payload.check_in", "is required")
	}
	if p.CheckOut.IsZero() {
		return Invalid("payload.check_out", "is required")
	}
	if Day(p.CheckOut).Before(Day(p.CheckIn)) {
		return Invalid("payload.check_out", "must not be before check_in")
	}
	if p.Guests < 1 {
		return Invalid("payload.guests", "must be at least 1")
	}
	return nil
}

// Nights counts occupied calendar days minus one.
func (p *StayPayload) Nights() int {
	return int(Day(p.CheckOut).Sub(Day(p.CheckIn)).Hours() / 24)
}

type stayJSON struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Guests   int    `json:"guests"`
}

func (p StayPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(stayJSON{
		CheckIn:  formatDay(p.CheckIn),
		CheckOut: formatDay(p.CheckOut),
		Guests:   p.Guests,
	})
}

func (p *StayPayload) UnmarshalJSON(data []byte) error {
	var raw stayJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var err error
	if p.CheckIn, err = parseDay("payload.check_in", raw.CheckIn); err != nil {
		return err
	}
	if p.CheckOut, err = parseDay("payload.check_out", raw.CheckOut); err != nil {
		return err
	}
	p.Guests = raw.Guests
	return nil
}

type GeneralInquiry struct {
	Subject string `json:"subject"`
}

func (*GeneralInquiry) Kind() BookingKind { return KindInquiry }
func (*GeneralInquiry) Type() PayloadType { return PayloadGeneralInquiry }

func (p *GeneralInquiry) Validate() error {
	if strings.TrimSpace(p.Subject) == "" {
		return Invalid("payload.subject", "is required")
	}
	return nil
}

type LeaseInquiry struct {
	MoveIn        time.Time `json:"move_in"`
	TermMonths    int       `json:"term_months"`
	MonthlyBudget float64   `json:"monthly_budget,omitempty"`
}

func (*LeaseInquiry) Kind() BookingKind { return KindInquiry }
func (*LeaseInquiry) Type() PayloadType { return PayloadLeaseInquiry }

func (p *LeaseInquiry) Validate() error {
	if p.MoveIn.IsZero() {
		return Invalid("payload.move_in", "is required")
	}
	if p.TermMonths < 1 {
		return Invalid("payload.term_months", "must be at least 1")
	}
	if p.MonthlyBudget < 0 {
		return Invalid("payload.monthly_budget", "must not be negative")
	}
	return nil
}

type leaseJSON struct {
	MoveIn        string  `json:"move_in"`
	TermMonths    int     `json:"term_months"`
	MonthlyBudget float64 `json:"monthly_budget,omitempty"`
}

func (p LeaseInquiry) MarshalJSON() ([]byte, error) {
	return json.Marshal(leaseJSON{
		MoveIn:        formatDay(p.MoveIn),
		TermMonths:    p.TermMonths,
		MonthlyBudget: p.MonthlyBudget,
	})
}

func (p *LeaseInquiry) UnmarshalJSON(data []byte) error {
	var raw leaseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	moveIn, err := parseDay("payload.move_in", raw.MoveIn)
	if err != nil {
		return err
	}
	p.MoveIn = moveIn
	p.TermMonths = raw.TermMonths
	p.MonthlyBudget = raw.MonthlyBudget
	return nil
}

type SaleOffer struct {
	OfferAmount float64 `json:"offer_amount"`
	Currency    string  `json:"currency,omitempty"`
	Financing   string  `json:"financing,omitempty"`
}

func (*SaleOffer) Kind() BookingKind { return KindInquiry }
func (*SaleOffer) Type() PayloadType { return PayloadSaleOffer }

func (p *SaleOffer) Validate() error {
	if p.OfferAmount <= 0 {
		return Invalid("payload.offer_amount", "must be positive")
	}
	return nil
}

type CommercialInquiry struct {
	BusinessType string  `json:"business_type"`
	AreaSqm      float64 `json:"area_sqm,omitempty"`
	TermMonths   int     `json:"term_months,omitempty"`
}

func (*CommercialInquiry) Kind() BookingKind { return KindInquiry }
func (*CommercialInquiry) Type() PayloadType { return PayloadCommercialInquiry }

func (p *CommercialInquiry) Validate() error {
	if strings.TrimSpace(p.BusinessType) == "" {
		return Invalid("payload.business_type", "is required")
	}
	if p.AreaSqm < 0 {
		return Invalid("payload.area_sqm", "must not be negative")
	}
	return nil
}

func newPayload(typ PayloadType) (Payload, error) {
	switch typ {
	case PayloadViewing:
		return &ViewingPayload{}, nil
	case PayloadStay:
		return &StayPayload{}, nil
	case PayloadGeneralInquiry:
		return &GeneralInquiry{}, nil
	case PayloadLeaseInquiry:
		return &LeaseInquiry{}, nil
	case PayloadSaleOffer:
		return &SaleOffer{}, nil
	case PayloadCommercialInquiry:
		return &CommercialInquiry{}, nil
	}
	return nil, Invalid("payload_type", fmt.Sprintf("%q is unknown", typ))
}

// DecodePayload builds the variant named by typ from its JSON form.
func DecodePayload(typ PayloadType, raw []byte) (Payload, error) {
	p, err := newPayload(typ)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, Invalid("payload", "is required")
	}
	if err := json.Unmarshal(raw, p); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, Invalid("payload", fmt.Sprintf("is malformed: %v", err))
	}
	return p, nil
}

// EncodePayload returns the discriminator and JSON body for storage.
func EncodePayload(p Payload) (PayloadType, []byte, error) {
	if p == nil {
		return "", nil, Invalid("payload", "is required")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("encode payload: %w", err)
	}
	return p.Type(), raw, nil
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

func parseDay(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, Invalid(field, "must be a YYYY-MM-DD date")
	}
	return t, nil
}
