package notify

import (
	"fmt"

	"realtyhub/internal/events"
	"realtyhub/internal/models"
)

func propertyLabel(title string) string {
	if title == "" {
		return "your property"
	}
	return fmt.Sprintf("%q", title)
}

func renderBookingCreated(e events.BookingCreated) *models.Notification {
	data := map[string]any{
		"booking_id":   e.BookingID,
		"property_id":  e.PropertyID,
		"booking_kind": string(e.BookingKind),
	}
	if e.ConversationID != nil {
		data["conversation_id"] = *e.ConversationID
	}
	if e.RequesterID == nil {
		data["guest"] = true
	}
	return &models.Notification{
		RecipientID: e.OwnerID,
		Kind:        models.NotificationBookingCreated,
		Title:       "New booking request",
		Message:     fmt.Sprintf("%s sent a %s request for %s.", e.ContactName, e.BookingKind, propertyLabel(e.PropertyTitle)),
		Data:        data,
	}
}

func renderBookingStatusChanged(e events.BookingStatusChanged) *models.Notification {
	msg := fmt.Sprintf("Your booking for %s is now %s.", propertyLabel(e.PropertyTitle), e.To)
	if e.Note != "" {
		msg += " Note: " + e.Note
	}
	return &models.Notification{
		RecipientID: e.RecipientID,
		Kind:        models.NotificationBookingStatusChanged,
		Title:       fmt.Sprintf("Booking %s", e.To),
		Message:     msg,
		Data: map[string]any{
			"booking_id":  e.BookingID,
			"property_id": e.PropertyID,
			"from":        string(e.From),
			"to":          string(e.To),
		},
	}
}

func renderBookingCancelled(e events.BookingCancelled) *models.Notification {
	return &models.Notification{
		RecipientID: e.OwnerID,
		Kind:        models.NotificationBookingCancelled,
		Title:       "Booking cancelled",
		Message:     fmt.Sprintf("%s cancelled their booking for %s.", e.ContactName, propertyLabel(e.PropertyTitle)),
		Data: map[string]any{
			"booking_id":  e.BookingID,
			"property_id": e.PropertyID,
			"by_guest":    e.ByGuest,
		},
	}
}

func renderJobAssigned(e events.JobAssigned) *models.Notification {
	data := map[string]any{"job_id": e.JobID}
	if e.PropertyID != nil {
		data["property_id"] = *e.PropertyID
	}
	return &models.Notification{
		RecipientID: e.AssigneeID,
		Kind:        models.NotificationJobAssigned,
		Title:       "New job assigned",
		Message:     e.Title,
		Data:        data,
	}
}

func renderJobStatusChanged(e events.JobStatusChanged) *models.Notification {
	return &models.Notification{
		RecipientID: e.RecipientID,
		Kind:        models.NotificationJobStatusChanged,
		Title:       "Job status updated",
		Message:     fmt.Sprintf("%s is now %s.", e.Title, e.Status),
		Data:        map[string]any{"job_id": e.JobID, "status": e.Status},
	}
}

func renderMaintenanceTicketUpdated(e events.MaintenanceTicketUpdated) *models.Notification {
	data := map[string]any{"ticket_id": e.TicketID, "status": e.Status}
	if e.PropertyID != nil {
		data["property_id"] = *e.PropertyID
	}
	msg := fmt.Sprintf("Ticket #%d is now %s.", e.TicketID, e.Status)
	if e.Summary != "" {
		msg = fmt.Sprintf("Ticket #%d is now %s: %s", e.TicketID, e.Status, e.Summary)
	}
	return &models.Notification{
		RecipientID: e.RecipientID,
		Kind:        models.NotificationMaintenanceUpdated,
		Title:       "Maintenance ticket updated",
		Message:     msg,
		Data:        data,
	}
}
