package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"realtyhub/internal/domain"
	"realtyhub/internal/events"
	"realtyhub/internal/models"
)

const maxBodyBytes = 1 << 20

type submitRequest struct {
	PropertyID  int64              `json:"property_id"`
	Kind        models.BookingKind `json:"kind"`
	Contact     models.Contact     `json:"contact"`
	PayloadType models.PayloadType `json:"payload_type"`
	Payload     json.RawMessage    `json:"payload"`
	Payment     *models.Payment    `json:"payment,omitempty"`
	Message     string             `json:"message,omitempty"`
}

type statusRequest struct {
	Status models.BookingStatus `json:"status"`
	Note   string               `json:"note,omitempty"`
}

type blockRequest struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason,omitempty"`
}

type eventRequest struct {
	Kind    events.Kind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "validation", fmt.Sprintf("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

func parseDay(field, raw string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, domain.Invalid(field, "must be a YYYY-MM-DD date")
	}
	return t, nil
}

// payloadType picks the discriminator, defaulting the single-variant kinds.
func payloadType(req submitRequest) models.PayloadType {
	if req.PayloadType != "" {
		return req.PayloadType
	}
	switch req.Kind {
	case models.KindViewing:
		return models.PayloadViewing
	case models.KindStay:
		return models.PayloadStay
	case models.KindInquiry:
		return models.PayloadGeneralInquiry
	}
	return ""
}

func (s *Server) handleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	payload, err := models.DecodePayload(payloadType(body), body.Payload)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	booking, err := s.bookings.Submit(r.Context(), domain.SubmitRequest{
		PropertyID:  body.PropertyID,
		RequesterID: actorFromRequest(r),
		ClientKey:   remoteHost(r),
		Kind:        body.Kind,
		Contact:     body.Contact,
		Payload:     payload,
		Payment:     body.Payment,
		Message:     body.Message,
	})
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking})
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	booking, err := s.bookings.Get(r.Context(), id, actorFromRequest(r))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *Server) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	list, err := s.bookings.ListForRequester(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(list)})
}

func (s *Server) handlePropertyBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	propertyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := s.bookings.ListForProperty(r.Context(), propertyID, userID)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(list)})
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body statusRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	booking, err := s.bookings.Transition(r.Context(), id, userID, body.Status, body.Note)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	booking, err := s.bookings.Cancel(r.Context(), id, actorFromRequest(r))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	propertyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	blocks, err := s.availability.ListBlocks(r.Context(), userID, propertyID)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": nonNil(blocks)})
}

func (s *Server) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	propertyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body blockRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	start, err := parseDay("start", body.Start)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	end, err := parseDay("end", body.End)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	block := &models.AvailabilityBlock{PropertyID: propertyID, Start: start, End: end, Reason: body.Reason}
	if err := s.availability.CreateBlock(r.Context(), userID, block); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"block": block})
}

func (s *Server) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	propertyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	blockID, ok := pathID(w, r, "blockID")
	if !ok {
		return
	}
	if err := s.availability.DeleteBlock(r.Context(), userID, propertyID, blockID); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	propertyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	from, err := parseDay("from", q.Get("from"))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	to, err := parseDay("to", q.Get("to"))
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}

	holds, err := s.availability.Availability(r.Context(), propertyID, from, to)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	busy := make([]map[string]string, 0, len(holds))
	for _, h := range holds {
		busy = append(busy, map[string]string{
			"start":  h.Start.Format(models.DateLayout),
			"end":    h.End.Format(models.DateLayout),
			"source": string(h.Source),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"property_id": propertyID,
		"from":        from.Format(models.DateLayout),
		"to":          to.Format(models.DateLayout),
		"busy":        busy,
	})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	unreadOnly, _ := strconv.ParseBool(q.Get("unread"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	list, err := s.notifications.List(r.Context(), userID, unreadOnly, limit)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": nonNil(list)})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	count, err := s.notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	count, err := s.notifications.MarkRead(r.Context(), userID, id)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	count, err := s.notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// handlePublishEvent lets external producers (jobs, maintenance) publish
// onto the bus. Once an event is accepted, listener failures are logged by
// the bus and never reach the producer.
func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	var body eventRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	event, err := events.Decode(body.Kind, body.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	if err := events.Validate(event); err != nil {
		writeDomainError(w, r, s.logger, err)
		return
	}
	s.events.Publish(r.Context(), event)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "unavailable", "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
