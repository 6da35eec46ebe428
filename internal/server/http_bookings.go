package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/quillbooking/internal/events"
	"github.com/alfredjeanlab/quillbooking/internal/idgen"
	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/alfredjeanlab/quillbooking/internal/renderer"
	"github.com/alfredjeanlab/quillbooking/internal/submission"
)

// rejection is a booking submission refused before persistence.
type rejection struct {
	status  int
	reason  string // metrics label
	message string
	fields  map[string]string
}

func (r *rejection) Error() string { return r.message }

// handleAjax handles POST /v1/ajax, the public booking endpoint. The body is
// form-encoded; responses use the {"success": ..., "data": ...} envelope.
func (s *Server) handleAjax(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.reject(w, &rejection{status: http.StatusBadRequest, reason: "malformed", message: "invalid form body"})
		return
	}
	payload, err := submission.ParseForm(r.PostForm)
	if err != nil {
		s.reject(w, &rejection{status: http.StatusBadRequest, reason: "malformed", message: err.Error()})
		return
	}

	booking, err := s.createBooking(r.Context(), payload)
	if err != nil {
		var rej *rejection
		if errors.As(err, &rej) {
			s.reject(w, rej)
			return
		}
		slog.Error("failed to create booking", "event_id", payload.EventID, "error", err)
		s.reject(w, &rejection{status: http.StatusInternalServerError, reason: "internal", message: "the booking could not be created"})
		return
	}

	resp := submission.Success(booking.HashID)
	if s.ConfirmURL != "" {
		if u, err := submission.ConfirmationURL(s.ConfirmURL, booking.HashID); err == nil {
			resp.Data.RedirectURL = u
		} else {
			slog.Warn("invalid confirmation url", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) reject(w http.ResponseWriter, rej *rejection) {
	s.metrics.BookingsRejected.WithLabelValues(rej.reason).Inc()
	writeJSON(w, rej.status, submission.Failure(rej.message, rej.fields))
}

// createBooking re-validates a submitted payload against the event's current
// field set with the same rules the guest's form used, then persists it.
func (s *Server) createBooking(ctx context.Context, p *submission.Payload) (*model.Booking, error) {
	list, meta, err := s.loadFieldSet(ctx, p.EventID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, &rejection{status: http.StatusNotFound, reason: "unknown_event", message: "event not found"}
	}
	start, err := p.Start()
	if err != nil {
		return nil, &rejection{status: http.StatusBadRequest, reason: "malformed", message: err.Error()}
	}
	if !meta.AllowsDuration(p.Duration) {
		return nil, &rejection{
			status: http.StatusBadRequest, reason: "duration",
			message: fmt.Sprintf("duration %d is not offered by this event", p.Duration),
			fields:  map[string]string{"duration": "is not offered by this event"},
		}
	}

	tree := renderer.Render(list, renderer.Options{})
	answers, err := tree.Validate(p.Answers())
	if err != nil {
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		s.metrics.RecordValidation("answer", len(ve.Errors))
		return nil, &rejection{
			status: http.StatusBadRequest, reason: "validation",
			message: "please correct the highlighted fields",
			fields:  fieldMessages(ve),
		}
	}

	var location *model.LocationOption
	if c := tree.Chooser(); c != nil {
		location, _ = c.Option(tree.SelectedLocation(answers))
	}
	normalized, err := submission.Assemble(submission.Input{
		EventID:  p.EventID,
		Start:    start,
		Timezone: p.Timezone,
		Duration: p.Duration,
		Location: location,
		Answers:  answers,
	})
	if err != nil {
		return nil, &rejection{status: http.StatusBadRequest, reason: "validation", message: err.Error()}
	}

	hashID, err := idgen.GenerateUnique(ctx, s.bookingExists)
	if err != nil {
		return nil, err
	}
	booking := &model.Booking{
		HashID:    hashID,
		EventID:   p.EventID,
		Status:    model.BookingScheduled,
		StartTime: start,
		Timezone:  p.Timezone,
		Duration:  p.Duration,
		Invitees:  normalized.Invitees,
		Fields:    normalized.Fields,
	}
	if normalized.Location != nil {
		booking.Location = *normalized.Location
	}
	if err := model.ValidateBooking(booking); err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			return nil, &rejection{status: http.StatusBadRequest, reason: "validation", message: ve.Error(), fields: fieldMessages(ve)}
		}
		return nil, err
	}

	if err := s.store.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("storing booking: %w", err)
	}
	s.metrics.BookingsCreated.WithLabelValues(booking.EventID).Inc()
	s.recordAndPublish(ctx, events.TopicBookingCreated, booking.HashID, booking.Invitees[0].Email, events.BookingCreated{Booking: booking})
	return booking, nil
}

// fieldMessages keeps the first message per field, the one a form displays.
func fieldMessages(ve *model.ValidationError) map[string]string {
	out := make(map[string]string, len(ve.Errors))
	for _, fe := range ve.Errors {
		if _, ok := out[fe.Field]; !ok {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

// handleGetBooking handles GET /v1/bookings/{hash_id}.
func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	hashID := r.PathValue("hash_id")
	booking, err := s.store.GetBooking(r.Context(), hashID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get booking")
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// handleListBookings handles GET /v1/bookings.
func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.BookingFilter{
		EventID: q.Get("event_id"),
		Sort:    q.Get("sort"),
	}
	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			status := model.BookingStatus(strings.TrimSpace(st))
			if !status.IsValid() {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", st))
				return
			}
			filter.Status = append(filter.Status, status)
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	bookings, total, err := s.store.ListBookings(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list bookings")
		return
	}

	// Ensure bookings is never null in JSON output.
	if bookings == nil {
		bookings = []*model.Booking{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bookings": bookings,
		"total":    total,
	})
}

// handleCancelBooking handles POST /v1/bookings/{hash_id}/cancel.
func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	hashID := r.PathValue("hash_id")
	existing, err := s.store.GetBooking(r.Context(), hashID)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get booking")
		return
	}
	if existing.Status == model.BookingCancelled {
		writeError(w, http.StatusConflict, "booking is already cancelled")
		return
	}

	booking, err := s.store.CancelBooking(r.Context(), hashID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to cancel booking")
		return
	}
	s.metrics.BookingsCancelled.WithLabelValues(booking.EventID).Inc()
	s.recordAndPublish(r.Context(), events.TopicBookingCancelled, hashID, actor(r), events.BookingCancelled{Booking: booking})
	writeJSON(w, http.StatusOK, booking)
}

// bookingExists reports whether a booking with hashID is already stored.
func (s *Server) bookingExists(ctx context.Context, hashID string) (bool, error) {
	_, err := s.store.GetBooking(ctx, hashID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, err
	}
}
