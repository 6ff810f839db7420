package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"courtbook/internal/calendar"
	"courtbook/internal/domain"
	"courtbook/internal/logging"
	"courtbook/internal/models"
	"courtbook/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var validate = validator.New()

// CourtID is ignored on update: a reservation never changes court.
type reservationRequest struct {
	CourtID int64            `json:"court_id" validate:"omitempty,gt=0"`
	Date    string           `json:"date" validate:"required,datetime=2006-01-02"`
	Start   models.TimeOfDay `json:"start"`
	End     models.TimeOfDay `json:"end"`
	Notes   *string          `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type reservationResponse struct {
	ID          int64            `json:"id"`
	CourtID     int64            `json:"court_id"`
	RequesterID string           `json:"requester_id"`
	Date        string           `json:"date"`
	Start       models.TimeOfDay `json:"start"`
	End         models.TimeOfDay `json:"end"`
	Status      string           `json:"status"`
	Notes       string           `json:"notes,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type calendarResponse struct {
	CourtID int64  `json:"court_id"`
	Date    string `json:"date"`
	*calendar.Window
}

func toResponse(r *models.Reservation) reservationResponse {
	return reservationResponse{
		ID:          r.ID,
		CourtID:     r.CourtID,
		RequesterID: r.RequesterID,
		Date:        models.FormatDate(r.Date),
		Start:       r.StartTime,
		End:         r.EndTime,
		Status:      r.Status,
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.health.HealthCheck(ctx); err != nil {
		logging.FromContext(r.Context(), s.logger).Warn().Err(err).Msg("readiness check failed")
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	courtID, ok := pathID(w, r)
	if !ok {
		return
	}
	date, ok := queryDate(w, r)
	if !ok {
		return
	}

	caller := CallerFrom(r.Context())
	win, err := s.engine.ResolveCalendar(r.Context(), courtID, date, caller.Privileged)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if win.Blackouts == nil {
		win.Blackouts = []calendar.Blackout{}
	}
	writeJSON(w, http.StatusOK, calendarResponse{CourtID: courtID, Date: models.FormatDate(date), Window: win})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	venueID, ok := pathID(w, r)
	if !ok {
		return
	}
	date, ok := queryDate(w, r)
	if !ok {
		return
	}

	q := service.AvailabilityQuery{
		VenueID:    venueID,
		CourtType:  strings.ToLower(strings.TrimSpace(r.URL.Query().Get("court_type"))),
		Date:       date,
		Privileged: CallerFrom(r.Context()).Privileged,
	}
	if raw := r.URL.Query().Get("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "duration must be a positive number of minutes")
			return
		}
		q.DurationMinutes = d
	}

	courts, err := s.engine.ListAvailability(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if courts == nil {
		courts = []service.CourtAvailability{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"venue_id": venueID,
		"date":     models.FormatDate(date),
		"courts":   courts,
	})
}

func (s *HTTPServer) handleSchedule(w http.ResponseWriter, r *http.Request) {
	venueID, ok := pathID(w, r)
	if !ok {
		return
	}
	date, ok := queryDate(w, r)
	if !ok {
		return
	}
	caller := CallerFrom(r.Context())
	if !caller.Privileged {
		s.writeDomainError(w, r, fmt.Errorf("schedule export: %w", domain.ErrForbidden))
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "export is not configured")
		return
	}

	f, err := s.exporter.VenueSchedule(r.Context(), venueID, date, caller.Privileged)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="schedule_%d_%s.xlsx"`, venueID, models.FormatDate(date)))
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).Msg("write schedule workbook")
	}
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	caller := CallerFrom(r.Context())
	query := r.URL.Query()

	filter := domain.ReservationFilter{RequesterID: strings.TrimSpace(query.Get("requester_id"))}
	var err error
	if filter.VenueID, err = optionalID(query.Get("venue_id")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid venue_id")
		return
	}
	if filter.CourtID, err = optionalID(query.Get("court_id")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid court_id")
		return
	}
	if raw := query.Get("from"); raw != "" {
		if filter.From, err = models.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return
		}
	}
	if raw := query.Get("to"); raw != "" {
		if filter.To, err = models.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return
		}
	}
	if raw := query.Get("status"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			if st = strings.TrimSpace(st); st != "" {
				filter.Statuses = append(filter.Statuses, st)
			}
		}
	}
	if raw := query.Get("limit"); raw != "" {
		n, convErr := strconv.ParseUint(raw, 10, 64)
		if convErr != nil || n == 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	// Without privilege a caller only sees its own reservations.
	if !caller.Privileged {
		if caller.RequesterID == "" {
			writeError(w, http.StatusBadRequest, "requester id header is required")
			return
		}
		filter.RequesterID = caller.RequesterID
	}

	list, err := s.engine.ListReservations(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]reservationResponse, 0, len(list))
	for _, res := range list {
		out = append(out, toResponse(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": out})
}

func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.engine.GetReservation(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	caller := CallerFrom(r.Context())
	if !caller.Privileged && res.RequesterID != caller.RequesterID {
		s.writeDomainError(w, r, fmt.Errorf("reservation %d: %w", id, domain.ErrForbidden))
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireRequester(w, r)
	if !ok {
		return
	}
	var req reservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	if req.CourtID <= 0 {
		writeError(w, http.StatusBadRequest, "court_id is required")
		return
	}

	p := service.Proposal{
		CourtID:     req.CourtID,
		Date:        date,
		Start:       req.Start,
		End:         req.End,
		RequesterID: caller.RequesterID,
		Privileged:  caller.Privileged,
	}
	if req.Notes != nil {
		p.Notes = *req.Notes
	}

	res, err := s.engine.ProposeReservation(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/reservations/%d", res.ID))
	writeJSON(w, http.StatusCreated, toResponse(res))
}

func (s *HTTPServer) handleUpdateReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, ok := requireRequester(w, r)
	if !ok {
		return
	}
	var req reservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	res, err := s.engine.RescheduleReservation(r.Context(), service.Change{
		ReservationID: id,
		Date:          date,
		Start:         req.Start,
		End:           req.End,
		RequesterID:   caller.RequesterID,
		Privileged:    caller.Privileged,
		Notes:         req.Notes,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, ok := requireRequester(w, r)
	if !ok {
		return
	}
	res, err := s.engine.CancelReservation(r.Context(), id, caller.RequesterID, caller.Privileged)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *HTTPServer) handleConfirmReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, ok := requireRequester(w, r)
	if !ok {
		return
	}
	res, err := s.engine.ConfirmReservation(r.Context(), id, caller.RequesterID, caller.Privileged)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func requireRequester(w http.ResponseWriter, r *http.Request) (Caller, bool) {
	caller := CallerFrom(r.Context())
	if caller.RequesterID == "" {
		writeError(w, http.StatusBadRequest, "requester id header is required")
		return caller, false
	}
	return caller, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return time.Time{}, false
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func optionalID(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
