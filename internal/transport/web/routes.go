package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avstrong/reservation/internal/reservation"
)

const userIDHeader = "X-User-ID"

type createRequest struct {
	HotelID  string `json:"hotel_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

type reservationView struct {
	ID        string    `json:"id"`
	HotelID   string    `json:"hotel_id"`
	UserID    string    `json:"user_id"`
	CheckIn   string    `json:"check_in"`
	CheckOut  string    `json:"check_out"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

func viewOf(r *reservation.Reservation) reservationView {
	return reservationView{
		ID:        r.ID,
		HotelID:   r.HotelID,
		UserID:    r.UserID,
		CheckIn:   r.CheckIn.Format(time.DateOnly),
		CheckOut:  r.CheckOut.Format(time.DateOnly),
		State:     string(r.State),
		CreatedAt: r.CreatedAt,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.l.LogErrorf("Could not encode response: %v", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reservation.ErrInvalidRange):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, reservation.ErrNoAvailability):
		s.writeError(w, http.StatusConflict, "no availability for the requested dates")
	case errors.Is(err, reservation.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, reservation.ErrAlreadyCancelled):
		s.writeError(w, http.StatusConflict, "reservation already cancelled")
	case errors.Is(err, reservation.ErrBusy), errors.Is(err, reservation.ErrConflict):
		w.Header().Set("Retry-After", "1")
		s.writeError(w, http.StatusServiceUnavailable, "engine busy, retry later")
	default:
		s.l.LogErrorf("Unhandled engine error: %v", err.Error())
		s.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(userIDHeader)
	if id == "" {
		http.Error(w, fmt.Sprintf("%s header is missing", userIDHeader), http.StatusBadRequest)

		return "", false
	}

	return id, true
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(time.DateOnly, value)
}

func (s *Server) createReservationHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req createRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return
	}

	checkIn, err := parseDate(req.CheckIn)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "check_in must be a YYYY-MM-DD date")

		return
	}

	checkOut, err := parseDate(req.CheckOut)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "check_out must be a YYYY-MM-DD date")

		return
	}

	out, err := s.engine.Create(ctx, &reservation.CreateInput{
		HotelID:  req.HotelID,
		UserID:   uid,
		CheckIn:  checkIn,
		CheckOut: checkOut,
	})
	if err != nil {
		s.writeEngineError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, viewOf(out))
}

func (s *Server) cancelReservationHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	reservationID := r.PathValue("reservation_id")
	if reservationID == "" {
		s.writeError(w, http.StatusBadRequest, "reservation_id is required")

		return
	}

	if err := s.engine.Cancel(r.Context(), reservationID, uid); err != nil {
		s.writeEngineError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) availabilityHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	checkIn, err := parseDate(q.Get("check_in"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "check_in must be a YYYY-MM-DD date")

		return
	}

	checkOut, err := parseDate(q.Get("check_out"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "check_out must be a YYYY-MM-DD date")

		return
	}

	var hotelIDs []string

	for _, raw := range strings.Split(q.Get("hotel_ids"), ",") {
		if id := strings.TrimSpace(raw); id != "" {
			hotelIDs = append(hotelIDs, id)
		}
	}

	if len(hotelIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "provide at least one hotel id")

		return
	}

	s.writeJSON(w, http.StatusOK, s.facade.CheckAvailability(r.Context(), hotelIDs, checkIn, checkOut))
}

func (s *Server) listReservationsHandler(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("user_id")
	if uid == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")

		return
	}

	reservations, err := s.facade.ListReservations(r.Context(), uid)
	if err != nil {
		s.l.LogErrorf("Could not list reservations: %v", err.Error())
		s.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))

		return
	}

	views := make([]reservationView, 0, len(reservations))

	for _, res := range reservations {
		views = append(views, viewOf(res))
	}

	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addRoutes(r *http.ServeMux) {
	middlewares := []func(http.Handler) http.Handler{s.loggerMiddleware(), s.recoverMiddleware()}

	r.Handle(
		"POST /api/reservations/v1",
		s.applyMiddlewares(http.HandlerFunc(s.createReservationHandler), middlewares...),
	)
	r.Handle(
		"DELETE /api/reservations/v1/{reservation_id}",
		s.applyMiddlewares(http.HandlerFunc(s.cancelReservationHandler), middlewares...),
	)
	r.Handle(
		"GET /api/availability/v1",
		s.applyMiddlewares(http.HandlerFunc(s.availabilityHandler), middlewares...),
	)
	r.Handle(
		"GET /api/users/v1/{user_id}/reservations",
		s.applyMiddlewares(http.HandlerFunc(s.listReservationsHandler), middlewares...),
	)
	r.Handle(
		fmt.Sprintf("GET %s", s.conf.LivenessEndpoint),
		s.applyMiddlewares(http.HandlerFunc(s.livenessHandler), middlewares...),
	)
}
