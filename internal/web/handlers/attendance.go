package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadlecj/facetrack/internal/attendance"
	"github.com/kadlecj/facetrack/internal/store"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
	defaultStatsDays   = 30
)

// AttendanceHandler serves attendance queries and manual marking.
type AttendanceHandler struct {
	events     store.AttendanceReader
	identities store.IdentityReader
	guard      *attendance.Guard
	recorder   *attendance.Recorder
}

// NewAttendanceHandler creates the handler.
func NewAttendanceHandler(events store.AttendanceReader, identities store.IdentityReader, guard *attendance.Guard, recorder *attendance.Recorder) *AttendanceHandler {
	return &AttendanceHandler{events: events, identities: identities, guard: guard, recorder: recorder}
}

type attendanceEventResponse struct {
	ID         int64   `json:"id"`
	IdentityID int64   `json:"identity_id"`
	Day        string  `json:"day"`
	Time       string  `json:"time"`
	Status     string  `json:"status"`
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
}

func toEventResponses(events []store.AttendanceEvent) []attendanceEventResponse {
	out := make([]attendanceEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, attendanceEventResponse{
			ID:         e.ID,
			IdentityID: e.IdentityID,
			Day:        e.Day,
			Time:       e.Time,
			Status:     e.Status,
			Method:     e.Method,
			Confidence: e.Confidence,
		})
	}
	return out
}

// parseDay validates a day path/query parameter.
func parseDay(raw string) (string, bool) {
	t, err := time.Parse(store.DayFormat, raw)
	if err != nil {
		return "", false
	}
	return t.Format(store.DayFormat), true
}

func (h *AttendanceHandler) respondDay(w http.ResponseWriter, r *http.Request, day string) {
	events, err := h.events.ListByDay(r.Context(), day)
	if err != nil {
		log.Printf("listing attendance for %s: %v", day, err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"day":    day,
		"events": toEventResponses(events),
	})
}

// Today handles GET /attendance/today.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	h.respondDay(w, r, store.DayOf(h.recorder.Now()))
}

// ByDay handles GET /attendance/day/{day}.
func (h *AttendanceHandler) ByDay(w http.ResponseWriter, r *http.Request) {
	day, ok := parseDay(chi.URLParam(r, "day"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid day, expected YYYY-MM-DD")
		return
	}
	h.respondDay(w, r, day)
}

// ByIdentity handles GET /identities/{id}/attendance.
func (h *AttendanceHandler) ByIdentity(w http.ResponseWriter, r *http.Request) {
	id, ok := identityIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid identity ID")
		return
	}

	if _, err := h.identities.Get(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "identity not found")
			return
		}
		log.Printf("getting identity %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to get identity")
		return
	}

	events, err := h.events.ListByIdentity(r.Context(), id)
	if err != nil {
		log.Printf("listing attendance for identity %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"identity_id": id,
		"events":      toEventResponses(events),
	})
}

// Recent handles GET /attendance/recent?limit=N.
func (h *AttendanceHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxRecentLimit)
	}

	events, err := h.events.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("listing recent attendance: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": toEventResponses(events)})
}

// Stats handles GET /attendance/stats?from=YYYY-MM-DD&to=YYYY-MM-DD. Without
// parameters it covers the last 30 days.
func (h *AttendanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	now := h.recorder.Now()
	from := store.DayOf(now.AddDate(0, 0, -defaultStatsDays+1))
	to := store.DayOf(now)

	if raw := r.URL.Query().Get("from"); raw != "" {
		day, ok := parseDay(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid from day, expected YYYY-MM-DD")
			return
		}
		from = day
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		day, ok := parseDay(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid to day, expected YYYY-MM-DD")
			return
		}
		to = day
	}
	if from > to {
		respondError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	stats, err := h.events.StatsByDay(r.Context(), from, to)
	if err != nil {
		log.Printf("loading attendance stats: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	type dayStatsResponse struct {
		Day      string `json:"day"`
		Present  int    `json:"present"`
		Enrolled int    `json:"enrolled"`
	}
	out := make([]dayStatsResponse, 0, len(stats))
	for _, s := range stats {
		out = append(out, dayStatsResponse{Day: s.Day, Present: s.Present, Enrolled: s.Enrolled})
	}
	respondJSON(w, http.StatusOK, map[string]any{"from": from, "to": to, "days": out})
}

type manualMarkRequest struct {
	IdentityID int64 `json:"identity_id"`
}

// Mark handles POST /attendance: a manual presence record for today. It runs
// through the same guard and recorder as the recognition pipeline, so the
// one-per-day rule holds regardless of method.
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	var req manualMarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IdentityID < 1 {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	identity, err := h.identities.Get(r.Context(), req.IdentityID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	if err != nil {
		log.Printf("getting identity %d: %v", req.IdentityID, err)
		respondError(w, http.StatusInternalServerError, "failed to get identity")
		return
	}

	now := h.recorder.Now()
	decision, err := h.guard.TryAdmit(r.Context(), identity.ID, store.DayOf(now))
	if err != nil {
		log.Printf("checking attendance for identity %d: %v", identity.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to check attendance")
		return
	}
	if decision == attendance.AlreadyPresent {
		respondError(w, http.StatusConflict, "attendance already recorded for today")
		return
	}

	event, err := h.recorder.Record(r.Context(), identity.ID, now, 1.0, store.MethodManual)
	if errors.Is(err, store.ErrDuplicateAttendance) {
		respondError(w, http.StatusConflict, "attendance already recorded for today")
		return
	}
	if err != nil {
		h.guard.Revoke(identity.ID, store.DayOf(now))
		log.Printf("recording manual attendance for identity %d: %v", identity.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to record attendance")
		return
	}

	log.Printf("manual attendance recorded for %s", sanitizeForLog(identity.Name))
	respondJSON(w, http.StatusCreated, toEventResponses([]store.AttendanceEvent{*event})[0])
}
