package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kadlecj/facetrack/internal/store"
)

func (f *fixture) attendanceHandler() *AttendanceHandler {
	return NewAttendanceHandler(f.events, f.identities, f.guard, f.recorder)
}

func (f *fixture) insertEvent(t *testing.T, identityID int64, day, tod string) {
	t.Helper()
	err := f.events.Insert(context.Background(), &store.AttendanceEvent{
		IdentityID: identityID,
		Day:        day,
		Time:       tod,
		Status:     "present",
		Method:     store.MethodFaceRecognition,
		Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

type eventsResponse struct {
	Day    string                    `json:"day"`
	Events []attendanceEventResponse `json:"events"`
}

func TestByDayHandler(t *testing.T) {
	f := newFixture()
	id := f.enrollIdentity(t, "s100", "Alice")
	f.insertEvent(t, id, "2026-09-01", "08:15:00")
	h := f.attendanceHandler()

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/attendance/day/2026-09-01", nil),
		map[string]string{"day": "2026-09-01"},
	)
	recorder := httptest.NewRecorder()

	h.ByDay(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp eventsResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Day != "2026-09-01" || len(resp.Events) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Events[0].IdentityID != id || resp.Events[0].Time != "08:15:00" {
		t.Errorf("event = %+v", resp.Events[0])
	}
}

func TestByDayHandlerInvalidDay(t *testing.T) {
	f := newFixture()
	h := f.attendanceHandler()

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/attendance/day/yesterday", nil),
		map[string]string{"day": "yesterday"},
	)
	recorder := httptest.NewRecorder()

	h.ByDay(recorder, req)
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestTodayHandler(t *testing.T) {
	f := newFixture()
	id := f.enrollIdentity(t, "s100", "Alice")
	today := store.DayOf(time.Now().UTC())
	f.insertEvent(t, id, today, "08:15:00")
	h := f.attendanceHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/today", nil)
	recorder := httptest.NewRecorder()

	h.Today(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp eventsResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Day != today || len(resp.Events) != 1 {
		t.Errorf("response = %+v, want one event for %s", resp, today)
	}
}

func TestByIdentityHandler(t *testing.T) {
	f := newFixture()
	id := f.enrollIdentity(t, "s100", "Alice")
	f.insertEvent(t, id, "2026-08-31", "08:00:00")
	f.insertEvent(t, id, "2026-09-01", "08:05:00")
	h := f.attendanceHandler()

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/identities/1/attendance", nil),
		map[string]string{"id": "1"},
	)
	recorder := httptest.NewRecorder()

	h.ByIdentity(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp struct {
		Events []attendanceEventResponse `json:"events"`
	}
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(resp.Events))
	}
	if resp.Events[0].Day != "2026-09-01" {
		t.Errorf("events not newest-first: %+v", resp.Events)
	}
}

func TestByIdentityHandlerUnknownIdentity(t *testing.T) {
	f := newFixture()
	h := f.attendanceHandler()

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/identities/42/attendance", nil),
		map[string]string{"id": "42"},
	)
	recorder := httptest.NewRecorder()

	h.ByIdentity(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestRecentHandler(t *testing.T) {
	f := newFixture()
	id := f.enrollIdentity(t, "s100", "Alice")
	f.insertEvent(t, id, "2026-08-30", "08:00:00")
	f.insertEvent(t, id, "2026-08-31", "08:00:00")
	f.insertEvent(t, id, "2026-09-01", "08:00:00")
	h := f.attendanceHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/recent?limit=2", nil)
	recorder := httptest.NewRecorder()

	h.Recent(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp struct {
		Events []attendanceEventResponse `json:"events"`
	}
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Events) != 2 {
		t.Errorf("got %d events, want limit 2", len(resp.Events))
	}
}

func TestRecentHandlerInvalidLimit(t *testing.T) {
	f := newFixture()
	h := f.attendanceHandler()

	for _, limit := range []string{"0", "-1", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/recent?limit="+limit, nil)
		recorder := httptest.NewRecorder()
		h.Recent(recorder, req)
		assertStatusCode(t, recorder, http.StatusBadRequest)
	}
}

func TestStatsHandler(t *testing.T) {
	f := newFixture()
	alice := f.enrollIdentity(t, "s100", "Alice")
	bob := f.enrollIdentity(t, "s200", "Bob")
	f.insertEvent(t, alice, "2026-09-01", "08:00:00")
	f.insertEvent(t, bob, "2026-09-01", "08:05:00")
	f.insertEvent(t, alice, "2026-08-31", "08:00:00")
	h := f.attendanceHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/stats?from=2026-08-31&to=2026-09-01", nil)
	recorder := httptest.NewRecorder()

	h.Stats(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp struct {
		From string `json:"from"`
		To   string `json:"to"`
		Days []struct {
			Day     string `json:"day"`
			Present int    `json:"present"`
		} `json:"days"`
	}
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Days) != 2 {
		t.Fatalf("got %d days, want 2", len(resp.Days))
	}
	if resp.Days[1].Day != "2026-09-01" || resp.Days[1].Present != 2 {
		t.Errorf("days = %+v", resp.Days)
	}
}

func TestStatsHandlerInvertedRange(t *testing.T) {
	f := newFixture()
	h := f.attendanceHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/stats?from=2026-09-02&to=2026-09-01", nil)
	recorder := httptest.NewRecorder()

	h.Stats(recorder, req)
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestMarkHandler(t *testing.T) {
	f := newFixture()
	id := f.enrollIdentity(t, "s100", "Alice")
	h := f.attendanceHandler()

	body, _ := json.Marshal(manualMarkRequest{IdentityID: id})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance", bytes.NewReader(body))
	recorder := httptest.NewRecorder()

	h.Mark(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)
	var resp attendanceEventResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Method != store.MethodManual {
		t.Errorf("method = %q, want manual", resp.Method)
	}

	// Marking again the same day conflicts.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/attendance", bytes.NewReader(body))
	recorder = httptest.NewRecorder()
	h.Mark(recorder, req)
	assertStatusCode(t, recorder, http.StatusConflict)

	if n := len(f.events.Events()); n != 1 {
		t.Errorf("store holds %d events, want 1", n)
	}
}

func TestMarkHandlerUnknownIdentity(t *testing.T) {
	f := newFixture()
	h := f.attendanceHandler()

	body, _ := json.Marshal(manualMarkRequest{IdentityID: 42})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance", bytes.NewReader(body))
	recorder := httptest.NewRecorder()

	h.Mark(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}
