package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEnrollHandler(t *testing.T) {
	f := newFixture()
	h := NewIdentitiesHandler(f.enroll, f.identities)

	req := multipartRequest(t, "/api/v1/identities", map[string]string{
		"external_id": "s100",
		"name":        "Alice Adams",
		"email":       "alice@example.com",
		"group":       "3A",
	}, []byte("jpeg-bytes"))
	recorder := httptest.NewRecorder()

	h.Enroll(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var resp identityResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.ExternalID != "s100" || resp.Name != "Alice Adams" {
		t.Errorf("response = %+v", resp)
	}
	if resp.ID == 0 {
		t.Error("response has no ID")
	}
	if f.gallery.Len() != 1 {
		t.Errorf("gallery Len() = %d, want 1", f.gallery.Len())
	}

	// Encodings must never appear on the wire.
	if bytes.Contains(recorder.Body.Bytes(), []byte("encoding")) {
		t.Errorf("response leaks the encoding: %s", recorder.Body.String())
	}
}

func TestEnrollHandlerDuplicate(t *testing.T) {
	f := newFixture()
	f.enrollIdentity(t, "s100", "Alice")
	h := NewIdentitiesHandler(f.enroll, f.identities)

	req := multipartRequest(t, "/api/v1/identities", map[string]string{
		"external_id": "s100",
		"name":        "Alice Again",
	}, []byte("jpeg-bytes"))
	recorder := httptest.NewRecorder()

	h.Enroll(recorder, req)
	assertStatusCode(t, recorder, http.StatusConflict)
}

func TestEnrollHandlerMissingImage(t *testing.T) {
	f := newFixture()
	h := NewIdentitiesHandler(f.enroll, f.identities)

	req := multipartRequest(t, "/api/v1/identities", map[string]string{
		"external_id": "s100",
		"name":        "Alice",
	}, nil)
	recorder := httptest.NewRecorder()

	h.Enroll(recorder, req)
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestEnrollHandlerNoFaceInPhoto(t *testing.T) {
	f := newFixture()
	f.encoder.err = errors.New("no face found in the image")
	h := NewIdentitiesHandler(f.enroll, f.identities)

	req := multipartRequest(t, "/api/v1/identities", map[string]string{
		"external_id": "s100",
		"name":        "Alice",
	}, []byte("jpeg-bytes"))
	recorder := httptest.NewRecorder()

	h.Enroll(recorder, req)
	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
}

func TestListHandler(t *testing.T) {
	f := newFixture()
	f.enrollIdentity(t, "s100", "Alice")
	f.enrollIdentity(t, "s200", "Bob")
	h := NewIdentitiesHandler(f.enroll, f.identities)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil)
	recorder := httptest.NewRecorder()

	h.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp struct {
		Identities []identityResponse `json:"identities"`
	}
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Identities) != 2 {
		t.Fatalf("got %d identities, want 2", len(resp.Identities))
	}
	if resp.Identities[0].ExternalID != "s100" {
		t.Errorf("first identity = %+v", resp.Identities[0])
	}
}

func TestGetHandler(t *testing.T) {
	f := newFixture()
	id := f.enrollIdentity(t, "s100", "Alice")
	h := NewIdentitiesHandler(f.enroll, f.identities)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/identities/1", nil),
		map[string]string{"id": "1"},
	)
	recorder := httptest.NewRecorder()

	h.Get(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp identityResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.ID != id {
		t.Errorf("ID = %d, want %d", resp.ID, id)
	}
}

func TestGetHandlerNotFound(t *testing.T) {
	f := newFixture()
	h := NewIdentitiesHandler(f.enroll, f.identities)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/identities/42", nil),
		map[string]string{"id": "42"},
	)
	recorder := httptest.NewRecorder()

	h.Get(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestGetHandlerInvalidID(t *testing.T) {
	f := newFixture()
	h := NewIdentitiesHandler(f.enroll, f.identities)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/identities/abc", nil),
		map[string]string{"id": "abc"},
	)
	recorder := httptest.NewRecorder()

	h.Get(recorder, req)
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestUpdateHandler(t *testing.T) {
	f := newFixture()
	id := f.enrollIdentity(t, "s100", "Alice")
	h := NewIdentitiesHandler(f.enroll, f.identities)

	body, _ := json.Marshal(updateRequest{Name: "Alice Brown", Email: "ab@example.com", Group: "3B"})
	req := requestWithChiParams(
		httptest.NewRequest(http.MethodPut, "/api/v1/identities/1", bytes.NewReader(body)),
		map[string]string{"id": "1"},
	)
	recorder := httptest.NewRecorder()

	h.Update(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	updated, err := f.identities.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Name != "Alice Brown" || updated.Group != "3B" {
		t.Errorf("identity = %+v", updated)
	}
}

func TestUpdateHandlerBadBody(t *testing.T) {
	f := newFixture()
	f.enrollIdentity(t, "s100", "Alice")
	h := NewIdentitiesHandler(f.enroll, f.identities)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodPut, "/api/v1/identities/1", bytes.NewReader([]byte("not json"))),
		map[string]string{"id": "1"},
	)
	recorder := httptest.NewRecorder()

	h.Update(recorder, req)
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestRetakeHandler(t *testing.T) {
	f := newFixture()
	id := f.enrollIdentity(t, "s100", "Alice")
	h := NewIdentitiesHandler(f.enroll, f.identities)

	f.encoder.encoding = []float64{0, 1, 0}
	req := requestWithChiParams(
		multipartRequest(t, "/api/v1/identities/1/retake", nil, []byte("new-photo")),
		map[string]string{"id": "1"},
	)
	recorder := httptest.NewRecorder()

	h.Retake(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	stored, err := f.identities.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Encoding[1] != 1 {
		t.Errorf("encoding not replaced: %v", stored.Encoding)
	}
}

func TestDeleteHandler(t *testing.T) {
	f := newFixture()
	f.enrollIdentity(t, "s100", "Alice")
	h := NewIdentitiesHandler(f.enroll, f.identities)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodDelete, "/api/v1/identities/1", nil),
		map[string]string{"id": "1"},
	)
	recorder := httptest.NewRecorder()

	h.Delete(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if f.gallery.Len() != 0 {
		t.Error("identity still in gallery after delete")
	}
}

func TestDeleteHandlerNotFound(t *testing.T) {
	f := newFixture()
	h := NewIdentitiesHandler(f.enroll, f.identities)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodDelete, "/api/v1/identities/42", nil),
		map[string]string{"id": "42"},
	)
	recorder := httptest.NewRecorder()

	h.Delete(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}
