package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadlecj/facetrack/internal/attendance"
	"github.com/kadlecj/facetrack/internal/enroll"
	"github.com/kadlecj/facetrack/internal/gallery"
	"github.com/kadlecj/facetrack/internal/store/mock"
)

const testDim = 3

// fakeEncoder stands in for the vision service in handler tests.
type fakeEncoder struct {
	encoding []float64
	err      error
}

func (e *fakeEncoder) EncodeImage(ctx context.Context, imageJPEG []byte) ([]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.encoding, nil
}

// fixture wires the handler dependencies over in-memory stores.
type fixture struct {
	identities *mock.IdentityStore
	events     *mock.AttendanceStore
	gallery    *gallery.Gallery
	cache      *attendance.DayCache
	guard      *attendance.Guard
	recorder   *attendance.Recorder
	encoder    *fakeEncoder
	enroll     *enroll.Service
}

func newFixture() *fixture {
	identities := mock.NewIdentityStore()
	events := mock.NewAttendanceStore()
	g := gallery.New(testDim)
	cache := attendance.NewDayCache()
	encoder := &fakeEncoder{encoding: []float64{0, 0, 1}}

	return &fixture{
		identities: identities,
		events:     events,
		gallery:    g,
		cache:      cache,
		guard:      attendance.NewGuard(cache, events),
		recorder:   attendance.NewRecorder(events, time.UTC),
		encoder:    encoder,
		enroll:     enroll.NewService(identities, encoder, g, cache, testDim),
	}
}

// enrollIdentity enrolls one test identity through the service.
func (f *fixture) enrollIdentity(t *testing.T, externalID, name string) int64 {
	t.Helper()
	identity, err := f.enroll.Enroll(context.Background(), externalID, name, "", "", []byte("photo"))
	if err != nil {
		t.Fatalf("enrolling %s: %v", externalID, err)
	}
	return identity.ID
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartRequest builds a multipart form request with identity fields and an
// image file.
func multipartRequest(t *testing.T, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			t.Fatalf("writing field %s: %v", key, err)
		}
	}
	if image != nil {
		fw, err := w.CreateFormFile("image", "face.jpg")
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		if _, err := fw.Write(image); err != nil {
			t.Fatalf("writing image: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, want int) {
	t.Helper()
	if recorder.Code != want {
		t.Errorf("status = %d, want %d (body: %s)", recorder.Code, want, recorder.Body.String())
	}
}

func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), out); err != nil {
		t.Fatalf("unmarshaling response %q: %v", recorder.Body.String(), err)
	}
}
