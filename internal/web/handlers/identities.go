package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/kadlecj/facetrack/internal/enroll"
	"github.com/kadlecj/facetrack/internal/gallery"
	"github.com/kadlecj/facetrack/internal/store"
)

// IdentitiesHandler serves the identity CRUD endpoints. Every mutation goes
// through the enrollment service so the store, gallery and day cache stay in
// sync.
type IdentitiesHandler struct {
	service    *enroll.Service
	identities store.IdentityReader
}

// NewIdentitiesHandler creates the handler.
func NewIdentitiesHandler(service *enroll.Service, identities store.IdentityReader) *IdentitiesHandler {
	return &IdentitiesHandler{service: service, identities: identities}
}

// identityResponse is the wire form of an identity. Reference encodings never
// leave the server.
type identityResponse struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Group      string    `json:"group,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toIdentityResponse(identity *store.Identity) identityResponse {
	return identityResponse{
		ID:         identity.ID,
		ExternalID: identity.ExternalID,
		Name:       identity.Name,
		Email:      identity.Email,
		Group:      identity.Group,
		CreatedAt:  identity.CreatedAt,
		UpdatedAt:  identity.UpdatedAt,
	}
}

// List handles GET /identities.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.identities.List(r.Context())
	if err != nil {
		log.Printf("listing identities: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}

	out := make([]identityResponse, 0, len(identities))
	for i := range identities {
		out = append(out, toIdentityResponse(&identities[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"identities": out})
}

// Get handles GET /identities/{id}.
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := identityIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid identity ID")
		return
	}

	identity, err := h.identities.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	if err != nil {
		log.Printf("getting identity %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to get identity")
		return
	}
	respondJSON(w, http.StatusOK, toIdentityResponse(identity))
}

// readUploadedImage pulls the "image" file out of a multipart request.
func readUploadedImage(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, fmt.Errorf("parsing upload: %w", err)
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("missing image file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image file")
	}
	return data, nil
}

// Enroll handles POST /identities: a multipart form with identity fields and
// one face image.
func (h *IdentitiesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	image, err := readUploadedImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, err := h.service.Enroll(r.Context(),
		r.FormValue("external_id"), r.FormValue("name"),
		r.FormValue("email"), r.FormValue("group"), image)
	switch {
	case errors.Is(err, store.ErrDuplicateIdentity):
		respondError(w, http.StatusConflict, "an identity with this external ID already exists")
		return
	case errors.Is(err, gallery.ErrInvalidEncoding):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		log.Printf("enrolling %s: %v", sanitizeForLog(r.FormValue("external_id")), err)
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	log.Printf("enrolled identity %s (%s)", sanitizeForLog(identity.ExternalID), sanitizeForLog(identity.Name))
	respondJSON(w, http.StatusCreated, toIdentityResponse(identity))
}

// updateRequest is the JSON body of a metadata update.
type updateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Group string `json:"group"`
}

// Update handles PUT /identities/{id} (metadata only; encodings change via
// Retake).
func (h *IdentitiesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := identityIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid identity ID")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	err := h.service.UpdateMetadata(r.Context(), id, req.Name, req.Email, req.Group)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	if err != nil {
		log.Printf("updating identity %d: %v", id, err)
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Retake handles POST /identities/{id}/retake: replaces the reference
// encoding from a new face image.
func (h *IdentitiesHandler) Retake(w http.ResponseWriter, r *http.Request) {
	id, ok := identityIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid identity ID")
		return
	}

	image, err := readUploadedImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, err := h.service.Retake(r.Context(), id, image)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "identity not found")
		return
	case err != nil:
		log.Printf("retake for identity %d: %v", id, err)
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toIdentityResponse(identity))
}

// Delete handles DELETE /identities/{id}.
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := identityIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid identity ID")
		return
	}

	err := h.service.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	if err != nil {
		log.Printf("deleting identity %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to delete identity")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
