// Package enroll implements identity lifecycle operations shared between the
// web handlers and the CLI: enrollment from a face image, metadata updates,
// re-enrollment (retake) and deletion. All mutations keep the persistent
// store, the in-memory gallery and the day cache consistent.
package enroll

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadlecj/facetrack/internal/attendance"
	"github.com/kadlecj/facetrack/internal/gallery"
	"github.com/kadlecj/facetrack/internal/match"
	"github.com/kadlecj/facetrack/internal/store"
)

// IdentityStore combines read and write access to identities.
type IdentityStore interface {
	store.IdentityReader
	store.IdentityWriter
}

// Encoder turns an enrollment photo into a single reference encoding.
type Encoder interface {
	EncodeImage(ctx context.Context, imageJPEG []byte) ([]float64, error)
}

// Service performs identity lifecycle operations.
type Service struct {
	identities IdentityStore
	encoder    Encoder
	gallery    *gallery.Gallery
	cache      *attendance.DayCache
	dim        int
}

// NewService creates an enrollment service.
func NewService(identities IdentityStore, encoder Encoder, g *gallery.Gallery, cache *attendance.DayCache, dim int) *Service {
	return &Service{identities: identities, encoder: encoder, gallery: g, cache: cache, dim: dim}
}

// Enroll encodes the face image and creates the identity. The image must
// contain exactly one face.
func (s *Service) Enroll(ctx context.Context, externalID, name, email, group string, imageJPEG []byte) (*store.Identity, error) {
	externalID = strings.TrimSpace(externalID)
	name = strings.TrimSpace(name)
	if externalID == "" || name == "" {
		return nil, fmt.Errorf("external ID and name are required")
	}

	encoding, err := s.encoder.EncodeImage(ctx, imageJPEG)
	if err != nil {
		return nil, fmt.Errorf("encoding face: %w", err)
	}
	if !match.Usable(encoding, s.dim) {
		return nil, fmt.Errorf("%w: got dimension %d, want %d", gallery.ErrInvalidEncoding, len(encoding), s.dim)
	}

	identity := &store.Identity{
		ExternalID: externalID,
		Name:       name,
		Email:      strings.TrimSpace(email),
		Group:      strings.TrimSpace(group),
		Encoding:   encoding,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}

	if err := s.gallery.Upsert(identity.ID, identity.Name, encoding); err != nil {
		// The store insert already validated the encoding; a failure here
		// would mean the gallery and store disagree on dimensions.
		return nil, fmt.Errorf("updating gallery: %w", err)
	}
	return identity, nil
}

// Retake re-encodes the identity from a new face image and atomically
// replaces the reference vector. The day cache entry is purged so the person
// is re-verified against the new encoding before any further attendance
// decision relies on it.
func (s *Service) Retake(ctx context.Context, id int64, imageJPEG []byte) (*store.Identity, error) {
	identity, err := s.identities.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	encoding, err := s.encoder.EncodeImage(ctx, imageJPEG)
	if err != nil {
		return nil, fmt.Errorf("encoding face: %w", err)
	}
	if !match.Usable(encoding, s.dim) {
		return nil, fmt.Errorf("%w: got dimension %d, want %d", gallery.ErrInvalidEncoding, len(encoding), s.dim)
	}

	if err := s.identities.ReplaceEncoding(ctx, id, encoding); err != nil {
		return nil, err
	}
	if err := s.gallery.Upsert(id, identity.Name, encoding); err != nil {
		return nil, fmt.Errorf("updating gallery: %w", err)
	}
	s.cache.Purge(id)

	identity.Encoding = encoding
	return identity, nil
}

// UpdateMetadata changes name/email/group. The gallery carries the name for
// feedback messages, so it is refreshed too.
func (s *Service) UpdateMetadata(ctx context.Context, id int64, name, email, group string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if err := s.identities.UpdateMetadata(ctx, id, name, email, group); err != nil {
		return err
	}

	identity, err := s.identities.Get(ctx, id)
	if err != nil {
		return err
	}
	if match.Usable(identity.Encoding, s.dim) {
		if err := s.gallery.Upsert(id, identity.Name, identity.Encoding); err != nil {
			return fmt.Errorf("updating gallery: %w", err)
		}
	}
	return nil
}

// Delete removes the identity everywhere: store, gallery and day cache. Any
// subsequent probe for the person can only come back Unknown.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.identities.Delete(ctx, id); err != nil {
		return err
	}
	s.gallery.Remove(id)
	s.cache.Purge(id)
	return nil
}
