package attendance

import (
	"context"
	"fmt"

	"github.com/kadlecj/facetrack/internal/store"
)

// Decision is the outcome of a duplicate-prevention check.
type Decision int

const (
	// Admitted means no record exists yet and the caller may attempt the write.
	Admitted Decision = iota
	// AlreadyPresent means attendance for the identity/day pair already
	// exists, either in the day cache or in the store.
	AlreadyPresent
)

// Guard gates attendance writes behind a two-layer duplicate check: the
// process-local day cache first, the persistent store second. The cache entry
// for an admitted identity is taken optimistically before any store I/O, which
// closes the race window between frames recognizing the same person back to
// back.
type Guard struct {
	cache  *DayCache
	events store.AttendanceReader
}

// NewGuard creates a guard over the given cache and attendance reader.
func NewGuard(cache *DayCache, events store.AttendanceReader) *Guard {
	return &Guard{cache: cache, events: events}
}

// TryAdmit decides whether a recognized identity may be committed as a new
// attendance event for the day.
//
// The store check covers cold starts and other writers (another camera
// station, a manual entry): a hit backfills the cache, so the next frame for
// the same person is answered without I/O. When the store check itself fails
// the optimistic cache entry is revoked and the error returned; the frame
// loop treats that as a transient per-face failure.
func (g *Guard) TryAdmit(ctx context.Context, identityID int64, day string) (Decision, error) {
	if !g.cache.Admit(identityID, day) {
		return AlreadyPresent, nil
	}

	exists, err := g.events.Has(ctx, identityID, day)
	if err != nil {
		g.cache.Revoke(identityID, day)
		return AlreadyPresent, fmt.Errorf("checking attendance for identity %d on %s: %w", identityID, day, err)
	}
	if exists {
		// Keep the cache entry: it is now a correct backfill.
		return AlreadyPresent, nil
	}

	return Admitted, nil
}

// Revoke releases an admission after a failed non-duplicate write so a later
// frame can retry.
func (g *Guard) Revoke(identityID int64, day string) {
	g.cache.Revoke(identityID, day)
}
