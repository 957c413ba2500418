// Package match implements nearest-reference matching of face encodings.
//
// A probe either matches the single nearest enrolled reference within a fixed
// distance tolerance, or it matches nothing. Matching never fails for valid
// input: malformed probes (wrong dimension, NaN, all-zero) simply produce no
// match.
package match

import "math"

// tieEpsilon bounds the floating-point slack within which two references are
// considered equidistant from a probe. Ties resolve to the lowest identity ID;
// silent nondeterminism here would make attendance results irreproducible.
const tieEpsilon = 1e-9

// Reference is one enrolled identity's encoding as seen by the matcher.
type Reference struct {
	ID       int64
	Name     string
	Encoding []float64
}

// Snapshot is an immutable view of the gallery for one matching pass.
type Snapshot interface {
	// References returns all reference encodings ordered by identity ID.
	References() []Reference
	// Candidates returns the likely nearest references for the probe, or nil
	// when no accelerated index is available. Callers fall back to scanning
	// References.
	Candidates(probe []float64, k int) []Reference
	// Len returns the number of references in the snapshot.
	Len() int
}

// Result is the outcome of matching one probe against the gallery.
type Result struct {
	Matched    bool
	IdentityID int64
	Name       string
	Distance   float64
	Confidence float64
}

// Matcher matches probe encodings against gallery snapshots.
type Matcher struct {
	tolerance  float64
	dim        int
	candidateK int
}

// New creates a matcher with the given distance tolerance and expected
// encoding dimension.
func New(tolerance float64, dim int) *Matcher {
	return &Matcher{tolerance: tolerance, dim: dim, candidateK: 8}
}

// Tolerance returns the configured distance tolerance.
func (m *Matcher) Tolerance() float64 {
	return m.tolerance
}

// Match finds the nearest reference to the probe. A probe at distance exactly
// equal to the tolerance still matches; anything beyond it does not. An empty
// snapshot or an unusable probe yields an unmatched result.
func (m *Matcher) Match(probe []float64, snap Snapshot) Result {
	if snap == nil || snap.Len() == 0 || !Usable(probe, m.dim) {
		return Result{}
	}

	refs := snap.Candidates(probe, m.candidateK)
	if refs == nil {
		refs = snap.References()
	}

	best := math.Inf(1)
	var bestRef *Reference
	for i := range refs {
		d := EuclideanDistance(probe, refs[i].Encoding)
		if math.IsInf(d, 1) {
			// Broken reference entry; skip it without poisoning the rest.
			continue
		}
		switch {
		case bestRef == nil || d < best-tieEpsilon:
			best, bestRef = d, &refs[i]
		case d <= best+tieEpsilon && refs[i].ID < bestRef.ID:
			// Equidistant within floating-point tolerance; lowest ID wins.
			best, bestRef = math.Min(best, d), &refs[i]
		}
	}

	if bestRef == nil || best > m.tolerance {
		return Result{}
	}

	confidence := 1 - best
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return Result{
		Matched:    true,
		IdentityID: bestRef.ID,
		Name:       bestRef.Name,
		Distance:   best,
		Confidence: confidence,
	}
}
