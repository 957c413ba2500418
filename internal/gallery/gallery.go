// Package gallery holds the in-memory collection of reference encodings used
// as the search space for matching. It is a cache over the identity table:
// rebuilt from it at startup and kept in sync on every enrollment, deletion
// and re-enrollment.
package gallery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kadlecj/facetrack/internal/match"
	"github.com/kadlecj/facetrack/internal/store"
)

// ErrInvalidEncoding is returned for a vector whose dimension does not match
// the gallery, or which contains non-finite or all-zero values.
var ErrInvalidEncoding = fmt.Errorf("invalid reference encoding")

// hnswMaxNeighbors is the M parameter of the candidate graph.
const hnswMaxNeighbors = 16

// Gallery maps identity IDs to reference encodings. Mutations replace the
// published snapshot wholesale; an in-flight matching pass keeps reading the
// snapshot it started with.
type Gallery struct {
	mu       sync.RWMutex
	dim      int
	refs     map[int64]match.Reference
	snapshot *Snapshot // current immutable view, rebuilt on mutation

	useHNSW bool
	graph   *hnsw.Graph[int64]
}

// New creates an empty gallery for encodings of the given dimension.
func New(dim int) *Gallery {
	return &Gallery{
		dim:  dim,
		refs: make(map[int64]match.Reference),
	}
}

// EnableHNSW turns on the in-memory candidate index. Exact distances and the
// tie-break rule are still applied by the matcher over the candidates, so the
// index only narrows the search, it never decides a match.
func (g *Gallery) EnableHNSW() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.useHNSW = true
	g.rebuildGraphLocked()
}

// Upsert adds or replaces the reference encoding for an identity.
func (g *Gallery) Upsert(id int64, name string, encoding []float64) error {
	if !match.Usable(encoding, g.dim) {
		return fmt.Errorf("%w: identity %d (dim %d, want %d)", ErrInvalidEncoding, id, len(encoding), g.dim)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.refs[id] = match.Reference{
		ID:       id,
		Name:     name,
		Encoding: append([]float64(nil), encoding...),
	}
	g.republishLocked()
	return nil
}

// Remove drops an identity's reference encoding. Removing an unknown identity
// is a no-op.
func (g *Gallery) Remove(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.refs[id]; !ok {
		return
	}
	delete(g.refs, id)
	g.republishLocked()
}

// Len returns the number of enrolled references.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.refs)
}

// Snapshot returns the current immutable view for a matching pass.
func (g *Gallery) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.snapshot == nil {
		return &Snapshot{}
	}
	return g.snapshot
}

// RebuildFrom replaces the whole gallery with identities read from the store.
// Entries with malformed encodings are skipped and reported; one bad record
// must not take down the rest of the gallery.
func (g *Gallery) RebuildFrom(ctx context.Context, identities store.IdentityReader) (skipped []int64, err error) {
	all, err := identities.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading identities: %w", err)
	}

	refs := make(map[int64]match.Reference, len(all))
	for _, identity := range all {
		if !match.Usable(identity.Encoding, g.dim) {
			skipped = append(skipped, identity.ID)
			continue
		}
		refs[identity.ID] = match.Reference{
			ID:       identity.ID,
			Name:     identity.Name,
			Encoding: append([]float64(nil), identity.Encoding...),
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.refs = refs
	g.republishLocked()
	return skipped, nil
}

// republishLocked rebuilds the published snapshot (and candidate graph) after
// a mutation. Callers hold the write lock.
func (g *Gallery) republishLocked() {
	refs := make([]match.Reference, 0, len(g.refs))
	for _, ref := range g.refs {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })

	// The snapshot gets its own map; the live one keeps changing under the
	// write lock while published snapshots must not.
	byID := make(map[int64]match.Reference, len(refs))
	for _, ref := range refs {
		byID[ref.ID] = ref
	}

	g.rebuildGraphLocked()
	g.snapshot = &Snapshot{refs: refs, graph: g.graph, byID: byID}
}

func (g *Gallery) rebuildGraphLocked() {
	if !g.useHNSW || len(g.refs) == 0 {
		g.graph = nil
		return
	}

	graph := hnsw.NewGraph[int64]()
	graph.M = hnswMaxNeighbors
	graph.Ml = 1.0 / float64(hnswMaxNeighbors)
	graph.Distance = hnsw.EuclideanDistance

	for _, ref := range g.refs {
		graph.Add(hnsw.MakeNode(ref.ID, toFloat32(ref.Encoding)))
	}
	g.graph = graph
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Snapshot is an immutable view of the gallery. It satisfies match.Snapshot.
type Snapshot struct {
	refs  []match.Reference
	graph *hnsw.Graph[int64]
	byID  map[int64]match.Reference
}

// References returns all reference encodings ordered by identity ID. The
// returned slice must not be mutated.
func (s *Snapshot) References() []match.Reference {
	return s.refs
}

// Candidates returns the k approximate nearest references, or nil when the
// candidate index is disabled. The search is approximate: an equidistant
// reference left out of the candidate set escapes the matcher's lowest-ID
// tie break. The exhaustive scan over References is the correctness
// baseline; enable the index only when that trade-off is acceptable.
func (s *Snapshot) Candidates(probe []float64, k int) []match.Reference {
	if s.graph == nil {
		return nil
	}

	neighbors := s.graph.Search(toFloat32(probe), k)
	out := make([]match.Reference, 0, len(neighbors))
	for _, n := range neighbors {
		if ref, ok := s.byID[n.Key]; ok {
			out = append(out, ref)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Len returns the number of references in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.refs)
}
