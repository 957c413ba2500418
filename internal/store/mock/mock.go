// Package mock provides in-memory implementations of the store interfaces for
// testing. The attendance writer enforces the same one-record-per-day
// uniqueness the PostgreSQL backend does, so duplicate races can be exercised
// without a database.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kadlecj/facetrack/internal/store"
)

// IdentityStore is a mock implementation of store.IdentityReader/Writer.
type IdentityStore struct {
	mu         sync.RWMutex
	nextID     int64
	identities map[int64]*store.Identity

	// Error injection
	GetError    error
	ListError   error
	CreateError error
}

// NewIdentityStore creates an empty mock identity store.
func NewIdentityStore() *IdentityStore {
	return &IdentityStore{nextID: 1, identities: make(map[int64]*store.Identity)}
}

// Get retrieves an identity by database ID.
func (m *IdentityStore) Get(ctx context.Context, id int64) (*store.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.identities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *identity
	return &cp, nil
}

// GetByExternalID retrieves an identity by its stable external identifier.
func (m *IdentityStore) GetByExternalID(ctx context.Context, externalID string) (*store.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, identity := range m.identities {
		if identity.ExternalID == externalID {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// List returns all identities ordered by ID.
func (m *IdentityStore) List(ctx context.Context) ([]store.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.Identity, 0, len(m.identities))
	for _, identity := range m.identities {
		out = append(out, *identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Count returns the number of enrolled identities.
func (m *IdentityStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// Create inserts a new identity and assigns it an ID.
func (m *IdentityStore) Create(ctx context.Context, identity *store.Identity) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.identities {
		if existing.ExternalID == identity.ExternalID {
			return store.ErrDuplicateIdentity
		}
	}
	identity.ID = m.nextID
	m.nextID++
	identity.CreatedAt = time.Now()
	identity.UpdatedAt = identity.CreatedAt
	cp := *identity
	m.identities[identity.ID] = &cp
	return nil
}

// UpdateMetadata updates name/email/group without touching the encoding.
func (m *IdentityStore) UpdateMetadata(ctx context.Context, id int64, name, email, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return store.ErrNotFound
	}
	identity.Name = name
	identity.Email = email
	identity.Group = group
	identity.UpdatedAt = time.Now()
	return nil
}

// ReplaceEncoding atomically swaps the reference encoding.
func (m *IdentityStore) ReplaceEncoding(ctx context.Context, id int64, encoding []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return store.ErrNotFound
	}
	identity.Encoding = append([]float64(nil), encoding...)
	identity.UpdatedAt = time.Now()
	return nil
}

// Delete removes an identity.
func (m *IdentityStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.identities, id)
	return nil
}

// AttendanceStore is a mock implementation of store.AttendanceReader/Writer.
type AttendanceStore struct {
	mu     sync.Mutex
	nextID int64
	events []store.AttendanceEvent
	byKey  map[string]bool

	// Error injection
	HasError    error
	InsertError error

	// InsertDelay, when set, sleeps inside the critical section to widen
	// race windows in concurrency tests.
	InsertDelay time.Duration
}

// NewAttendanceStore creates an empty mock attendance store.
func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{nextID: 1, byKey: make(map[string]bool)}
}

func attendanceKey(identityID int64, day string) string {
	return fmt.Sprintf("%d/%s", identityID, day)
}

// Insert performs a conditional insert with the same uniqueness semantics as
// the PostgreSQL backend.
func (m *AttendanceStore) Insert(ctx context.Context, event *store.AttendanceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	if m.InsertDelay > 0 {
		time.Sleep(m.InsertDelay)
	}
	key := attendanceKey(event.IdentityID, event.Day)
	if m.byKey[key] {
		return store.ErrDuplicateAttendance
	}
	event.ID = m.nextID
	m.nextID++
	event.CreatedAt = time.Now()
	m.byKey[key] = true
	m.events = append(m.events, *event)
	return nil
}

// Has reports whether an event exists for (identityID, day).
func (m *AttendanceStore) Has(ctx context.Context, identityID int64, day string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HasError != nil {
		return false, m.HasError
	}
	return m.byKey[attendanceKey(identityID, day)], nil
}

// SetInsertError swaps the injected insert error while other goroutines use
// the store.
func (m *AttendanceStore) SetInsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertError = err
}

// ListByDay returns all events for one day ordered by time.
func (m *AttendanceStore) ListByDay(ctx context.Context, day string) ([]store.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.AttendanceEvent
	for _, e := range m.events {
		if e.Day == day {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

// ListByIdentity returns all events for one identity, newest first.
func (m *AttendanceStore) ListByIdentity(ctx context.Context, identityID int64) ([]store.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.AttendanceEvent
	for _, e := range m.events {
		if e.IdentityID == identityID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day > out[j].Day
		}
		return out[i].Time > out[j].Time
	})
	return out, nil
}

// Recent returns the newest events across all identities.
func (m *AttendanceStore) Recent(ctx context.Context, limit int) ([]store.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]store.AttendanceEvent(nil), m.events...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// StatsByDay returns per-day attendance counts for the inclusive range.
func (m *AttendanceStore) StatsByDay(ctx context.Context, fromDay, toDay string) ([]store.DayStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range m.events {
		if e.Day >= fromDay && e.Day <= toDay {
			counts[e.Day]++
		}
	}
	var stats []store.DayStats
	for day, n := range counts {
		stats = append(stats, store.DayStats{Day: day, Present: n})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Day < stats[j].Day })
	return stats, nil
}

// Events returns a copy of all recorded events, for assertions.
func (m *AttendanceStore) Events() []store.AttendanceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.AttendanceEvent(nil), m.events...)
}
