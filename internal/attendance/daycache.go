// Package attendance implements duplicate prevention and recording of
// attendance events. The day cache is a performance layer only; the database
// uniqueness constraint behind the Recorder is what actually guarantees at
// most one record per identity per day.
package attendance

import "sync"

// DayCache tracks identities already confirmed present on the current
// calendar day, so that repeated recognitions of the same person within a
// session skip the database round trip.
//
// The cache is scoped to a single day: passing a different day invalidates
// the whole set (midnight rollover). It never decides that attendance WAS
// recorded; only that there is no point re-trying.
type DayCache struct {
	mu      sync.Mutex
	day     string
	present map[int64]bool
}

// NewDayCache creates an empty day cache.
func NewDayCache() *DayCache {
	return &DayCache{present: make(map[int64]bool)}
}

// Admit atomically checks and reserves the (identity, day) slot. It returns
// false when the identity is already admitted for the day. The check-and-add
// is one critical section, so two near-simultaneous frames recognizing the
// same person cannot both pass.
func (c *DayCache) Admit(identityID int64, day string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolloverLocked(day)
	if c.present[identityID] {
		return false
	}
	c.present[identityID] = true
	return true
}

// Contains reports whether the identity is cached as present on the day.
func (c *DayCache) Contains(identityID int64, day string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolloverLocked(day)
	return c.present[identityID]
}

// Revoke removes an optimistic entry, e.g. after a failed persistent write,
// so that a later frame may retry. Revoking for a day the cache no longer
// tracks is a no-op.
func (c *DayCache) Revoke(identityID int64, day string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.day != day {
		return
	}
	delete(c.present, identityID)
}

// Purge removes the identity from the cache regardless of day. Called when an
// identity is deleted or re-enrolled.
func (c *DayCache) Purge(identityID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.present, identityID)
}

// Reset drops all cached entries.
func (c *DayCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.day = ""
	c.present = make(map[int64]bool)
}

// Len returns the number of identities cached for the current day.
func (c *DayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.present)
}

// rolloverLocked invalidates the set when the day changes. Callers hold c.mu.
func (c *DayCache) rolloverLocked(day string) {
	if c.day == day {
		return
	}
	c.day = day
	c.present = make(map[int64]bool)
}
