package attendance

import (
	"sync"
	"testing"
)

func TestAdmitOncePerDay(t *testing.T) {
	c := NewDayCache()

	if !c.Admit(1, "2026-09-01") {
		t.Fatal("first admit should succeed")
	}
	if c.Admit(1, "2026-09-01") {
		t.Error("second admit for the same day should fail")
	}
	if !c.Admit(2, "2026-09-01") {
		t.Error("different identity should be admitted")
	}
}

func TestDayRollover(t *testing.T) {
	c := NewDayCache()

	if !c.Admit(1, "2026-09-01") {
		t.Fatal("admit failed")
	}
	if !c.Contains(1, "2026-09-01") {
		t.Fatal("cache lost the admission")
	}

	// A new day drops all of yesterday's entries.
	if !c.Admit(1, "2026-09-02") {
		t.Error("admission should succeed after rollover")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d after rollover, want 1", c.Len())
	}
}

func TestRevokeIsDayScoped(t *testing.T) {
	c := NewDayCache()
	if !c.Admit(1, "2026-09-01") {
		t.Fatal("admit failed")
	}

	// Revoking for another day must not disturb today's entry.
	c.Revoke(1, "2026-08-31")
	if !c.Contains(1, "2026-09-01") {
		t.Error("revoke for a different day removed today's entry")
	}

	c.Revoke(1, "2026-09-01")
	if !c.Admit(1, "2026-09-01") {
		t.Error("admission should succeed after revoke")
	}
}

func TestPurgeIgnoresDay(t *testing.T) {
	c := NewDayCache()
	if !c.Admit(1, "2026-09-01") {
		t.Fatal("admit failed")
	}

	c.Purge(1)
	if c.Contains(1, "2026-09-01") {
		t.Error("purged identity still cached")
	}
}

func TestReset(t *testing.T) {
	c := NewDayCache()
	c.Admit(1, "2026-09-01")
	c.Admit(2, "2026-09-01")

	c.Reset()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after reset, want 0", c.Len())
	}
	if !c.Admit(1, "2026-09-01") {
		t.Error("admission should succeed after reset")
	}
}

func TestAdmitIsAtomicUnderConcurrency(t *testing.T) {
	c := NewDayCache()

	const goroutines = 50
	var wg sync.WaitGroup
	admitted := make(chan struct{}, goroutines)

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Admit(7, "2026-09-01") {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	if n := len(admitted); n != 1 {
		t.Errorf("%d goroutines admitted, want exactly 1", n)
	}
}
