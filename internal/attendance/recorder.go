package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/kadlecj/facetrack/internal/store"
)

// Recorder commits accepted matches into persistent storage. The conditional
// insert it performs is the single true source of the one-record-per-day
// invariant; everything in front of it only avoids pointless attempts.
type Recorder struct {
	events store.AttendanceWriter
	loc    *time.Location
}

// NewRecorder creates a recorder writing through the given attendance writer.
// Event days and times are taken in loc.
func NewRecorder(events store.AttendanceWriter, loc *time.Location) *Recorder {
	if loc == nil {
		loc = time.Local
	}
	return &Recorder{events: events, loc: loc}
}

// Now returns the current instant in the recorder's time zone. The session
// derives the attendance day from it so that the cache and the store always
// agree on what "today" means.
func (r *Recorder) Now() time.Time {
	return time.Now().In(r.loc)
}

// Record inserts one attendance event. Returns the stored event, or
// store.ErrDuplicateAttendance when a concurrent writer won the race — the
// caller reports that exactly like a cache-level duplicate, never as an
// error.
func (r *Recorder) Record(ctx context.Context, identityID int64, at time.Time, confidence float64, method string) (*store.AttendanceEvent, error) {
	at = at.In(r.loc)
	event := &store.AttendanceEvent{
		IdentityID: identityID,
		Day:        store.DayOf(at),
		Time:       at.Format("15:04:05"),
		Status:     "present",
		Method:     method,
		Confidence: confidence,
	}

	if err := r.events.Insert(ctx, event); err != nil {
		if errors.Is(err, store.ErrDuplicateAttendance) {
			return nil, store.ErrDuplicateAttendance
		}
		return nil, err
	}
	return event, nil
}
