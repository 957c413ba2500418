package store

import (
	"errors"
	"time"
)

// Sentinel errors shared by all backends.
var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateIdentity is returned when an identity with the same
	// external ID is enrolled twice.
	ErrDuplicateIdentity = errors.New("identity already enrolled")

	// ErrDuplicateAttendance is returned when an insert loses against the
	// UNIQUE(identity_id, day) constraint. It is an expected steady-state
	// outcome, not a failure.
	ErrDuplicateAttendance = errors.New("attendance already recorded for this day")
)

// Identity is an enrolled person with a single reference encoding.
type Identity struct {
	ID         int64
	ExternalID string // stable external identifier (student number etc.)
	Name       string
	Email      string
	Group      string // course/class, free-form
	Encoding   []float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AttendanceEvent is one confirmed presence of an identity on a calendar day.
// At most one exists per (IdentityID, Day); the database enforces it.
type AttendanceEvent struct {
	ID         int64
	IdentityID int64
	Day        string // calendar day in DayFormat
	Time       string // time of day, HH:MM:SS
	Status     string
	Method     string
	Confidence float64
	CreatedAt  time.Time
}

// DayStats summarizes attendance for one day.
type DayStats struct {
	Day      string
	Present  int
	Enrolled int
}

// DayFormat is the canonical wire/database format for attendance days.
const DayFormat = "2006-01-02"

// Attendance methods.
const (
	MethodFaceRecognition = "face_recognition"
	MethodManual          = "manual"
)

// DayOf returns the calendar day of t in t's location, in DayFormat.
func DayOf(t time.Time) string {
	return t.Format(DayFormat)
}
