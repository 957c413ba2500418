package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kadlecj/facetrack/internal/store"
)

// AttendanceRepository implements store.AttendanceReader and store.AttendanceWriter.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Insert performs the conditional insert behind the one-record-per-day
// invariant. The RETURNING clause yields no row when the ON CONFLICT arm
// swallowed the insert, which maps to ErrDuplicateAttendance.
func (r *AttendanceRepository) Insert(ctx context.Context, event *store.AttendanceEvent) error {
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO attendance (identity_id, day, time, status, method, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT attendance_identity_day_key DO NOTHING
		RETURNING id, created_at
	`, event.IdentityID, event.Day, event.Time, event.Status, event.Method, event.Confidence).
		Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrDuplicateAttendance
		}
		return fmt.Errorf("insert attendance for identity %d on %s: %w", event.IdentityID, event.Day, err)
	}
	return nil
}

// Has reports whether an event exists for (identityID, day).
func (r *AttendanceRepository) Has(ctx context.Context, identityID int64, day string) (bool, error) {
	var exists bool
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM attendance WHERE identity_id = $1 AND day = $2)
	`, identityID, day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendance for identity %d on %s: %w", identityID, day, err)
	}
	return exists, nil
}

const attendanceColumns = "id, identity_id, to_char(day, 'YYYY-MM-DD'), to_char(time, 'HH24:MI:SS'), status, method, COALESCE(confidence, 0), created_at"

func (r *AttendanceRepository) queryEvents(ctx context.Context, query string, args ...any) ([]store.AttendanceEvent, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var events []store.AttendanceEvent
	for rows.Next() {
		var e store.AttendanceEvent
		if err := rows.Scan(&e.ID, &e.IdentityID, &e.Day, &e.Time, &e.Status, &e.Method, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attendance event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListByDay returns all events for one day ordered by time.
func (r *AttendanceRepository) ListByDay(ctx context.Context, day string) ([]store.AttendanceEvent, error) {
	return r.queryEvents(ctx,
		"SELECT "+attendanceColumns+" FROM attendance WHERE day = $1 ORDER BY time", day)
}

// ListByIdentity returns all events for one identity, newest first.
func (r *AttendanceRepository) ListByIdentity(ctx context.Context, identityID int64) ([]store.AttendanceEvent, error) {
	return r.queryEvents(ctx,
		"SELECT "+attendanceColumns+" FROM attendance WHERE identity_id = $1 ORDER BY day DESC, time DESC", identityID)
}

// Recent returns the newest events across all identities.
func (r *AttendanceRepository) Recent(ctx context.Context, limit int) ([]store.AttendanceEvent, error) {
	return r.queryEvents(ctx,
		"SELECT "+attendanceColumns+" FROM attendance ORDER BY created_at DESC LIMIT $1", limit)
}

// StatsByDay returns per-day attendance counts for the inclusive range.
func (r *AttendanceRepository) StatsByDay(ctx context.Context, fromDay, toDay string) ([]store.DayStats, error) {
	var enrolled int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&enrolled); err != nil {
		return nil, fmt.Errorf("count identities: %w", err)
	}

	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT to_char(day, 'YYYY-MM-DD'), COUNT(*)
		FROM attendance
		WHERE day BETWEEN $1 AND $2
		GROUP BY day
		ORDER BY day
	`, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("query attendance stats: %w", err)
	}
	defer rows.Close()

	var stats []store.DayStats
	for rows.Next() {
		s := store.DayStats{Enrolled: enrolled}
		if err := rows.Scan(&s.Day, &s.Present); err != nil {
			return nil, fmt.Errorf("scan day stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
