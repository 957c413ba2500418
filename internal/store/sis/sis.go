// Package sis reads the student roster from an external student information
// system running on MySQL/MariaDB. Access is strictly read-only; facetrack
// only mirrors name/email/group metadata for identities that are enrolled
// here by external ID.
package sis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Student is one roster row in the external system.
type Student struct {
	ExternalID string
	Name       string
	Email      string
	Group      string
}

// Pool manages a read-only MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("roster database DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping roster database: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing roster database connection: %w", err)
		}
	}
	return nil
}

// ListStudents returns the full roster ordered by external ID.
func (p *Pool) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT student_number, full_name, COALESCE(email, ''), COALESCE(course, '')
		FROM students
		ORDER BY student_number
	`)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ExternalID, &s.Name, &s.Email, &s.Group); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}
