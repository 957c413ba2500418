package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kadlecj/facetrack/internal/store"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// IdentityRepository implements store.IdentityReader and store.IdentityWriter.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// toVector converts a reference encoding to the pgvector column type.
func toVector(encoding []float64) pgvector.Vector {
	v := make([]float32, len(encoding))
	for i, x := range encoding {
		v[i] = float32(x)
	}
	return pgvector.NewVector(v)
}

// fromVector converts a pgvector column value back to a reference encoding.
func fromVector(v pgvector.Vector) []float64 {
	s := v.Slice()
	out := make([]float64, len(s))
	for i, x := range s {
		out[i] = float64(x)
	}
	return out
}

const identityColumns = "id, external_id, name, email, group_name, encoding, created_at, updated_at"

func scanIdentity(row interface{ Scan(...any) error }) (*store.Identity, error) {
	var identity store.Identity
	var vec pgvector.Vector
	err := row.Scan(&identity.ID, &identity.ExternalID, &identity.Name, &identity.Email,
		&identity.Group, &vec, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		return nil, err
	}
	identity.Encoding = fromVector(vec)
	return &identity, nil
}

// Get retrieves an identity by database ID.
func (r *IdentityRepository) Get(ctx context.Context, id int64) (*store.Identity, error) {
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE id = $1", id)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query identity %d: %w", id, err)
	}
	return identity, nil
}

// GetByExternalID retrieves an identity by its stable external identifier.
func (r *IdentityRepository) GetByExternalID(ctx context.Context, externalID string) (*store.Identity, error) {
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE external_id = $1", externalID)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query identity %q: %w", externalID, err)
	}
	return identity, nil
}

// List returns all identities ordered by ID.
func (r *IdentityRepository) List(ctx context.Context) ([]store.Identity, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT "+identityColumns+" FROM identities ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []store.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, *identity)
	}
	return identities, rows.Err()
}

// Count returns the number of enrolled identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count)
	return count, err
}

// Create inserts a new identity and returns it with the ID populated.
func (r *IdentityRepository) Create(ctx context.Context, identity *store.Identity) error {
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO identities (external_id, name, email, group_name, encoding)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, identity.ExternalID, identity.Name, identity.Email, identity.Group, toVector(identity.Encoding)).
		Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicateIdentity
	}
	if err != nil {
		return fmt.Errorf("insert identity %q: %w", identity.ExternalID, err)
	}
	return nil
}

// UpdateMetadata updates name/email/group without touching the encoding.
func (r *IdentityRepository) UpdateMetadata(ctx context.Context, id int64, name, email, group string) error {
	res, err := r.pool.db.ExecContext(ctx, `
		UPDATE identities SET name = $2, email = $3, group_name = $4, updated_at = NOW()
		WHERE id = $1
	`, id, name, email, group)
	if err != nil {
		return fmt.Errorf("update identity %d: %w", id, err)
	}
	return requireRow(res)
}

// ReplaceEncoding atomically swaps the reference encoding (re-enrollment).
func (r *IdentityRepository) ReplaceEncoding(ctx context.Context, id int64, encoding []float64) error {
	res, err := r.pool.db.ExecContext(ctx, `
		UPDATE identities SET encoding = $2, updated_at = NOW()
		WHERE id = $1
	`, id, toVector(encoding))
	if err != nil {
		return fmt.Errorf("replace encoding for identity %d: %w", id, err)
	}
	return requireRow(res)
}

// Delete removes an identity; attendance rows go with it via ON DELETE CASCADE.
func (r *IdentityRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.pool.db.ExecContext(ctx, "DELETE FROM identities WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete identity %d: %w", id, err)
	}
	return requireRow(res)
}

// requireRow maps a zero-row mutation to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint error.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
