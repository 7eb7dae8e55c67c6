// Package postgres provides Postgres-backed persistence for users.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitness/services/user-service/internal/domain"
)

//go:embed schema.sql
var schema string

const (
	uniqueViolation = "23505"
	emailConstraint = "users_email_key"
)

const userColumns = `id, external_id, email, first_name, last_name, role, password_hash, created_at, updated_at`

// Repository provides Postgres-backed persistence for users.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the users table and its unique indexes if missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply user schema: %w", err)
	}
	return nil
}

// Insert stores the user unless its external id is already registered.
func (r *Repository) Insert(ctx context.Context, user domain.User) (domain.User, bool, error) {
	const insertUser = `INSERT INTO users (` + userColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (external_id) DO NOTHING
        RETURNING id`

	var id string
	err := r.pool.QueryRow(ctx, insertUser,
		user.ID,
		user.ExternalID,
		user.Email,
		user.FirstName,
		user.LastName,
		string(user.Role),
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&id)

	switch {
	case err == nil:
		return user, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return r.existing(ctx, user.ExternalID)
	case isEmailViolation(err):
		// A concurrent insert for the same identity can trip the email index first.
		stored, getErr := r.GetByExternalID(ctx, user.ExternalID)
		if getErr != nil {
			return domain.User{}, false, getErr
		}
		if stored != nil {
			return *stored, false, nil
		}
		return domain.User{}, false, domain.ErrEmailTaken
	default:
		return domain.User{}, false, fmt.Errorf("insert user: %w", err)
	}
}

func (r *Repository) existing(ctx context.Context, externalID string) (domain.User, bool, error) {
	stored, err := r.GetByExternalID(ctx, externalID)
	if err != nil {
		return domain.User{}, false, err
	}
	if stored == nil {
		return domain.User{}, false, fmt.Errorf("user %s vanished after conflict", externalID)
	}
	return *stored, false, nil
}

// Get fetches by internal or external id. It returns nil when nothing matches.
func (r *Repository) Get(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1 OR external_id=$1 ORDER BY (id=$1) DESC LIMIT 1`
	return r.queryOne(ctx, query, id)
}

// GetByExternalID fetches by external id. It returns nil when nothing matches.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id=$1`
	return r.queryOne(ctx, query, externalID)
}

// List returns all users ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *Repository) queryOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user domain.User
		role string
	)
	if err := row.Scan(&user.ID, &user.ExternalID, &user.Email, &user.FirstName, &user.LastName, &role, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return domain.User{}, err
	}
	user.Role = domain.Role(role)
	return user, nil
}

func isEmailViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == emailConstraint
}
