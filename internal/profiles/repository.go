package profiles

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for profiles.
type Repository interface {
	FindByID(ctx context.Context, id string) (Profile, error)
	FindByEmail(ctx context.Context, email string) (Profile, error)
	Create(ctx context.Context, p Profile) error
	SetRole(ctx context.Context, id string, role Role) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectProfile = `SELECT p.id::text, u.email, p.name, p.role, p.created_at
FROM profiles p JOIN users u ON u.id = p.id`

// FindByID loads the profile for a principal id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (Profile, error) {
	return r.scanOne(r.pool.QueryRow(ctx, selectProfile+` WHERE p.id = $1`, id))
}

// FindByEmail loads the profile of the account with email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (Profile, error) {
	return r.scanOne(r.pool.QueryRow(ctx, selectProfile+` WHERE lower(u.email) = lower($1)`, strings.TrimSpace(email)))
}

// Create inserts a profile row for an existing user.
func (r *PGRepository) Create(ctx context.Context, p Profile) error {
	if !p.Role.Valid() {
		return ErrInvalidRole
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO profiles (id, name, role, created_at) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, string(p.Role), p.CreatedAt)
	return err
}

// SetRole changes the role stored for id.
func (r *PGRepository) SetRole(ctx context.Context, id string, role Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	tag, err := r.pool.Exec(ctx, `UPDATE profiles SET role = $2 WHERE id = $1`, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileMissing
	}
	return nil
}

func (r *PGRepository) scanOne(row pgx.Row) (Profile, error) {
	var (
		p    Profile
		role string
	)
	if err := row.Scan(&p.ID, &p.Email, &p.Name, &role, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrProfileMissing
		}
		return Profile{}, err
	}
	parsed, err := ParseRole(role)
	if err != nil {
		return Profile{}, ErrProfileMissing
	}
	p.Role = parsed
	return p, nil
}

var _ Repository = (*PGRepository)(nil)
