package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acm-certify/backend/internal/models"
)

// Repository handles admin account persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an admin repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an admin account.
func (r *Repository) Create(ctx context.Context, a *models.Admin) error {
	const q = `INSERT INTO admins (id, email, hashed_password)
		VALUES (gen_random_uuid(), $1, $2)
		RETURNING id, is_active, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, a.Email, a.HashedPassword).
		Scan(&a.ID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
}

// GetByEmail returns the admin with the given email, or models.ErrNotFound.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	const q = `SELECT id, email, hashed_password, is_active, created_at, updated_at FROM admins WHERE email = $1`
	var a models.Admin
	err := r.pool.QueryRow(ctx, q, email).Scan(&a.ID, &a.Email, &a.HashedPassword, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetByID returns the admin with the given id, or models.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	const q = `SELECT id, email, hashed_password, is_active, created_at, updated_at FROM admins WHERE id = $1`
	var a models.Admin
	err := r.pool.QueryRow(ctx, q, id).Scan(&a.ID, &a.Email, &a.HashedPassword, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
