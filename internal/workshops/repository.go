package workshops

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acm-certify/backend/internal/models"
)

// Repository handles workshop persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a workshop repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new workshop.
func (r *Repository) Create(ctx context.Context, w *models.Workshop) error {
	const q = `INSERT INTO workshops (id, title, date, description, level, instructor, image)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, w.Title, w.Date, w.Description, w.Level, w.Instructor, w.Image).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

// GetByID returns a workshop by ID, or models.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Workshop, error) {
	const q = `SELECT id, title, date, description, level, instructor, image, created_at, updated_at
		FROM workshops WHERE id = $1`
	var w models.Workshop
	err := r.pool.QueryRow(ctx, q, id).Scan(&w.ID, &w.Title, &w.Date, &w.Description, &w.Level, &w.Instructor, &w.Image, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

// List returns workshops, newest first.
func (r *Repository) List(ctx context.Context, offset, limit int) ([]models.Workshop, error) {
	const q = `SELECT id, title, date, description, level, instructor, image, created_at, updated_at
		FROM workshops ORDER BY created_at DESC OFFSET $1 LIMIT $2`
	rows, err := r.pool.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Workshop
	for rows.Next() {
		var w models.Workshop
		if err := rows.Scan(&w.ID, &w.Title, &w.Date, &w.Description, &w.Level, &w.Instructor, &w.Image, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

// Update overwrites the mutable workshop fields.
func (r *Repository) Update(ctx context.Context, w *models.Workshop) error {
	const q = `UPDATE workshops SET title = $1, date = $2, description = $3, level = $4, instructor = $5, image = $6, updated_at = NOW()
		WHERE id = $7 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, w.Title, w.Date, w.Description, w.Level, w.Instructor, w.Image, w.ID).Scan(&w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

// Delete removes a workshop by ID. Templates cascade; certificates keep the
// workshop referenced, so deletion fails while certificates exist.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM workshops WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
