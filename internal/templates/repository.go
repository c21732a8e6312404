package templates

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acm-certify/backend/internal/models"
)

const templateColumns = `id, workshop_id, image_url,
	name_x, name_y, name_font_size, name_font_family, name_alignment, name_color,
	code_x, code_y, code_font_size, code_font_family, code_alignment, code_color,
	created_at, updated_at`

// Repository handles certificate template persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a template repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTemplate(row pgx.Row) (*models.CertificateTemplate, error) {
	var t models.CertificateTemplate
	err := row.Scan(&t.ID, &t.WorkshopID, &t.ImageURL,
		&t.Name.X, &t.Name.Y, &t.Name.FontSize, &t.Name.FontFamily, &t.Name.Alignment, &t.Name.Color,
		&t.Code.X, &t.Code.Y, &t.Code.FontSize, &t.Code.FontFamily, &t.Code.Alignment, &t.Code.Color,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Save upserts a template keyed on (workshop_id, image_url). Saving the same
// pair again overwrites both placeholder specs, which makes the operation
// idempotent for editor autosave callers.
func (r *Repository) Save(ctx context.Context, t *models.CertificateTemplate) error {
	const q = `INSERT INTO certificate_templates (id, workshop_id, image_url,
			name_x, name_y, name_font_size, name_font_family, name_alignment, name_color,
			code_x, code_y, code_font_size, code_font_family, code_alignment, code_color)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (workshop_id, image_url) DO UPDATE SET
			name_x = EXCLUDED.name_x, name_y = EXCLUDED.name_y,
			name_font_size = EXCLUDED.name_font_size, name_font_family = EXCLUDED.name_font_family,
			name_alignment = EXCLUDED.name_alignment, name_color = EXCLUDED.name_color,
			code_x = EXCLUDED.code_x, code_y = EXCLUDED.code_y,
			code_font_size = EXCLUDED.code_font_size, code_font_family = EXCLUDED.code_font_family,
			code_alignment = EXCLUDED.code_alignment, code_color = EXCLUDED.code_color,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.WorkshopID, t.ImageURL,
		t.Name.X, t.Name.Y, t.Name.FontSize, t.Name.FontFamily, t.Name.Alignment, t.Name.Color,
		t.Code.X, t.Code.Y, t.Code.FontSize, t.Code.FontFamily, t.Code.Alignment, t.Code.Color).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID returns a template by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.CertificateTemplate, error) {
	return scanTemplate(r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM certificate_templates WHERE id = $1`, id))
}

// GetLatestByWorkshop returns the most recently updated template for a
// workshop. This is the template a generation run uses unless the caller
// names one explicitly.
func (r *Repository) GetLatestByWorkshop(ctx context.Context, workshopID uuid.UUID) (*models.CertificateTemplate, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM certificate_templates WHERE workshop_id = $1 ORDER BY updated_at DESC LIMIT 1`,
		workshopID))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNoTemplate
	}
	return t, err
}

// ListByWorkshop returns all saved templates for a workshop, newest first.
func (r *Repository) ListByWorkshop(ctx context.Context, workshopID uuid.UUID) ([]models.CertificateTemplate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM certificate_templates WHERE workshop_id = $1 ORDER BY created_at DESC`,
		workshopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.CertificateTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// Delete removes a template scoped to its workshop.
func (r *Repository) Delete(ctx context.Context, workshopID, templateID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM certificate_templates WHERE id = $1 AND workshop_id = $2`,
		templateID, workshopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
