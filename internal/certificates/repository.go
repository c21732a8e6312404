package certificates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acm-certify/backend/internal/models"
)

const certColumns = `id, code, recipient_name, email, workshop_id, workshop_name, issue_date, skills,
	instructor, is_verified, status, file_path, email_status, email_sent_at, email_error, created_at, updated_at`

// Repository is the authoritative certificate registry. All lifecycle
// transitions go through the conditional updates below so concurrent callers
// can never both win the same transition.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a certificate repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCertificate(row pgx.Row) (*models.Certificate, error) {
	var c models.Certificate
	var skills []byte
	err := row.Scan(&c.ID, &c.Code, &c.RecipientName, &c.Email, &c.WorkshopID, &c.WorkshopName,
		&c.IssueDate, &skills, &c.Instructor, &c.IsVerified, &c.Status, &c.FilePath,
		&c.EmailStatus, &c.EmailSentAt, &c.EmailError, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &c.Skills); err != nil {
			return nil, fmt.Errorf("decode skills: %w", err)
		}
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new PENDING certificate. A code collision surfaces as
// models.ErrCodeExists so callers can regenerate or report the row.
func (r *Repository) Create(ctx context.Context, c *models.Certificate) error {
	skills, err := json.Marshal(append([]string{}, c.Skills...))
	if err != nil {
		return fmt.Errorf("encode skills: %w", err)
	}
	const q = `INSERT INTO certificates (id, code, recipient_name, email, workshop_id, workshop_name, issue_date, skills, instructor)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, is_verified, status, email_status, created_at, updated_at`
	err = r.pool.QueryRow(ctx, q, c.Code, c.RecipientName, c.Email, c.WorkshopID, c.WorkshopName, c.IssueDate, skills, c.Instructor).
		Scan(&c.ID, &c.IsVerified, &c.Status, &c.EmailStatus, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrCodeExists
		}
		return err
	}
	return nil
}

// GetByID returns a certificate by ID, or models.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	return scanCertificate(r.pool.QueryRow(ctx, `SELECT `+certColumns+` FROM certificates WHERE id = $1`, id))
}

// GetByCode returns a certificate by code. Callers normalize the code to
// uppercase before lookup.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Certificate, error) {
	return scanCertificate(r.pool.QueryRow(ctx, `SELECT `+certColumns+` FROM certificates WHERE code = $1`, code))
}

// CodeExists reports whether a certificate with the given code exists.
func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM certificates WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

// List returns certificates, newest first.
func (r *Repository) List(ctx context.Context, offset, limit int) ([]models.Certificate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+certColumns+` FROM certificates ORDER BY created_at DESC OFFSET $1 LIMIT $2`,
		offset, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListByWorkshop returns every certificate of a workshop.
func (r *Repository) ListByWorkshop(ctx context.Context, workshopID uuid.UUID) ([]models.Certificate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+certColumns+` FROM certificates WHERE workshop_id = $1 ORDER BY created_at`,
		workshopID)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListGeneratedByWorkshop returns a workshop's GENERATED certificates, plus
// the count of rows that are not generated yet (skipped by the archive).
func (r *Repository) ListGeneratedByWorkshop(ctx context.Context, workshopID uuid.UUID) (generated []models.Certificate, skipped int, err error) {
	all, err := r.ListByWorkshop(ctx, workshopID)
	if err != nil {
		return nil, 0, err
	}
	for _, c := range all {
		if c.Status == models.StatusGenerated && c.FilePath != "" {
			generated = append(generated, c)
		} else {
			skipped++
		}
	}
	return generated, skipped, nil
}

// ListEligibleForEmail returns a workshop's GENERATED certificates that still
// need delivery. With force, already-SENT certificates are included again.
func (r *Repository) ListEligibleForEmail(ctx context.Context, workshopID uuid.UUID, force bool) ([]models.Certificate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+certColumns+` FROM certificates
		WHERE workshop_id = $1 AND status = 'GENERATED' AND ($2 OR email_status <> 'SENT')
		ORDER BY created_at`,
		workshopID, force)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// SearchByEmail returns all certificates issued to an email address.
func (r *Repository) SearchByEmail(ctx context.Context, email string) ([]models.Certificate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+certColumns+` FROM certificates WHERE lower(email) = lower($1) ORDER BY created_at DESC`,
		email)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Count returns the total number of certificates.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM certificates`).Scan(&n)
	return n, err
}

// Update overwrites the mutable display fields of a certificate.
func (r *Repository) Update(ctx context.Context, c *models.Certificate) error {
	skills, err := json.Marshal(append([]string{}, c.Skills...))
	if err != nil {
		return fmt.Errorf("encode skills: %w", err)
	}
	const q = `UPDATE certificates SET recipient_name = $1, issue_date = $2, skills = $3, instructor = $4, updated_at = NOW()
		WHERE id = $5 RETURNING updated_at`
	err = r.pool.QueryRow(ctx, q, c.RecipientName, c.IssueDate, skills, c.Instructor, c.ID).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

// Delete removes a certificate row. The caller removes the generated file.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM certificates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkGenerated records a successful render. The update is conditional on the
// row not already being GENERATED (unless force), so of two concurrent
// generation attempts exactly one observes won=true; the loser sees the
// post-state. Both write the same deterministic file path.
func (r *Repository) MarkGenerated(ctx context.Context, id uuid.UUID, filePath string, force bool) (won bool, err error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE certificates SET status = 'GENERATED', file_path = $2, updated_at = NOW()
		WHERE id = $1 AND (status <> 'GENERATED' OR $3)`,
		id, filePath, force)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkGenerationFailed records a failed render. A certificate that reached
// GENERATED is never downgraded by a late failure.
func (r *Repository) MarkGenerationFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE certificates SET status = 'FAILED', file_path = '', updated_at = NOW()
		WHERE id = $1 AND status <> 'GENERATED'`,
		id)
	return err
}

// MarkEmailResult records a delivery outcome. Success requires the row to be
// GENERATED (models.ErrNotReady otherwise); failure is recorded regardless,
// with the error text truncated to keep rows bounded.
func (r *Repository) MarkEmailResult(ctx context.Context, id uuid.UUID, success bool, sendErr string) error {
	if success {
		tag, err := r.pool.Exec(ctx,
			`UPDATE certificates SET email_status = 'SENT', email_sent_at = NOW(), email_error = '', updated_at = NOW()
			WHERE id = $1 AND status = 'GENERATED'`,
			id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotReady
		}
		return nil
	}
	if len(sendErr) > 2000 {
		sendErr = sendErr[:2000]
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE certificates SET email_status = 'FAILED', email_error = $2, updated_at = NOW() WHERE id = $1`,
		id, sendErr)
	return err
}

// EmailSummary is the delivery status roll-up for a workshop.
type EmailSummary struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// EmailStatusByWorkshop returns {total, sent, failed, pending} for a workshop.
func (r *Repository) EmailStatusByWorkshop(ctx context.Context, workshopID uuid.UUID) (EmailSummary, error) {
	const q = `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE email_status = 'SENT'),
		COUNT(*) FILTER (WHERE email_status = 'FAILED')
		FROM certificates WHERE workshop_id = $1`
	var s EmailSummary
	if err := r.pool.QueryRow(ctx, q, workshopID).Scan(&s.Total, &s.Sent, &s.Failed); err != nil {
		return EmailSummary{}, err
	}
	s.Pending = s.Total - s.Sent - s.Failed
	return s, nil
}

func collect(rows pgx.Rows) ([]models.Certificate, error) {
	defer rows.Close()
	var list []models.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}
