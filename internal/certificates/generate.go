package certificates

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acm-certify/backend/internal/models"
)

// Renderer composites one certificate onto a template image and stores the
// result, returning the stored file's path relative to the media root.
type Renderer interface {
	Render(ctx context.Context, tpl *models.CertificateTemplate, cert *models.Certificate) (string, error)
}

// generateStore is the registry surface the generation service needs.
type generateStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error)
	ListByWorkshop(ctx context.Context, workshopID uuid.UUID) ([]models.Certificate, error)
	MarkGenerated(ctx context.Context, id uuid.UUID, filePath string, force bool) (bool, error)
	MarkGenerationFailed(ctx context.Context, id uuid.UUID) error
}

// templateSource resolves the template a render should use.
type templateSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.CertificateTemplate, error)
	GetLatestByWorkshop(ctx context.Context, workshopID uuid.UUID) (*models.CertificateTemplate, error)
}

// BulkResult is the outcome of a workshop-wide generation run.
type BulkResult struct {
	Total     int `json:"total"`
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// GenerationError wraps a render failure with the certificate it belongs to.
type GenerationError struct {
	CertificateID uuid.UUID
	Code          string
	Err           error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate certificate %s: %v", e.Code, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator runs certificate renders with bounded concurrency. Per-certificate
// locks keep this process from rendering the same certificate twice at once;
// the registry's conditional updates settle the winner across processes.
type Generator struct {
	store     generateStore
	templates templateSource
	renderer  Renderer
	locks     *certLocks
	workers   int
	logger    *zap.Logger
}

// NewGenerator creates a generation service with the given worker pool size.
func NewGenerator(store generateStore, templates templateSource, renderer Renderer, workers int, logger *zap.Logger) *Generator {
	if workers < 1 {
		workers = 1
	}
	return &Generator{
		store:     store,
		templates: templates,
		renderer:  renderer,
		locks:     newCertLocks(),
		workers:   workers,
		logger:    logger,
	}
}

// GenerateOne renders a single certificate. An already GENERATED certificate
// is returned as-is unless force; a render failure marks the row FAILED and
// returns a GenerationError.
func (g *Generator) GenerateOne(ctx context.Context, id uuid.UUID, force bool) (*models.Certificate, error) {
	cert, err := g.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tpl, err := g.templates.GetLatestByWorkshop(ctx, cert.WorkshopID)
	if err != nil {
		return nil, err
	}
	if err := g.render(ctx, tpl, cert, force); err != nil && !errAlreadyGenerated(err) {
		return nil, err
	}
	return g.store.GetByID(ctx, id)
}

// GenerateWorkshop renders every certificate of a workshop against one
// template snapshot taken at the start of the run, so a template saved
// mid-run cannot split the batch across designs. The optional templateID
// pins a specific template instead of the latest.
func (g *Generator) GenerateWorkshop(ctx context.Context, workshopID uuid.UUID, templateID *uuid.UUID, force bool) (BulkResult, error) {
	var tpl *models.CertificateTemplate
	var err error
	if templateID != nil {
		tpl, err = g.templates.GetByID(ctx, *templateID)
	} else {
		tpl, err = g.templates.GetLatestByWorkshop(ctx, workshopID)
	}
	if err != nil {
		return BulkResult{}, err
	}
	if tpl.WorkshopID != workshopID {
		return BulkResult{}, models.ErrNoTemplate
	}

	certs, err := g.store.ListByWorkshop(ctx, workshopID)
	if err != nil {
		return BulkResult{}, err
	}

	var mu sync.Mutex
	result := BulkResult{Total: len(certs)}
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.workers)
	for i := range certs {
		cert := certs[i]
		grp.Go(func() error {
			err := g.render(gctx, tpl, &cert, force)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Generated++
			case errAlreadyGenerated(err):
				result.Skipped++
			default:
				g.logger.Warn("certificate render failed",
					zap.String("code", cert.Code), zap.Error(err))
				result.Failed++
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// errSkipped marks a no-op render of an already generated certificate.
var errSkipped = fmt.Errorf("already generated")

func errAlreadyGenerated(err error) bool {
	return err == errSkipped
}

func (g *Generator) render(ctx context.Context, tpl *models.CertificateTemplate, cert *models.Certificate, force bool) error {
	unlock := g.locks.lock(cert.ID)
	defer unlock()

	// Re-check under the lock: a concurrent render may have finished while we
	// waited.
	current, err := g.store.GetByID(ctx, cert.ID)
	if err != nil {
		return err
	}
	if current.Status == models.StatusGenerated && !force {
		return errSkipped
	}

	relPath, err := g.renderer.Render(ctx, tpl, current)
	if err != nil {
		if markErr := g.store.MarkGenerationFailed(ctx, cert.ID); markErr != nil {
			g.logger.Error("could not record render failure",
				zap.String("code", cert.Code), zap.Error(markErr))
		}
		return &GenerationError{CertificateID: cert.ID, Code: cert.Code, Err: err}
	}
	if _, err := g.store.MarkGenerated(ctx, cert.ID, relPath, force); err != nil {
		return &GenerationError{CertificateID: cert.ID, Code: cert.Code, Err: err}
	}
	return nil
}
