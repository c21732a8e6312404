package certificates

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acm-certify/backend/internal/models"
)

type fakeGenStore struct {
	mu    sync.Mutex
	certs map[uuid.UUID]*models.Certificate
}

func newFakeGenStore(certs ...*models.Certificate) *fakeGenStore {
	s := &fakeGenStore{certs: make(map[uuid.UUID]*models.Certificate)}
	for _, c := range certs {
		s.certs[c.ID] = c
	}
	return s
}

func (s *fakeGenStore) GetByID(_ context.Context, id uuid.UUID) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.certs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeGenStore) ListByWorkshop(_ context.Context, workshopID uuid.UUID) ([]models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Certificate
	for _, c := range s.certs {
		if c.WorkshopID == workshopID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeGenStore) MarkGenerated(_ context.Context, id uuid.UUID, filePath string, force bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.certs[id]
	if c.Status == models.StatusGenerated && !force {
		return false, nil
	}
	c.Status = models.StatusGenerated
	c.FilePath = filePath
	return true, nil
}

func (s *fakeGenStore) MarkGenerationFailed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.certs[id]
	if c.Status != models.StatusGenerated {
		c.Status = models.StatusFailed
	}
	return nil
}

type fakeTemplates struct {
	tpl *models.CertificateTemplate
	err error
}

func (f *fakeTemplates) GetByID(context.Context, uuid.UUID) (*models.CertificateTemplate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tpl, nil
}

func (f *fakeTemplates) GetLatestByWorkshop(context.Context, uuid.UUID) (*models.CertificateTemplate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tpl, nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	renders int
	failFor map[string]bool // certificate code -> fail render
}

func (r *fakeRenderer) Render(_ context.Context, _ *models.CertificateTemplate, cert *models.Certificate) (string, error) {
	r.mu.Lock()
	r.renders++
	fail := r.failFor[cert.Code]
	r.mu.Unlock()
	if fail {
		return "", errors.New("template unreadable")
	}
	return "certificates/certificate-" + cert.Code + ".png", nil
}

func pendingCert(workshopID uuid.UUID, code string) *models.Certificate {
	return &models.Certificate{
		ID:          uuid.New(),
		Code:        code,
		WorkshopID:  workshopID,
		Status:      models.StatusPending,
		EmailStatus: models.EmailNotSent,
	}
}

func testTemplate(workshopID uuid.UUID) *models.CertificateTemplate {
	return &models.CertificateTemplate{
		ID:         uuid.New(),
		WorkshopID: workshopID,
		ImageURL:   "https://example.com/template.png",
		Name:       models.DefaultNamePlaceholder(),
		Code:       models.DefaultCodePlaceholder(),
	}
}

func TestGenerateOne(t *testing.T) {
	workshopID := uuid.New()
	cert := pendingCert(workshopID, "ACM-2026-AAAAAAAA")
	store := newFakeGenStore(cert)
	renderer := &fakeRenderer{}
	gen := NewGenerator(store, &fakeTemplates{tpl: testTemplate(workshopID)}, renderer, 2, zap.NewNop())

	got, err := gen.GenerateOne(context.Background(), cert.ID, false)
	require.NoError(t, err)
	require.Equal(t, models.StatusGenerated, got.Status)
	require.Equal(t, "certificates/certificate-ACM-2026-AAAAAAAA.png", got.FilePath)
	require.Equal(t, 1, renderer.renders)
}

func TestGenerateOneSkipsAlreadyGenerated(t *testing.T) {
	workshopID := uuid.New()
	cert := pendingCert(workshopID, "ACM-2026-BBBBBBBB")
	cert.Status = models.StatusGenerated
	cert.FilePath = "certificates/certificate-ACM-2026-BBBBBBBB.png"
	store := newFakeGenStore(cert)
	renderer := &fakeRenderer{}
	gen := NewGenerator(store, &fakeTemplates{tpl: testTemplate(workshopID)}, renderer, 2, zap.NewNop())

	got, err := gen.GenerateOne(context.Background(), cert.ID, false)
	require.NoError(t, err)
	require.Equal(t, models.StatusGenerated, got.Status)
	require.Zero(t, renderer.renders)
}

func TestGenerateOneForceRerenders(t *testing.T) {
	workshopID := uuid.New()
	cert := pendingCert(workshopID, "ACM-2026-CCCCCCCC")
	cert.Status = models.StatusGenerated
	cert.FilePath = "certificates/certificate-ACM-2026-CCCCCCCC.png"
	store := newFakeGenStore(cert)
	renderer := &fakeRenderer{}
	gen := NewGenerator(store, &fakeTemplates{tpl: testTemplate(workshopID)}, renderer, 2, zap.NewNop())

	_, err := gen.GenerateOne(context.Background(), cert.ID, true)
	require.NoError(t, err)
	require.Equal(t, 1, renderer.renders)
}

func TestGenerateOneFailureMarksFailed(t *testing.T) {
	workshopID := uuid.New()
	cert := pendingCert(workshopID, "ACM-2026-DDDDDDDD")
	store := newFakeGenStore(cert)
	renderer := &fakeRenderer{failFor: map[string]bool{cert.Code: true}}
	gen := NewGenerator(store, &fakeTemplates{tpl: testTemplate(workshopID)}, renderer, 2, zap.NewNop())

	_, err := gen.GenerateOne(context.Background(), cert.ID, false)
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, cert.Code, genErr.Code)

	after, err := store.GetByID(context.Background(), cert.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, after.Status)
	require.Empty(t, after.FilePath)
}

func TestGenerateOneNoTemplate(t *testing.T) {
	cert := pendingCert(uuid.New(), "ACM-2026-EEEEEEEE")
	store := newFakeGenStore(cert)
	gen := NewGenerator(store, &fakeTemplates{err: models.ErrNoTemplate}, &fakeRenderer{}, 2, zap.NewNop())

	_, err := gen.GenerateOne(context.Background(), cert.ID, false)
	require.ErrorIs(t, err, models.ErrNoTemplate)
}

func TestGenerateWorkshopCounts(t *testing.T) {
	workshopID := uuid.New()
	done := pendingCert(workshopID, "ACM-2026-11111111")
	done.Status = models.StatusGenerated
	done.FilePath = "certificates/certificate-ACM-2026-11111111.png"
	broken := pendingCert(workshopID, "ACM-2026-22222222")
	fresh1 := pendingCert(workshopID, "ACM-2026-33333333")
	fresh2 := pendingCert(workshopID, "ACM-2026-44444444")

	store := newFakeGenStore(done, broken, fresh1, fresh2)
	renderer := &fakeRenderer{failFor: map[string]bool{broken.Code: true}}
	tpl := testTemplate(workshopID)
	gen := NewGenerator(store, &fakeTemplates{tpl: tpl}, renderer, 2, zap.NewNop())

	result, err := gen.GenerateWorkshop(context.Background(), workshopID, nil, false)
	require.NoError(t, err)
	require.Equal(t, BulkResult{Total: 4, Generated: 2, Skipped: 1, Failed: 1}, result)
}

func TestGenerateWorkshopRejectsForeignTemplate(t *testing.T) {
	workshopID := uuid.New()
	store := newFakeGenStore(pendingCert(workshopID, "ACM-2026-55555555"))
	// Template saved against a different workshop.
	tpl := testTemplate(uuid.New())
	gen := NewGenerator(store, &fakeTemplates{tpl: tpl}, &fakeRenderer{}, 2, zap.NewNop())

	_, err := gen.GenerateWorkshop(context.Background(), workshopID, &tpl.ID, false)
	require.ErrorIs(t, err, models.ErrNoTemplate)
}

func TestGenerateWorkshopIdempotentSecondRun(t *testing.T) {
	workshopID := uuid.New()
	certs := []*models.Certificate{
		pendingCert(workshopID, "ACM-2026-66666666"),
		pendingCert(workshopID, "ACM-2026-77777777"),
	}
	store := newFakeGenStore(certs...)
	renderer := &fakeRenderer{}
	gen := NewGenerator(store, &fakeTemplates{tpl: testTemplate(workshopID)}, renderer, 2, zap.NewNop())

	first, err := gen.GenerateWorkshop(context.Background(), workshopID, nil, false)
	require.NoError(t, err)
	require.Equal(t, 2, first.Generated)

	second, err := gen.GenerateWorkshop(context.Background(), workshopID, nil, false)
	require.NoError(t, err)
	require.Equal(t, BulkResult{Total: 2, Generated: 0, Skipped: 2, Failed: 0}, second)
	require.Equal(t, 2, renderer.renders)
}
