package dispatch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acm-certify/backend/internal/models"
)

type fakeDispatchStore struct {
	mu    sync.Mutex
	certs map[uuid.UUID]*models.Certificate
}

func newFakeDispatchStore(certs ...*models.Certificate) *fakeDispatchStore {
	s := &fakeDispatchStore{certs: make(map[uuid.UUID]*models.Certificate)}
	for _, c := range certs {
		s.certs[c.ID] = c
	}
	return s
}

func (s *fakeDispatchStore) GetByID(_ context.Context, id uuid.UUID) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.certs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeDispatchStore) ListEligibleForEmail(_ context.Context, workshopID uuid.UUID, force bool) ([]models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Certificate
	for _, c := range s.certs {
		if c.WorkshopID != workshopID || c.Status != models.StatusGenerated {
			continue
		}
		if c.EmailStatus == models.EmailSent && !force {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *fakeDispatchStore) MarkEmailResult(_ context.Context, id uuid.UUID, success bool, sendErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.certs[id]
	if success {
		c.EmailStatus = models.EmailSent
		c.EmailError = ""
		now := time.Now()
		c.EmailSentAt = &now
		return nil
	}
	c.EmailStatus = models.EmailFailed
	c.EmailError = sendErr
	return nil
}

type fakeMailer struct {
	mu        sync.Mutex
	sends     int
	inFlight  int
	peak      int
	failFirst map[string]int // code -> remaining failures
	failAll   bool
}

func (m *fakeMailer) Send(_ context.Context, cert *models.Certificate, attachment []byte) error {
	m.mu.Lock()
	m.sends++
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	fail := m.failAll
	if n := m.failFirst[cert.Code]; n > 0 {
		m.failFirst[cert.Code] = n - 1
		fail = true
	}
	m.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()
	if fail {
		return errors.New("smtp unavailable")
	}
	return nil
}

type memFiles map[string][]byte

func (f memFiles) Open(relPath string) (io.ReadCloser, error) {
	data, ok := f[relPath]
	if !ok {
		return nil, errors.New("missing file")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func generatedCert(workshopID uuid.UUID, code string) *models.Certificate {
	return &models.Certificate{
		ID:           uuid.New(),
		Code:         code,
		Email:        code + "@example.com",
		WorkshopID:   workshopID,
		Status:       models.StatusGenerated,
		FilePath:     "certificates/certificate-" + code + ".png",
		EmailStatus:  models.EmailNotSent,
		WorkshopName: "Intro to Go",
	}
}

func filesFor(certs ...*models.Certificate) memFiles {
	files := memFiles{}
	for _, c := range certs {
		files[c.FilePath] = []byte("png " + c.Code)
	}
	return files
}

func newTestDispatcher(store *fakeDispatchStore, mailer Mailer, files memFiles, workers int) *Dispatcher {
	return NewDispatcher(store, mailer, files, workers, 0, zap.NewNop())
}

func TestSendOne(t *testing.T) {
	cert := generatedCert(uuid.New(), "ACM-2026-SEND0001")
	store := newFakeDispatchStore(cert)
	mailer := &fakeMailer{}
	d := newTestDispatcher(store, mailer, filesFor(cert), 1)

	require.NoError(t, d.SendOne(context.Background(), cert.ID, false))
	require.Equal(t, 1, mailer.sends)

	after, _ := store.GetByID(context.Background(), cert.ID)
	require.Equal(t, models.EmailSent, after.EmailStatus)
	require.NotNil(t, after.EmailSentAt)
}

func TestSendOneNotGenerated(t *testing.T) {
	cert := generatedCert(uuid.New(), "ACM-2026-SEND0002")
	cert.Status = models.StatusPending
	cert.FilePath = ""
	store := newFakeDispatchStore(cert)
	d := newTestDispatcher(store, &fakeMailer{}, memFiles{}, 1)

	err := d.SendOne(context.Background(), cert.ID, false)
	require.ErrorIs(t, err, models.ErrNotReady)
}

func TestSendOneAlreadySentIsNoOp(t *testing.T) {
	cert := generatedCert(uuid.New(), "ACM-2026-SEND0003")
	cert.EmailStatus = models.EmailSent
	store := newFakeDispatchStore(cert)
	mailer := &fakeMailer{}
	d := newTestDispatcher(store, mailer, filesFor(cert), 1)

	require.NoError(t, d.SendOne(context.Background(), cert.ID, false))
	require.Zero(t, mailer.sends)

	// force resends
	require.NoError(t, d.SendOne(context.Background(), cert.ID, true))
	require.Equal(t, 1, mailer.sends)
}

func TestSendOneRetriesOnce(t *testing.T) {
	cert := generatedCert(uuid.New(), "ACM-2026-SEND0004")
	store := newFakeDispatchStore(cert)
	mailer := &fakeMailer{failFirst: map[string]int{cert.Code: 1}}
	d := newTestDispatcher(store, mailer, filesFor(cert), 1)

	require.NoError(t, d.SendOne(context.Background(), cert.ID, false))
	require.Equal(t, 2, mailer.sends)

	after, _ := store.GetByID(context.Background(), cert.ID)
	require.Equal(t, models.EmailSent, after.EmailStatus)
}

func TestSendOneRecordsFailureAfterRetry(t *testing.T) {
	cert := generatedCert(uuid.New(), "ACM-2026-SEND0005")
	store := newFakeDispatchStore(cert)
	mailer := &fakeMailer{failAll: true}
	d := newTestDispatcher(store, mailer, filesFor(cert), 1)

	err := d.SendOne(context.Background(), cert.ID, false)
	require.Error(t, err)
	require.Equal(t, 2, mailer.sends)

	after, _ := store.GetByID(context.Background(), cert.ID)
	require.Equal(t, models.EmailFailed, after.EmailStatus)
	require.Contains(t, after.EmailError, "smtp unavailable")
}

func TestSendWorkshop(t *testing.T) {
	workshopID := uuid.New()
	sent := generatedCert(workshopID, "ACM-2026-RUN00001")
	sent.EmailStatus = models.EmailSent
	fresh := generatedCert(workshopID, "ACM-2026-RUN00002")
	broken := generatedCert(workshopID, "ACM-2026-RUN00003")
	pending := generatedCert(workshopID, "ACM-2026-RUN00004")
	pending.Status = models.StatusPending
	pending.FilePath = ""

	store := newFakeDispatchStore(sent, fresh, broken, pending)
	mailer := &fakeMailer{failAll: false, failFirst: map[string]int{broken.Code: 2}}
	d := newTestDispatcher(store, mailer, filesFor(fresh, broken), 2)

	result, err := d.SendWorkshop(context.Background(), workshopID, false)
	require.NoError(t, err)
	require.Equal(t, RunResult{Attempted: 2, Sent: 1, Failed: 1}, result)

	// force picks the already-sent certificate back up
	result, err = d.SendWorkshop(context.Background(), workshopID, true)
	require.NoError(t, err)
	require.Equal(t, 3, result.Attempted)
}

func TestSendWorkshopBoundedConcurrency(t *testing.T) {
	workshopID := uuid.New()
	var certs []*models.Certificate
	for i := 0; i < 8; i++ {
		certs = append(certs, generatedCert(workshopID, "ACM-2026-POOL000"+string(rune('1'+i))))
	}
	store := newFakeDispatchStore(certs...)
	mailer := &fakeMailer{}
	d := newTestDispatcher(store, mailer, filesFor(certs...), 2)

	result, err := d.SendWorkshop(context.Background(), workshopID, false)
	require.NoError(t, err)
	require.Equal(t, 8, result.Sent)
	require.LessOrEqual(t, mailer.peak, 2)
}
