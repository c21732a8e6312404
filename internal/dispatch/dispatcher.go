package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acm-certify/backend/internal/models"
)

// dispatchStore is the registry surface the dispatcher needs.
type dispatchStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error)
	ListEligibleForEmail(ctx context.Context, workshopID uuid.UUID, force bool) ([]models.Certificate, error)
	MarkEmailResult(ctx context.Context, id uuid.UUID, success bool, sendErr string) error
}

// fileOpener opens a stored certificate file by its media-relative path.
type fileOpener interface {
	Open(relPath string) (io.ReadCloser, error)
}

// RunResult is the outcome of a workshop-wide delivery run.
type RunResult struct {
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// Dispatcher delivers certificate emails with bounded concurrency. Each send
// gets exactly one retry, and workers pause between sends so a large batch
// does not hammer the relay.
type Dispatcher struct {
	store  dispatchStore
	mailer Mailer
	files  fileOpener

	maxConcurrent int
	sendDelay     time.Duration
	logger        *zap.Logger
}

// NewDispatcher creates a delivery service.
func NewDispatcher(store dispatchStore, mailer Mailer, files fileOpener, maxConcurrent int, sendDelay time.Duration, logger *zap.Logger) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		store:         store,
		mailer:        mailer,
		files:         files,
		maxConcurrent: maxConcurrent,
		sendDelay:     sendDelay,
		logger:        logger,
	}
}

// SendOne delivers a single certificate. A certificate that is not GENERATED
// returns models.ErrNotReady; one already SENT is a no-op unless force.
func (d *Dispatcher) SendOne(ctx context.Context, certID uuid.UUID, force bool) error {
	cert, err := d.store.GetByID(ctx, certID)
	if err != nil {
		return err
	}
	if cert.Status != models.StatusGenerated {
		return models.ErrNotReady
	}
	if cert.EmailStatus == models.EmailSent && !force {
		return nil
	}
	return d.deliver(ctx, cert)
}

// SendWorkshop delivers every eligible certificate of a workshop. Without
// force, certificates already SENT are excluded.
func (d *Dispatcher) SendWorkshop(ctx context.Context, workshopID uuid.UUID, force bool) (RunResult, error) {
	certs, err := d.store.ListEligibleForEmail(ctx, workshopID, force)
	if err != nil {
		return RunResult{}, err
	}

	var mu sync.Mutex
	result := RunResult{Attempted: len(certs)}
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(d.maxConcurrent)
	for i := range certs {
		cert := certs[i]
		grp.Go(func() error {
			err := d.deliver(gctx, &cert)
			mu.Lock()
			if err != nil {
				result.Failed++
			} else {
				result.Sent++
			}
			mu.Unlock()
			d.pause(gctx)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// deliver sends one email with a single retry and records the outcome on the
// certificate.
func (d *Dispatcher) deliver(ctx context.Context, cert *models.Certificate) error {
	attachment, err := d.readAttachment(cert)
	if err != nil {
		d.record(ctx, cert, err)
		return err
	}

	err = d.mailer.Send(ctx, cert, attachment)
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		d.logger.Warn("email send failed, retrying once",
			zap.String("code", cert.Code), zap.Error(err))
		err = d.mailer.Send(ctx, cert, attachment)
	}
	d.record(ctx, cert, err)
	return err
}

func (d *Dispatcher) readAttachment(cert *models.Certificate) ([]byte, error) {
	f, err := d.files.Open(cert.FilePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (d *Dispatcher) record(ctx context.Context, cert *models.Certificate, sendErr error) {
	msg := ""
	if sendErr != nil {
		msg = sendErr.Error()
	}
	if err := d.store.MarkEmailResult(ctx, cert.ID, sendErr == nil, msg); err != nil {
		d.logger.Error("could not record email result",
			zap.String("code", cert.Code), zap.Error(err))
	}
	if sendErr == nil {
		d.logger.Info("certificate email sent",
			zap.String("code", cert.Code), zap.String("email", cert.Email))
	}
}

func (d *Dispatcher) pause(ctx context.Context) {
	if d.sendDelay <= 0 {
		return
	}
	select {
	case <-time.After(d.sendDelay):
	case <-ctx.Done():
	}
}
