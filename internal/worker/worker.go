package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/acm-certify/backend/internal/dispatch"
	"github.com/acm-certify/backend/internal/models"
	"github.com/acm-certify/backend/pkg/queue"
)

// EmailProcessor consumes queued delivery jobs and hands them to the
// dispatcher.
type EmailProcessor struct {
	dispatcher *dispatch.Dispatcher
	queue      *queue.Queue
	logger     *zap.Logger
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(dispatcher *dispatch.Dispatcher, q *queue.Queue, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{dispatcher: dispatcher, queue: q, logger: logger}
}

// Process executes one delivery job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeEmailSingle:
		var payload queue.EmailSinglePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		err := p.dispatcher.SendOne(ctx, payload.CertificateID, payload.Force)
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrNotReady) {
			// The certificate changed under the job; retrying cannot help.
			p.logger.Warn("dropping email job",
				zap.String("certificate_id", payload.CertificateID.String()), zap.Error(err))
			return nil
		}
		return err
	case queue.JobTypeEmailRun:
		var payload queue.EmailRunPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		result, err := p.dispatcher.SendWorkshop(ctx, payload.WorkshopID, payload.Force)
		if err != nil {
			return err
		}
		p.logger.Info("email run finished",
			zap.String("workshop_id", payload.WorkshopID.String()),
			zap.Int("attempted", result.Attempted),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed))
		return nil
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
