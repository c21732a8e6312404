package certificates

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acm-certify/backend/internal/archive"
	"github.com/acm-certify/backend/internal/models"
	"github.com/acm-certify/backend/internal/workshops"
	"github.com/acm-certify/backend/pkg/queue"
	"github.com/acm-certify/backend/pkg/response"
	"github.com/acm-certify/backend/pkg/storage"
)

const maxCSVSize = 5 << 20

// CreateRequest is the body for POST /api/certificates.
type CreateRequest struct {
	RecipientName string   `json:"recipient_name" binding:"required"`
	Email         string   `json:"email" binding:"required,email"`
	WorkshopID    string   `json:"workshop_id" binding:"required"`
	Code          string   `json:"code"`
	IssueDate     string   `json:"issue_date"`
	Skills        []string `json:"skills"`
	Instructor    string   `json:"instructor"`
}

// UpdateRequest is the body for PATCH /api/certificates/:id. Nil fields are
// left unchanged.
type UpdateRequest struct {
	RecipientName *string   `json:"recipient_name"`
	IssueDate     *string   `json:"issue_date"`
	Skills        *[]string `json:"skills"`
	Instructor    *string   `json:"instructor"`
}

// BulkCreateRequest is the body for POST /api/certificates/bulk-create.
type BulkCreateRequest struct {
	WorkshopID string          `json:"workshop_id" binding:"required"`
	Recipients []BulkRecipient `json:"recipients" binding:"required,min=1"`
}

// BulkRecipient is one entry of a bulk-create request.
type BulkRecipient struct {
	RecipientName string   `json:"recipient_name" binding:"required"`
	Email         string   `json:"email" binding:"required,email"`
	IssueDate     string   `json:"issue_date"`
	Skills        []string `json:"skills"`
	Instructor    string   `json:"instructor"`
}

// Handler handles certificate HTTP endpoints.
type Handler struct {
	repo              *Repository
	workshops         *workshops.Repository
	generator         *Generator
	ingestor          *Ingestor
	media             *storage.Media
	queue             *queue.Queue
	codePrefix        string
	defaultInstructor string
	logger            *zap.Logger
}

// NewHandler creates the certificate handler.
func NewHandler(repo *Repository, workshopRepo *workshops.Repository, generator *Generator,
	ingestor *Ingestor, media *storage.Media, q *queue.Queue,
	codePrefix, defaultInstructor string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		repo:              repo,
		workshops:         workshopRepo,
		generator:         generator,
		ingestor:          ingestor,
		media:             media,
		queue:             q,
		codePrefix:        codePrefix,
		defaultInstructor: defaultInstructor,
		logger:            logger,
	}
}

// Create handles POST /api/certificates (admin only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	workshop, ok := h.workshop(c, req.WorkshopID)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	cert := &models.Certificate{
		RecipientName: req.RecipientName,
		Email:         req.Email,
		WorkshopID:    workshop.ID,
		WorkshopName:  workshop.Title,
		IssueDate:     h.issueDate(req.IssueDate, workshop),
		Skills:        req.Skills,
		Instructor:    h.instructor(req.Instructor),
	}
	if req.Code != "" {
		cert.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	} else {
		code, err := UniqueCode(ctx, h.repo, h.codePrefix)
		if err != nil {
			h.logger.Error("code allocation failed", zap.Error(err))
			response.Internal(c, "failed to allocate certificate code")
			return
		}
		cert.Code = code
	}
	if err := h.repo.Create(ctx, cert); err != nil {
		if errors.Is(err, models.ErrCodeExists) {
			response.Conflict(c, "certificate code already exists")
			return
		}
		h.logger.Error("create certificate failed", zap.Error(err))
		response.Internal(c, "failed to create certificate")
		return
	}
	response.Created(c, cert)
}

// List handles GET /api/certificates (admin only).
func (h *Handler) List(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	certs, err := h.repo.List(c.Request.Context(), offset, limit)
	if err != nil {
		h.logger.Error("list certificates failed", zap.Error(err))
		response.Internal(c, "failed to list certificates")
		return
	}
	if certs == nil {
		certs = []models.Certificate{}
	}
	response.OK(c, certs)
}

// Stats handles GET /api/certificates/stats (admin only).
func (h *Handler) Stats(c *gin.Context) {
	total, err := h.repo.Count(c.Request.Context())
	if err != nil {
		h.logger.Error("count certificates failed", zap.Error(err))
		response.Internal(c, "failed to count certificates")
		return
	}
	response.OK(c, gin.H{"total_certificates": total})
}

// GetByID handles GET /api/certificates/:id (admin only).
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := h.certID(c)
	if !ok {
		return
	}
	cert, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.notFoundOr500(c, err, "fetch certificate")
		return
	}
	response.OK(c, cert)
}

// Update handles PATCH /api/certificates/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	id, ok := h.certID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	cert, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.notFoundOr500(c, err, "fetch certificate")
		return
	}
	if req.RecipientName != nil {
		cert.RecipientName = *req.RecipientName
	}
	if req.IssueDate != nil {
		cert.IssueDate = *req.IssueDate
	}
	if req.Skills != nil {
		cert.Skills = *req.Skills
	}
	if req.Instructor != nil {
		cert.Instructor = *req.Instructor
	}
	if err := h.repo.Update(ctx, cert); err != nil {
		h.notFoundOr500(c, err, "update certificate")
		return
	}
	response.OK(c, cert)
}

// Delete handles DELETE /api/certificates/:id (admin only). The generated
// file, if any, is removed with the row.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := h.certID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	cert, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.notFoundOr500(c, err, "fetch certificate")
		return
	}
	if err := h.repo.Delete(ctx, id); err != nil {
		h.notFoundOr500(c, err, "delete certificate")
		return
	}
	if cert.FilePath != "" {
		if err := h.media.Remove(cert.FilePath); err != nil {
			h.logger.Warn("could not remove certificate file",
				zap.String("path", cert.FilePath), zap.Error(err))
		}
	}
	response.OK(c, gin.H{"deleted": cert.Code})
}

// BulkCreate handles POST /api/certificates/bulk-create (admin only). Rows
// fail independently; the response reports both sides.
func (h *Handler) BulkCreate(c *gin.Context) {
	var req BulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	workshop, ok := h.workshop(c, req.WorkshopID)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	result := IngestResult{}
	for i, rec := range req.Recipients {
		cert := models.Certificate{
			RecipientName: rec.RecipientName,
			Email:         rec.Email,
			WorkshopID:    workshop.ID,
			WorkshopName:  workshop.Title,
			IssueDate:     h.issueDate(rec.IssueDate, workshop),
			Skills:        rec.Skills,
			Instructor:    h.instructor(rec.Instructor),
		}
		code, err := UniqueCode(ctx, h.repo, h.codePrefix)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Name: rec.RecipientName, Reason: "could not allocate code"})
			continue
		}
		cert.Code = code
		if err := h.repo.Create(ctx, &cert); err != nil {
			h.logger.Warn("bulk create row failed", zap.Int("row", i+1), zap.Error(err))
			result.Errors = append(result.Errors, RowError{Row: i + 1, Name: rec.RecipientName, Reason: "could not save certificate"})
			continue
		}
		result.Created = append(result.Created, cert)
	}
	response.Created(c, gin.H{
		"created":      len(result.Created),
		"failed":       len(result.Errors),
		"certificates": result.Created,
		"errors":       result.Errors,
	})
}

// ImportCSV handles POST /api/certificates/import-csv (admin only). Accepts
// either a multipart upload (file + workshop_id) or a raw CSV body with
// workshop_id in the query.
func (h *Handler) ImportCSV(c *gin.Context) {
	var reader io.Reader
	workshopRef := c.Query("workshop_id")
	if fileHeader, err := c.FormFile("file"); err == nil {
		if fileHeader.Size > maxCSVSize {
			response.BadRequest(c, "csv file too large")
			return
		}
		f, err := fileHeader.Open()
		if err != nil {
			response.BadRequest(c, "could not read csv file")
			return
		}
		defer f.Close()
		reader = f
		if v := c.PostForm("workshop_id"); v != "" {
			workshopRef = v
		}
	} else {
		reader = io.LimitReader(c.Request.Body, maxCSVSize)
	}
	workshop, ok := h.workshop(c, workshopRef)
	if !ok {
		return
	}

	result, err := h.ingestor.Ingest(c.Request.Context(), reader, workshop, IngestDefaults{
		IssueDate:  h.issueDate("", workshop),
		Instructor: h.defaultInstructor,
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidCSV) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("csv import failed", zap.Error(err))
		response.Internal(c, "failed to import csv")
		return
	}
	if result.Created == nil {
		result.Created = []models.Certificate{}
	}
	if result.Errors == nil {
		result.Errors = []RowError{}
	}
	response.Created(c, gin.H{
		"created":      len(result.Created),
		"failed":       len(result.Errors),
		"certificates": result.Created,
		"errors":       result.Errors,
	})
}

// Generate handles POST /api/certificates/generate/:id (admin only).
func (h *Handler) Generate(c *gin.Context) {
	id, ok := h.certID(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	cert, err := h.generator.GenerateOne(c.Request.Context(), id, force)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			response.NotFound(c, "certificate not found")
		case errors.Is(err, models.ErrNoTemplate):
			response.BadRequest(c, "no template saved for this workshop")
		default:
			h.logger.Error("generate certificate failed", zap.Error(err))
			response.Internal(c, "certificate generation failed")
		}
		return
	}
	response.OK(c, cert)
}

// GenerateWorkshop handles POST /api/certificates/generate-workshop/:workshopID
// (admin only). The run is synchronous and reports per-certificate counts.
func (h *Handler) GenerateWorkshop(c *gin.Context) {
	workshopID, ok := h.workshopID(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	var templateID *uuid.UUID
	if raw := c.Query("template_id"); raw != "" {
		tid, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid template id")
			return
		}
		templateID = &tid
	}
	result, err := h.generator.GenerateWorkshop(c.Request.Context(), workshopID, templateID, force)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNoTemplate), errors.Is(err, models.ErrNotFound):
			response.BadRequest(c, "no usable template for this workshop")
		default:
			h.logger.Error("workshop generation failed", zap.Error(err))
			response.Internal(c, "workshop generation failed")
		}
		return
	}
	response.OK(c, result)
}

// DownloadZip handles GET /api/certificates/download-zip/:workshopID (admin
// only). The archive is streamed; certificates not yet generated are skipped.
func (h *Handler) DownloadZip(c *gin.Context) {
	workshopID, ok := h.workshopID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	workshop, err := h.workshops.GetByID(ctx, workshopID)
	if err != nil {
		h.notFoundOr500(c, err, "fetch workshop")
		return
	}
	certs, skipped, err := h.repo.ListGeneratedByWorkshop(ctx, workshopID)
	if err != nil {
		h.logger.Error("list generated certificates failed", zap.Error(err))
		response.Internal(c, "failed to build archive")
		return
	}
	if len(certs) == 0 {
		response.NotFound(c, "no generated certificates for this workshop")
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Filename(workshop.Title)))
	c.Header("X-Skipped-Certificates", strconv.Itoa(skipped))
	c.Status(http.StatusOK)
	if _, _, err := archive.WriteCertificates(c.Writer, h.media, certs); err != nil {
		// Headers are already out; all we can do is log and cut the stream.
		h.logger.Error("zip stream failed", zap.String("workshop", workshop.Title), zap.Error(err))
	}
}

// SendEmail handles POST /api/certificates/send-email/:id (admin only). The
// send is queued; the worker delivers it.
func (h *Handler) SendEmail(c *gin.Context) {
	id, ok := h.certID(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	ctx := c.Request.Context()
	cert, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.notFoundOr500(c, err, "fetch certificate")
		return
	}
	if cert.Status != models.StatusGenerated {
		response.BadRequest(c, "certificate has not been generated yet")
		return
	}
	if cert.EmailStatus == models.EmailSent && !force {
		response.OK(c, gin.H{"queued": 0, "reason": "already sent"})
		return
	}
	if err := h.queue.EnqueueEmailSingle(ctx, queue.EmailSinglePayload{CertificateID: id, Force: force}); err != nil {
		h.logger.Error("enqueue email failed", zap.Error(err))
		response.Internal(c, "failed to queue email")
		return
	}
	response.Accepted(c, gin.H{"queued": 1, "code": cert.Code})
}

// SendWorkshopEmails handles POST /api/certificates/send-workshop-emails/:workshopID
// (admin only). Responds immediately with the number of certificates accepted
// for delivery.
func (h *Handler) SendWorkshopEmails(c *gin.Context) {
	workshopID, ok := h.workshopID(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	ctx := c.Request.Context()
	if _, err := h.workshops.GetByID(ctx, workshopID); err != nil {
		h.notFoundOr500(c, err, "fetch workshop")
		return
	}
	eligible, err := h.repo.ListEligibleForEmail(ctx, workshopID, force)
	if err != nil {
		h.logger.Error("list eligible certificates failed", zap.Error(err))
		response.Internal(c, "failed to queue emails")
		return
	}
	if len(eligible) == 0 {
		response.OK(c, gin.H{"message": "no certificates to send", "total": 0})
		return
	}
	if err := h.queue.EnqueueEmailRun(ctx, queue.EmailRunPayload{WorkshopID: workshopID, Force: force}); err != nil {
		h.logger.Error("enqueue email run failed", zap.Error(err))
		response.Internal(c, "failed to queue emails")
		return
	}
	response.Accepted(c, gin.H{"message": "email delivery queued", "total": len(eligible)})
}

// EmailStatus handles GET /api/certificates/email-status/:workshopID (admin only).
func (h *Handler) EmailStatus(c *gin.Context) {
	workshopID, ok := h.workshopID(c)
	if !ok {
		return
	}
	summary, err := h.repo.EmailStatusByWorkshop(c.Request.Context(), workshopID)
	if err != nil {
		h.logger.Error("email status query failed", zap.Error(err))
		response.Internal(c, "failed to fetch email status")
		return
	}
	response.OK(c, summary)
}

func (h *Handler) certID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid certificate id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) workshopID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("workshopID"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return uuid.Nil, false
	}
	return id, true
}

// workshop parses and loads a workshop referenced in a request body or form.
func (h *Handler) workshop(c *gin.Context, raw string) (*models.Workshop, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return nil, false
	}
	workshop, err := h.workshops.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "workshop not found")
		} else {
			h.logger.Error("fetch workshop failed", zap.Error(err))
			response.Internal(c, "failed to fetch workshop")
		}
		return nil, false
	}
	return workshop, true
}

func (h *Handler) issueDate(requested string, workshop *models.Workshop) string {
	if requested != "" {
		return requested
	}
	if workshop.Date != "" {
		return workshop.Date
	}
	return time.Now().Format("2006-01-02")
}

func (h *Handler) instructor(requested string) string {
	if requested != "" {
		return requested
	}
	return h.defaultInstructor
}

func (h *Handler) notFoundOr500(c *gin.Context, err error, op string) {
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "not found")
		return
	}
	h.logger.Error(op+" failed", zap.Error(err))
	response.Internal(c, op+" failed")
}
