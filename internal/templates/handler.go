package templates

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acm-certify/backend/internal/models"
	"github.com/acm-certify/backend/internal/workshops"
	"github.com/acm-certify/backend/pkg/response"
	"github.com/acm-certify/backend/pkg/storage"
)

// PlaceholderRequest mirrors the editor's placeholder payload.
type PlaceholderRequest struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	FontSize   float64 `json:"font_size"`
	FontFamily string  `json:"font_family"`
	Alignment  string  `json:"alignment"`
	Color      string  `json:"color"`
}

// SaveRequest is the body for POST /api/workshops/:id/templates.
type SaveRequest struct {
	ImageURL string              `json:"image_url" binding:"required,url"`
	Name     *PlaceholderRequest `json:"name_placeholder"`
	Code     *PlaceholderRequest `json:"code_placeholder"`
}

// Handler handles template HTTP endpoints.
type Handler struct {
	repo         *Repository
	workshopRepo *workshops.Repository
	s3           *storage.S3
	logger       *zap.Logger
}

// NewHandler creates a template handler. s3 may be nil when uploads are disabled.
func NewHandler(repo *Repository, workshopRepo *workshops.Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, workshopRepo: workshopRepo, s3: s3, logger: logger}
}

func (h *Handler) workshopID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return uuid.Nil, false
	}
	if _, err := h.workshopRepo.GetByID(c.Request.Context(), id); err != nil {
		response.NotFound(c, "workshop not found")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /api/workshops/:id/templates (public; the editor loads these).
func (h *Handler) List(c *gin.Context) {
	workshopID, ok := h.workshopID(c)
	if !ok {
		return
	}
	list, err := h.repo.ListByWorkshop(c.Request.Context(), workshopID)
	if err != nil {
		h.logger.Error("list templates failed", zap.Error(err))
		response.Internal(c, "failed to list templates")
		return
	}
	response.OK(c, list)
}

// Save handles POST /api/workshops/:id/templates (admin only). Upserts on
// (workshop, image_url), so repeated saves from the editor are idempotent.
func (h *Handler) Save(c *gin.Context) {
	workshopID, ok := h.workshopID(c)
	if !ok {
		return
	}
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	t := &models.CertificateTemplate{
		WorkshopID: workshopID,
		ImageURL:   req.ImageURL,
		Name:       placeholderOrDefault(req.Name, models.DefaultNamePlaceholder()),
		Code:       placeholderOrDefault(req.Code, models.DefaultCodePlaceholder()),
	}
	if err := validatePlaceholder(t.Name); err != nil {
		response.BadRequest(c, "name_placeholder: "+err.Error())
		return
	}
	if err := validatePlaceholder(t.Code); err != nil {
		response.BadRequest(c, "code_placeholder: "+err.Error())
		return
	}
	if err := h.repo.Save(c.Request.Context(), t); err != nil {
		h.logger.Error("save template failed", zap.Error(err), zap.String("workshop_id", workshopID.String()))
		response.Internal(c, "failed to save template")
		return
	}
	response.Created(c, t)
}

// Delete handles DELETE /api/workshops/:id/templates/:templateID (admin only).
func (h *Handler) Delete(c *gin.Context) {
	workshopID, ok := h.workshopID(c)
	if !ok {
		return
	}
	templateID, err := uuid.Parse(c.Param("templateID"))
	if err != nil {
		response.BadRequest(c, "invalid template id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), workshopID, templateID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "template not found")
			return
		}
		response.Internal(c, "failed to delete template")
		return
	}
	response.OK(c, gin.H{"message": "template deleted"})
}

// UploadImage handles POST /api/workshops/:id/templates/upload (admin only).
// Streams the background image to S3 and returns the public URL the editor
// passes back in Save.
func (h *Handler) UploadImage(c *gin.Context) {
	if h.s3 == nil {
		response.BadRequest(c, "image uploads are not configured")
		return
	}
	workshopID, ok := h.workshopID(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fileHeader.Size > storage.MaxTemplateFileSize {
		response.BadRequest(c, "file too large")
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !storage.ValidateTemplateFileType(contentType, fileHeader.Filename) {
		response.BadRequest(c, "only PNG and JPEG template images are supported")
		return
	}
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(fileHeader.Filename)
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer file.Close()

	key := storage.TemplateKey(workshopID.String(), fileHeader.Filename)
	url, err := h.s3.Upload(c.Request.Context(), h.s3.TemplatesBucket(), key, contentType, file, fileHeader.Size, true)
	if err != nil {
		h.logger.Error("template upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to upload template image")
		return
	}
	response.Created(c, gin.H{"image_url": url, "key": key})
}

func placeholderOrDefault(req *PlaceholderRequest, def models.PlaceholderSpec) models.PlaceholderSpec {
	if req == nil {
		return def
	}
	spec := models.PlaceholderSpec{
		X:          req.X,
		Y:          req.Y,
		FontSize:   req.FontSize,
		FontFamily: req.FontFamily,
		Alignment:  req.Alignment,
		Color:      req.Color,
	}
	if spec.FontFamily == "" {
		spec.FontFamily = def.FontFamily
	}
	if spec.Alignment == "" {
		spec.Alignment = def.Alignment
	}
	if spec.Color == "" {
		spec.Color = def.Color
	}
	if spec.FontSize == 0 {
		spec.FontSize = def.FontSize
	}
	return spec
}

func validatePlaceholder(p models.PlaceholderSpec) error {
	if p.X < 0 || p.X > 100 || p.Y < 0 || p.Y > 100 {
		return errors.New("x and y must be between 0 and 100")
	}
	if p.FontSize <= 0 {
		return errors.New("font_size must be positive")
	}
	switch p.Alignment {
	case models.AlignLeft, models.AlignCenter, models.AlignRight:
	default:
		return errors.New("alignment must be left, center or right")
	}
	return nil
}
