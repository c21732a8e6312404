package verify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/acm-certify/backend/internal/certificates"
	"github.com/acm-certify/backend/internal/models"
	"github.com/acm-certify/backend/pkg/response"
	"github.com/acm-certify/backend/pkg/storage"
)

// Handler serves the public certificate endpoints. Nothing here requires
// authentication and nothing here exposes recipient email addresses.
type Handler struct {
	repo   *certificates.Repository
	media  *storage.Media
	logger *zap.Logger
}

// NewHandler creates the public verification handler.
func NewHandler(repo *certificates.Repository, media *storage.Media, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, media: media, logger: logger}
}

// Verify handles GET /api/certificates/verify/:code. Codes are matched
// case-insensitively by uppercasing the input.
func (h *Handler) Verify(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	cert, err := h.repo.GetByCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "certificate not found")
			return
		}
		h.logger.Error("verify lookup failed", zap.Error(err))
		response.Internal(c, "verification failed")
		return
	}
	if !cert.IsVerified {
		response.BadRequest(c, "certificate is not valid")
		return
	}
	response.OK(c, cert.Public(h.imageURL(cert)))
}

// Search handles GET /api/certificates/search?email=.
func (h *Handler) Search(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		response.BadRequest(c, "email query parameter is required")
		return
	}
	certs, err := h.repo.SearchByEmail(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("certificate search failed", zap.Error(err))
		response.Internal(c, "search failed")
		return
	}
	results := make([]models.PublicCertificate, 0, len(certs))
	for i := range certs {
		results = append(results, certs[i].Public(h.imageURL(&certs[i])))
	}
	response.OK(c, results)
}

// Download handles GET /api/certificates/download/:code, serving the
// generated PNG.
func (h *Handler) Download(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	cert, err := h.repo.GetByCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "certificate not found")
			return
		}
		h.logger.Error("download lookup failed", zap.Error(err))
		response.Internal(c, "download failed")
		return
	}
	if cert.Status != models.StatusGenerated || !h.media.Exists(cert.FilePath) {
		response.NotFound(c, "certificate has not been generated")
		return
	}
	full, err := h.media.FullPath(cert.FilePath)
	if err != nil {
		h.logger.Error("resolve certificate path failed", zap.Error(err))
		response.Internal(c, "download failed")
		return
	}
	c.FileAttachment(full, fmt.Sprintf("certificate-%s.png", cert.Code))
}

// imageURL returns the public serving path of a generated file, or "".
func (h *Handler) imageURL(cert *models.Certificate) string {
	if cert.FilePath == "" || !h.media.Exists(cert.FilePath) {
		return ""
	}
	return "/media/" + cert.FilePath
}
