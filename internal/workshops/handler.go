package workshops

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acm-certify/backend/internal/models"
	"github.com/acm-certify/backend/pkg/response"
)

// CreateRequest is the body for POST /api/workshops.
type CreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Date        string `json:"date" binding:"required"`
	Description string `json:"description"`
	Level       string `json:"level"`
	Instructor  string `json:"instructor" binding:"required"`
	Image       string `json:"image"`
}

// UpdateRequest is the body for PATCH /api/workshops/:id. Nil fields are left unchanged.
type UpdateRequest struct {
	Title       *string `json:"title"`
	Date        *string `json:"date"`
	Description *string `json:"description"`
	Level       *string `json:"level"`
	Instructor  *string `json:"instructor"`
	Image       *string `json:"image"`
}

// Handler handles workshop HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a workshop handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /api/workshops (admin only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Level == "" {
		req.Level = "Beginner"
	}
	w := &models.Workshop{
		Title:       req.Title,
		Date:        req.Date,
		Description: req.Description,
		Level:       req.Level,
		Instructor:  req.Instructor,
		Image:       req.Image,
	}
	if err := h.repo.Create(c.Request.Context(), w); err != nil {
		h.logger.Error("create workshop failed", zap.Error(err))
		response.Internal(c, "failed to create workshop")
		return
	}
	response.Created(c, w)
}

// GetByID handles GET /api/workshops/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return
	}
	w, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "workshop not found")
		return
	}
	response.OK(c, w)
}

// List handles GET /api/workshops.
func (h *Handler) List(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	list, err := h.repo.List(c.Request.Context(), offset, limit)
	if err != nil {
		h.logger.Error("list workshops failed", zap.Error(err))
		response.Internal(c, "failed to list workshops")
		return
	}
	response.OK(c, list)
}

// Update handles PATCH /api/workshops/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return
	}
	w, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "workshop not found")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	if req.Title != nil {
		w.Title = *req.Title
	}
	if req.Date != nil {
		w.Date = *req.Date
	}
	if req.Description != nil {
		w.Description = *req.Description
	}
	if req.Level != nil {
		w.Level = *req.Level
	}
	if req.Instructor != nil {
		w.Instructor = *req.Instructor
	}
	if req.Image != nil {
		w.Image = *req.Image
	}
	if err := h.repo.Update(c.Request.Context(), w); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "workshop not found")
			return
		}
		h.logger.Error("update workshop failed", zap.Error(err))
		response.Internal(c, "failed to update workshop")
		return
	}
	response.OK(c, w)
}

// Delete handles DELETE /api/workshops/:id (admin only).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid workshop id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "workshop not found")
			return
		}
		response.Conflict(c, "workshop still has certificates")
		return
	}
	response.OK(c, gin.H{"message": "workshop deleted"})
}
