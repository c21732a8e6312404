package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/acm-certify/backend/internal/models"
	"github.com/acm-certify/backend/pkg/response"
	"github.com/acm-certify/backend/pkg/utils"
)

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// Handler handles admin authentication endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	admin, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.Unauthorized(c, "invalid credentials")
			return
		}
		h.logger.Error("load admin failed", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	if !admin.IsActive || !utils.CheckPassword(req.Password, admin.HashedPassword) {
		response.Unauthorized(c, "invalid credentials")
		return
	}

	token, err := h.jwt.Generate(admin.ID, admin.Email)
	if err != nil {
		h.logger.Error("generate token failed", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	response.OK(c, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   h.jwt.ExpiresIn(),
	})
}

// Bootstrap ensures the configured admin account exists. A blank password
// skips seeding so production deployments must set their own credentials.
func Bootstrap(ctx context.Context, repo *Repository, email, password string, logger *zap.Logger) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.Admin{Email: email, HashedPassword: hashed}
	if err := repo.Create(ctx, admin); err != nil {
		return err
	}
	logger.Info("bootstrap admin created", zap.String("email", email))
	return nil
}
