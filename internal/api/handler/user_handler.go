package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taasclub/cardbet/internal/api/middleware"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/repository"
	"github.com/taasclub/cardbet/internal/service"
)

// UserHandler serves registration, login, token refresh and the profile
// endpoint.
type UserHandler struct {
	authSvc  *service.AuthService
	userRepo *repository.UserRepository
}

func NewUserHandler(authSvc *service.AuthService, userRepo *repository.UserRepository) *UserHandler {
	return &UserHandler{authSvc: authSvc, userRepo: userRepo}
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Register handles POST /api/auth/register.
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	resp, err := h.authSvc.Register(c.Request.Context(), req)
	switch err {
	case nil:
		respondSuccess(c, http.StatusCreated, resp)
	case domain.ErrEmailTaken:
		respondError(c, http.StatusConflict, "ERR_EMAIL_TAKEN", err.Error())
	case domain.ErrUsernameTaken:
		respondError(c, http.StatusConflict, "ERR_USERNAME_TAKEN", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not register")
	}
}

// Login handles POST /api/auth/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	resp, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	switch err {
	case nil:
		respondSuccess(c, http.StatusOK, resp)
	case domain.ErrInvalidCredentials:
		respondError(c, http.StatusUnauthorized, "ERR_INVALID_CREDENTIALS", err.Error())
	case domain.ErrUserInactive:
		respondError(c, http.StatusForbidden, "ERR_USER_INACTIVE", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not log in")
	}
}

// Refresh handles POST /api/auth/refresh. Both tokens rotate on every call.
func (h *UserHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	access, refresh, err := h.authSvc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "ERR_TOKEN_INVALID", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

// Me handles GET /api/me for the authenticated user.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userRepo.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_USER_NOT_FOUND", "user not found")
		return
	}
	respondSuccess(c, http.StatusOK, user.ToPublicProfile())
}
