package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/service"
)

// SettingsHandler serves /admin/settings endpoints.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// List godoc
// GET /admin/settings
func (h *SettingsHandler) List(c *gin.Context) {
	rows, err := h.settings.List(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, rows)
}

// Update godoc
// PATCH /admin/settings/:key
// Body: {"value":"450"}
// The settings cache is invalidated on success, so the new value is live on
// the next read.
func (h *SettingsHandler) Update(c *gin.Context) {
	var body struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	key := c.Param("key")
	err := h.settings.Update(c.Request.Context(), key, body.Value, c.GetString("userID"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSettingNotFound):
			respondError(c, http.StatusNotFound, "ERR_UNKNOWN_KEY", err.Error())
		case errors.Is(err, domain.ErrSettingInvalid):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_VALUE", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"key": key, "value": body.Value})
}
