package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/service"
)

// GameHandler serves the public round endpoints.
type GameHandler struct {
	gameSvc *service.GameService
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(gameSvc *service.GameService) *GameHandler {
	return &GameHandler{gameSvc: gameSvc}
}

// GetCurrent godoc
// GET /api/games/current
func (h *GameHandler) GetCurrent(c *gin.Context) {
	round, err := h.gameSvc.GetCurrentRound(c.Request.Context())
	if err != nil {
		switch err {
		case domain.ErrNoCurrentRound:
			respondError(c, http.StatusNotFound, "ERR_NO_CURRENT_ROUND", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch current round")
		}
		return
	}
	respondSuccess(c, http.StatusOK, round.ToSummary())
}

// GetPrevious godoc
// GET /api/games/previous
func (h *GameHandler) GetPrevious(c *gin.Context) {
	round, err := h.gameSvc.GetPreviousRound(c.Request.Context())
	if err != nil {
		switch err {
		case domain.ErrRoundNotFound:
			respondError(c, http.StatusNotFound, "ERR_ROUND_NOT_FOUND", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch previous round")
		}
		return
	}
	respondSuccess(c, http.StatusOK, round.ToSummary())
}

// GetByID godoc
// GET /api/games/:id
func (h *GameHandler) GetByID(c *gin.Context) {
	round, err := h.gameSvc.GetRound(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch err {
		case domain.ErrRoundNotFound:
			respondError(c, http.StatusNotFound, "ERR_ROUND_NOT_FOUND", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch round")
		}
		return
	}
	respondSuccess(c, http.StatusOK, round.ToSummary())
}
