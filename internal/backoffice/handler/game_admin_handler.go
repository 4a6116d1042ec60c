package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/service"
)

// GameAdminHandler serves /admin/games endpoints: round listing, settlement
// preview, and manual settlement.
type GameAdminHandler struct {
	gameSvc       *service.GameService
	settlementSvc *service.SettlementService
	betSvc        *service.BetService
}

// NewGameAdminHandler creates a GameAdminHandler.
func NewGameAdminHandler(
	gameSvc *service.GameService,
	settlementSvc *service.SettlementService,
	betSvc *service.BetService,
) *GameAdminHandler {
	return &GameAdminHandler{gameSvc: gameSvc, settlementSvc: settlementSvc, betSvc: betSvc}
}

// List godoc
// GET /admin/games?lifecycle=completed&page=1&limit=50
func (h *GameAdminHandler) List(c *gin.Context) {
	lifecycle := c.Query("lifecycle")
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	rounds, total, err := h.gameSvc.ListRounds(c.Request.Context(), lifecycle, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, rounds, total, page, limit)
}

// Detail godoc
// GET /admin/games/:id
func (h *GameAdminHandler) Detail(c *gin.Context) {
	round, err := h.gameSvc.GetRound(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrRoundNotFound) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, round)
}

// Preview godoc
// GET /admin/games/:id/settlement-preview
// Shows the per-card payout table and the card the configured policy would
// pick, without settling anything.
func (h *GameAdminHandler) Preview(c *gin.Context) {
	previews, pick, err := h.settlementSvc.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrRoundNotFound) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"cards":         previews,
		"selected_card": pick,
	})
}

// Settle godoc
// POST /admin/games/:id/settle
// Body: {"winning_card": 7} — omit winning_card to let the configured policy
// choose (rejected while game_result_type is manual).
func (h *GameAdminHandler) Settle(c *gin.Context) {
	var body struct {
		WinningCard *int `json:"winning_card"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	actorID, _ := uuid.Parse(c.GetString("userID"))
	report, err := h.settlementSvc.SettleRound(c.Request.Context(), c.Param("id"), service.SettleOptions{
		Initiator:   domain.InitiatorAdmin,
		WinningCard: body.WinningCard,
		ActorID:     actorID,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoundNotFound):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		case errors.Is(err, domain.ErrRoundNotCompleted):
			respondError(c, http.StatusConflict, "ERR_ROUND_NOT_COMPLETED", err.Error())
		case errors.Is(err, domain.ErrSettlementInProgress):
			respondError(c, http.StatusConflict, "ERR_SETTLEMENT_IN_PROGRESS", err.Error())
		case errors.Is(err, domain.ErrAwaitingManual):
			// Accepted but not settled: the round stays parked until an
			// operator posts a winning_card.
			respondError(c, http.StatusAccepted, "ERR_AWAITING_MANUAL", "manual result mode: winning_card is required")
		case errors.Is(err, domain.ErrInvalidCard):
			respondError(c, http.StatusBadRequest, "ERR_INVALID_CARD", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_SETTLEMENT_FAILED", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusOK, report)
}

// Slips godoc
// GET /admin/games/:id/slips
func (h *GameAdminHandler) Slips(c *gin.Context) {
	roundID := c.Param("id")

	if _, err := h.gameSvc.GetRound(c.Request.Context(), roundID); err != nil {
		if errors.Is(err, domain.ErrRoundNotFound) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	slips, err := h.betSvc.ListRoundSlips(c.Request.Context(), roundID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, slips)
}
