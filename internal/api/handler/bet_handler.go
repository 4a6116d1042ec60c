package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/taasclub/cardbet/internal/api/middleware"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/service"
)

// BetHandler serves bet placement, lookup, claim and cancel endpoints.
type BetHandler struct {
	betSvc   *service.BetService
	claimSvc *service.ClaimService
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(betSvc *service.BetService, claimSvc *service.ClaimService) *BetHandler {
	return &BetHandler{betSvc: betSvc, claimSvc: claimSvc}
}

// PlaceBet godoc
// POST /api/bets [JWT]
// Body: {"round_id":"20250314150000","lines":[{"card_number":7,"bet_amount":"100.00"}]}
// An Idempotency-Key header makes retries of the same request safe.
func (h *BetHandler) PlaceBet(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var body struct {
		RoundID string `json:"round_id" binding:"required"`
		Lines   []struct {
			CardNumber int    `json:"card_number" binding:"required"`
			BetAmount  string `json:"bet_amount"  binding:"required"`
		} `json:"lines" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	lines := make([]domain.BetLine, 0, len(body.Lines))
	for _, l := range body.Lines {
		amount, err := decimal.NewFromString(l.BetAmount)
		if err != nil || !amount.IsPositive() {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "bet_amount must be a positive decimal string")
			return
		}
		lines = append(lines, domain.BetLine{CardNumber: l.CardNumber, BetAmount: amount})
	}

	req := &domain.PlaceBetRequest{
		UserID:  userID,
		RoundID: body.RoundID,
		Lines:   lines,
	}
	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		key = c.GetHeader("X-Idempotency-Key")
	}
	if key != "" {
		req.IdempotencyKey = &key
	}

	slip, created, err := h.betSvc.PlaceBet(c.Request.Context(), req)
	if err != nil {
		switch err {
		case domain.ErrEmptySlip, domain.ErrInvalidAmount:
			respondError(c, http.StatusBadRequest, "ERR_INVALID_SLIP", err.Error())
		case domain.ErrInvalidCard:
			respondError(c, http.StatusBadRequest, "ERR_INVALID_CARD", err.Error())
		case domain.ErrBetTooLarge:
			respondError(c, http.StatusBadRequest, "ERR_BET_TOO_LARGE", err.Error())
		case domain.ErrInsufficientFunds:
			respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_FUNDS", err.Error())
		case domain.ErrRoundClosed:
			respondError(c, http.StatusConflict, "ERR_ROUND_CLOSED", err.Error())
		case domain.ErrIdempotencyConflict:
			respondError(c, http.StatusConflict, "ERR_CONFLICT", "idempotency key already used")
		case domain.ErrRoundNotFound:
			respondError(c, http.StatusNotFound, "ERR_ROUND_NOT_FOUND", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not place bet")
		}
		return
	}
	// A replayed slip answers 200; only a fresh placement is 201.
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondSuccess(c, status, slip)
}

// GetSlip godoc
// GET /api/bets/:identifier [JWT] — identifier is a slip UUID or barcode
func (h *BetHandler) GetSlip(c *gin.Context) {
	userID := middleware.GetUserID(c)

	slip, err := h.betSvc.GetSlip(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		switch err {
		case domain.ErrSlipNotFound:
			respondError(c, http.StatusNotFound, "ERR_SLIP_NOT_FOUND", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch slip")
		}
		return
	}
	if slip.UserID != userID {
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "this slip does not belong to you")
		return
	}
	respondSuccess(c, http.StatusOK, slip)
}

// GetMyBets godoc
// GET /api/bets/my?page=1&limit=20 [JWT]
func (h *BetHandler) GetMyBets(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	slips, err := h.betSvc.ListUserSlips(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch slips")
		return
	}
	respondList(c, slips, len(slips), page, limit)
}

// Claim godoc
// POST /api/bets/:identifier/claim [JWT]
func (h *BetHandler) Claim(c *gin.Context) {
	userID := middleware.GetUserID(c)

	result, err := h.claimSvc.Claim(c.Request.Context(), userID, c.Param("identifier"))
	if err != nil {
		switch err {
		case domain.ErrSlipNotFound:
			respondError(c, http.StatusNotFound, "ERR_SLIP_NOT_FOUND", err.Error())
		case domain.ErrForbidden:
			respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "this slip does not belong to you")
		case domain.ErrAlreadyClaimed:
			respondError(c, http.StatusConflict, "ERR_ALREADY_CLAIMED", err.Error())
		case domain.ErrNotWinning:
			respondError(c, http.StatusConflict, "ERR_NOT_WINNING", err.Error())
		case domain.ErrRoundNotCompleted:
			respondError(c, http.StatusConflict, "ERR_ROUND_NOT_SETTLED", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not claim slip")
		}
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// Cancel godoc
// POST /api/bets/:identifier/cancel [JWT]
func (h *BetHandler) Cancel(c *gin.Context) {
	userID := middleware.GetUserID(c)

	slipID, err := uuid.Parse(c.Param("identifier"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_SLIP_ID", "invalid slip id")
		return
	}

	if err := h.claimSvc.Cancel(c.Request.Context(), userID, slipID); err != nil {
		switch err {
		case domain.ErrSlipNotFound:
			respondError(c, http.StatusNotFound, "ERR_SLIP_NOT_FOUND", err.Error())
		case domain.ErrForbidden:
			respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "this slip does not belong to you")
		case domain.ErrNotCancellable:
			respondError(c, http.StatusConflict, "ERR_NOT_CANCELLABLE", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not cancel slip")
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"cancelled": true})
}
