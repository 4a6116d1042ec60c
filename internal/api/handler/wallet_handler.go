package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taasclub/cardbet/internal/api/middleware"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/service"
)

// WalletHandler serves wallet balance, summary and transaction history.
type WalletHandler struct {
	walletSvc *service.WalletService
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(walletSvc *service.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetBalance godoc
// GET /api/wallet/balance [JWT]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := middleware.GetUserID(c)

	balance, err := h.walletSvc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch balance")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"balance": balance})
}

// GetSummary godoc
// GET /api/wallet/summary?from=2025-03-01&to=2025-03-31 [JWT]
func (h *WalletHandler) GetSummary(c *gin.Context) {
	userID := middleware.GetUserID(c)

	from, to, err := parseDateRange(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "from/to must be YYYY-MM-DD")
		return
	}

	summary, err := h.walletSvc.Summary(c.Request.Context(), userID, from, to)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch summary")
		return
	}
	respondSuccess(c, http.StatusOK, summary)
}

// GetTransactions godoc
// GET /api/wallet/transactions?kind=game&round_id=...&page=1&limit=20 [JWT]
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	filter := domain.LedgerFilter{
		Kind:    domain.TxKind(c.Query("kind")),
		RefKind: domain.RefKind(c.Query("ref_kind")),
		RoundID: c.Query("round_id"),
	}

	entries, err := h.walletSvc.Transactions(c.Request.Context(), userID, filter, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch transactions")
		return
	}
	respondList(c, entries, len(entries), page, limit)
}

// parseDateRange reads ?from and ?to as YYYY-MM-DD, defaulting to the last
// 30 days.
func parseDateRange(c *gin.Context) (from, to time.Time, err error) {
	now := time.Now().UTC()
	from = now.AddDate(0, 0, -30)
	to = now

	if v := c.Query("from"); v != "" {
		if from, err = time.Parse("2006-01-02", v); err != nil {
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse("2006-01-02", v); err != nil {
			return
		}
		to = to.AddDate(0, 0, 1) // inclusive end day
	}
	return
}
