package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/repository"
	"github.com/taasclub/cardbet/internal/service"
)

// UserAdminHandler serves /admin/users endpoints, including wallet deposits
// and withdrawals.
type UserAdminHandler struct {
	userRepo  *repository.UserRepository
	walletSvc *service.WalletService
}

// NewUserAdminHandler creates a UserAdminHandler.
func NewUserAdminHandler(userRepo *repository.UserRepository, walletSvc *service.WalletService) *UserAdminHandler {
	return &UserAdminHandler{userRepo: userRepo, walletSvc: walletSvc}
}

// List godoc
// GET /admin/users?page=1&limit=50
func (h *UserAdminHandler) List(c *gin.Context) {
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	users, total, err := h.userRepo.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, users, total, page, limit)
}

// Detail godoc
// GET /admin/users/:id
func (h *UserAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, user)
}

// SetActive godoc
// POST /admin/users/:id/activate  |  POST /admin/users/:id/suspend
func (h *UserAdminHandler) SetActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
			return
		}
		if err := h.userRepo.SetActive(c.Request.Context(), id, active); err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
				return
			}
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
			return
		}
		respondSuccess(c, http.StatusOK, gin.H{"is_active": active})
	}
}

// SetRole godoc
// POST /admin/users/:id/role
// Body: {"role":"ops"}
func (h *UserAdminHandler) SetRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}

	var body struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	if err := h.userRepo.UpdateRole(c.Request.Context(), id, domain.UserRole(body.Role)); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"role": body.Role})
}

// Deposit godoc
// POST /admin/users/:id/deposit
// Body: {"amount":"500.00","comment":"counter deposit"}
func (h *UserAdminHandler) Deposit(c *gin.Context) {
	h.applyMoney(c, true)
}

// Withdraw godoc
// POST /admin/users/:id/withdraw
func (h *UserAdminHandler) Withdraw(c *gin.Context) {
	h.applyMoney(c, false)
}

func (h *UserAdminHandler) applyMoney(c *gin.Context, credit bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid user id")
		return
	}

	var body struct {
		Amount  string `json:"amount" binding:"required"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || !amount.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	actorID, _ := uuid.Parse(c.GetString("userID"))
	var balance decimal.Decimal
	if credit {
		balance, err = h.walletSvc.Deposit(c.Request.Context(), actorID, id, amount, body.Comment)
	} else {
		balance, err = h.walletSvc.Withdraw(c.Request.Context(), actorID, id, amount, body.Comment)
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
		case errors.Is(err, domain.ErrInsufficientFunds):
			respondError(c, http.StatusConflict, "ERR_INSUFFICIENT_FUNDS", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"balance": balance})
}
