package handlers

import (
	"net/http"

	"arena-engine/internal/auth"
	"arena-engine/internal/services"

	"github.com/gin-gonic/gin"
)

type EscrowHandler struct {
	escrowService *services.EscrowService
}

func NewEscrowHandler(escrowService *services.EscrowService) *EscrowHandler {
	return &EscrowHandler{
		escrowService: escrowService,
	}
}

// GetPendingBalance returns the caller's withdrawable balance
// GET /api/escrow/balance
func (h *EscrowHandler) GetPendingBalance(c *gin.Context) {
	caller, exists := auth.GetAccount(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	amount, err := h.escrowService.PendingBalance(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": amount})
}

// Withdraw pays out the caller's entire pending balance
// POST /api/escrow/withdraw
func (h *EscrowHandler) Withdraw(c *gin.Context) {
	caller, exists := auth.GetAccount(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	amount, err := h.escrowService.Withdraw(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawn": amount})
}
