package handlers

import (
	"context"
	"net/http"

	"arena-engine/internal/auth"
	"arena-engine/internal/models"
	"arena-engine/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the operator control surface. Every route still
// re-checks the operator role in the service layer; the handler only
// resolves the caller.
type AdminHandler struct {
	adminService   *services.AdminService
	contestService *services.ContestService
}

func NewAdminHandler(adminService *services.AdminService, contestService *services.ContestService) *AdminHandler {
	return &AdminHandler{
		adminService:   adminService,
		contestService: contestService,
	}
}

func callerOrAbort(c *gin.Context) (string, bool) {
	caller, exists := auth.GetAccount(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return caller, true
}

// PostQuestion stores the answer commitment
// POST /api/admin/contests/:id/question
func (h *AdminHandler) PostQuestion(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	contestID, ok := parseContestID(c)
	if !ok {
		return
	}

	var req struct {
		CommitmentHash string `json:"commitment_hash" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.contestService.PostQuestion(c.Request.Context(), contestID, caller, req.CommitmentHash); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "question_posted"})
}

// OpenAnswering starts the answer period
// POST /api/admin/contests/:id/open-answering
func (h *AdminHandler) OpenAnswering(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	contestID, ok := parseContestID(c)
	if !ok {
		return
	}

	if err := h.contestService.OpenAnswering(c.Request.Context(), contestID, caller); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "active"})
}

// Settle resolves a fixed-split contest with a designated winner
// POST /api/admin/contests/:id/settle
func (h *AdminHandler) Settle(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	contestID, ok := parseContestID(c)
	if !ok {
		return
	}

	var req models.SettleContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.contestService.Settle(c.Request.Context(), contestID, caller, req.WinnerAccount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Approve opens a screened bounty
// POST /api/admin/contests/:id/approve
func (h *AdminHandler) Approve(c *gin.Context) {
	h.transition(c, h.contestService.Approve, "open")
}

// Reject closes a screened bounty and refunds its creator
// POST /api/admin/contests/:id/reject
func (h *AdminHandler) Reject(c *gin.Context) {
	h.transition(c, h.contestService.Reject, "rejected")
}

// Expire terminates a contest nobody joined
// POST /api/admin/contests/:id/expire
func (h *AdminHandler) Expire(c *gin.Context) {
	h.transition(c, h.contestService.Expire, "expired")
}

// RefundTimeout refunds a timed-out unresolved contest
// POST /api/admin/contests/:id/refund
func (h *AdminHandler) RefundTimeout(c *gin.Context) {
	h.transition(c, h.contestService.RefundTimeout, "refunded")
}

func (h *AdminHandler) transition(
	c *gin.Context,
	fn func(ctx context.Context, contestID uint, caller string) error,
	status string,
) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	contestID, ok := parseContestID(c)
	if !ok {
		return
	}

	if err := fn(c.Request.Context(), contestID, caller); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// AddOperator grants the operator role
// POST /api/admin/operators
func (h *AdminHandler) AddOperator(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req models.OperatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.adminService.AddOperator(c.Request.Context(), caller, req.Account); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": req.Account})
}

// RemoveOperator revokes the operator role
// DELETE /api/admin/operators/:account
func (h *AdminHandler) RemoveOperator(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	account := c.Param("account")
	if err := h.adminService.RemoveOperator(c.Request.Context(), caller, account); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": account})
}

// UpdateTreasury changes the treasury account
// PUT /api/admin/treasury
func (h *AdminHandler) UpdateTreasury(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req models.UpdateTreasuryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.adminService.UpdateTreasury(c.Request.Context(), caller, req.Account); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"treasury": req.Account})
}

// UpdateSplits changes the settlement split weights
// PUT /api/admin/splits
func (h *AdminHandler) UpdateSplits(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req models.UpdateSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.adminService.UpdateSplitWeights(c.Request.Context(), caller,
		req.WinnerBps, req.TreasuryBps, req.ResidualBps)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// Pause suspends entry-side mutations
// POST /api/admin/pause
func (h *AdminHandler) Pause(c *gin.Context) {
	h.setPaused(c, true)
}

// Unpause resumes entry-side mutations
// POST /api/admin/unpause
func (h *AdminHandler) Unpause(c *gin.Context) {
	h.setPaused(c, false)
}

func (h *AdminHandler) setPaused(c *gin.Context, paused bool) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	if err := h.adminService.SetPaused(c.Request.Context(), caller, paused); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": paused})
}

// GetSettings exposes the current engine settings
// GET /api/admin/settings
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.adminService.GetSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
