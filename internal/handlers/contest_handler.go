package handlers

import (
	"context"
	"net/http"

	"arena-engine/internal/auth"
	"arena-engine/internal/models"
	"arena-engine/internal/services"

	"github.com/gin-gonic/gin"
)

type ContestHandler struct {
	contestService *services.ContestService
}

func NewContestHandler(contestService *services.ContestService) *ContestHandler {
	return &ContestHandler{
		contestService: contestService,
	}
}

// CreateContest creates a new contest
// POST /api/contests
func (h *ContestHandler) CreateContest(c *gin.Context) {
	caller, exists := auth.GetAccount(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.CreateContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contest, err := h.contestService.CreateContest(c.Request.Context(), caller, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, contest)
}

// GetContest retrieves a contest by id
// GET /api/contests/:id
func (h *ContestHandler) GetContest(c *gin.Context) {
	contestID, ok := parseContestID(c)
	if !ok {
		return
	}

	contest, err := h.contestService.GetContest(c.Request.Context(), contestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contest)
}

// ListContests retrieves contests by phase
// GET /api/contests?phase=OPEN
func (h *ContestHandler) ListContests(c *gin.Context) {
	phase := models.ContestPhase(c.DefaultQuery("phase", string(models.ContestPhaseOpen)))
	limit, offset := parsePagination(c)

	contests, total, err := h.contestService.ListByPhase(c.Request.Context(), phase, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contests": contests,
		"total":    total,
	})
}

// GetEntries retrieves a contest's entries
// GET /api/contests/:id/entries
func (h *ContestHandler) GetEntries(c *gin.Context) {
	contestID, ok := parseContestID(c)
	if !ok {
		return
	}

	entries, err := h.contestService.GetEntries(c.Request.Context(), contestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// GetMyContests retrieves the caller's contest history
// GET /api/contests/mine
func (h *ContestHandler) GetMyContests(c *gin.Context) {
	caller, exists := auth.GetAccount(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	limit, offset := parsePagination(c)

	contests, total, err := h.contestService.ListAccountContests(c.Request.Context(), caller, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contests": contests,
		"total":    total,
	})
}

// JoinContest admits the caller into a contest
// POST /api/contests/:id/join
func (h *ContestHandler) JoinContest(c *gin.Context) {
	caller, exists := auth.GetAccount(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	contestID, ok := parseContestID(c)
	if !ok {
		return
	}

	var req models.JoinContestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.contestService.JoinContest(c.Request.Context(), contestID, caller, req.Identity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// SubmitAnswer records one answer attempt
// POST /api/contests/:id/answers
func (h *ContestHandler) SubmitAnswer(c *gin.Context) {
	caller, exists := auth.GetAccount(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	contestID, ok := parseContestID(c)
	if !ok {
		return
	}

	var req models.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	submission, err := h.contestService.SubmitAnswer(c.Request.Context(), contestID, caller, req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"attempt":  submission.Attempt,
		"fee_paid": submission.FeePaid,
	})
}

// PickWinner lets a bounty creator select the winner
// POST /api/contests/:id/pick-winner
func (h *ContestHandler) PickWinner(c *gin.Context) {
	caller, exists := auth.GetAccount(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	contestID, ok := parseContestID(c)
	if !ok {
		return
	}

	var req models.PickWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.contestService.PickWinner(c.Request.Context(), contestID, caller, req.WinnerAccount); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "settled"})
}

// ClaimWinnerReward credits the picked winner's reward
// POST /api/contests/:id/claims/winner
func (h *ContestHandler) ClaimWinnerReward(c *gin.Context) {
	h.claim(c, h.contestService.ClaimWinnerReward)
}

// ClaimShare credits a proportional fallback share
// POST /api/contests/:id/claims/share
func (h *ContestHandler) ClaimShare(c *gin.Context) {
	h.claim(c, h.contestService.ClaimShare)
}

// ClaimCreatorRefund returns an unanswered bounty's reward to its creator
// POST /api/contests/:id/claims/refund
func (h *ContestHandler) ClaimCreatorRefund(c *gin.Context) {
	h.claim(c, h.contestService.ClaimCreatorRefund)
}

func (h *ContestHandler) claim(
	c *gin.Context,
	fn func(ctx context.Context, contestID uint, caller string) (uint64, error),
) {
	caller, exists := auth.GetAccount(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	contestID, ok := parseContestID(c)
	if !ok {
		return
	}

	amount, err := fn(c.Request.Context(), contestID, caller)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credited": amount})
}

// GetSettlement retrieves the settlement record of a resolved contest
// GET /api/contests/:id/settlement
func (h *ContestHandler) GetSettlement(c *gin.Context) {
	contestID, ok := parseContestID(c)
	if !ok {
		return
	}

	record, err := h.contestService.GetSettlement(c.Request.Context(), contestID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetStats retrieves the caller's participation roll-up
// GET /api/stats/me
func (h *ContestHandler) GetStats(c *gin.Context) {
	caller, exists := auth.GetAccount(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, err := h.contestService.GetParticipantStats(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
