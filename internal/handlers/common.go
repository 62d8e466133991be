package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"arena-engine/internal/models"

	"github.com/gin-gonic/gin"
)

// respondError maps the engine error taxonomy onto HTTP statuses. Typed
// errors keep their identifiers in the payload so callers can act without a
// second round-trip.
func respondError(c *gin.Context, err error) {
	var ee *models.EngineError
	if !errors.As(err, &ee) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusBadRequest
	switch ee.Kind {
	case models.ErrKindCapability:
		status = http.StatusForbidden
	case models.ErrKindNotFound:
		status = http.StatusNotFound
	case models.ErrKindPhaseMismatch, models.ErrKindState, models.ErrKindReentrancy:
		status = http.StatusConflict
	case models.ErrKindDeadlinePassed, models.ErrKindDeadlineNotReached:
		status = http.StatusUnprocessableEntity
	case models.ErrKindCapacity, models.ErrKindConfig:
		status = http.StatusBadRequest
	case models.ErrKindTransfer:
		status = http.StatusBadGateway
	case models.ErrKindPaused:
		status = http.StatusServiceUnavailable
	}

	body := gin.H{
		"error": ee.Error(),
		"kind":  ee.Kind,
	}
	if ee.ContestID != 0 {
		body["contest_id"] = ee.ContestID
	}
	if ee.Account != "" {
		body["account"] = ee.Account
	}
	if ee.Kind == models.ErrKindPhaseMismatch {
		body["expected_phase"] = ee.Expected
		body["actual_phase"] = ee.Actual
	}
	c.JSON(status, body)
}

// parseContestID reads the :id path parameter
func parseContestID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contest id"})
		return 0, false
	}
	return uint(id), true
}

// parsePagination reads limit/offset query parameters with sane bounds
func parsePagination(c *gin.Context) (int, int) {
	limit := 20
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}
