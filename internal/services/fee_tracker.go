package services

import (
	"math"

	"arena-engine/internal/models"
)

const (
	// MaxAttempts caps the fee-doubling curve. The attempt after the cap
	// fails with a capacity error instead of growing the exponent further.
	MaxAttempts = 20

	// MaxAnswerLen bounds the stored answer payload.
	MaxAnswerLen = 5000
)

// EscalatedFee returns the fee owed for the next attempt given how many
// attempts the participant has already made: base_fee * 2^attempts.
func EscalatedFee(baseFee uint64, attempts int) (uint64, error) {
	if attempts >= MaxAttempts {
		return 0, models.NewEngineError(models.ErrKindCapacity, 0, "", "attempt cap reached")
	}
	if attempts < 0 {
		return 0, models.NewEngineError(models.ErrKindState, 0, "", "negative attempt count")
	}
	if baseFee > math.MaxUint64>>uint(attempts) {
		return 0, models.NewEngineError(models.ErrKindCapacity, 0, "", "escalated fee overflows")
	}
	return baseFee << uint(attempts), nil
}

// ValidateAnswerPayload enforces the payload bounds shared by both contest
// variants.
func ValidateAnswerPayload(payload string) error {
	if payload == "" {
		return models.NewEngineError(models.ErrKindCapacity, 0, "", "answer payload is empty")
	}
	if len(payload) > MaxAnswerLen {
		return models.NewEngineError(models.ErrKindCapacity, 0, "", "answer payload too long")
	}
	return nil
}
