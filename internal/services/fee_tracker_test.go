package services

import (
	"math"
	"strings"
	"testing"

	"arena-engine/internal/models"

	"github.com/stretchr/testify/require"
)

func TestEscalatedFeeDoubles(t *testing.T) {
	base := uint64(10)
	expected := []uint64{10, 20, 40, 80, 160}

	for attempts, want := range expected {
		fee, err := EscalatedFee(base, attempts)
		require.NoError(t, err)
		require.Equal(t, want, fee, "attempt %d", attempts)
	}

	// The last attempt inside the cap still computes.
	fee, err := EscalatedFee(base, MaxAttempts-1)
	require.NoError(t, err)
	require.Equal(t, base<<uint(MaxAttempts-1), fee)
}

func TestEscalatedFeeAttemptCap(t *testing.T) {
	_, err := EscalatedFee(10, MaxAttempts)
	require.True(t, models.IsKind(err, models.ErrKindCapacity))

	_, err = EscalatedFee(10, MaxAttempts+5)
	require.True(t, models.IsKind(err, models.ErrKindCapacity))
}

func TestEscalatedFeeOverflow(t *testing.T) {
	_, err := EscalatedFee(math.MaxUint64/2, 2)
	require.True(t, models.IsKind(err, models.ErrKindCapacity))

	// Right at the boundary the shift is still representable.
	base := uint64(math.MaxUint64 >> 3)
	fee, err := EscalatedFee(base, 3)
	require.NoError(t, err)
	require.Equal(t, base<<3, fee)
}

func TestEscalatedFeeNegativeAttempts(t *testing.T) {
	_, err := EscalatedFee(10, -1)
	require.True(t, models.IsKind(err, models.ErrKindState))
}

func TestValidateAnswerPayload(t *testing.T) {
	require.NoError(t, ValidateAnswerPayload("42"))
	require.NoError(t, ValidateAnswerPayload(strings.Repeat("x", MaxAnswerLen)))

	err := ValidateAnswerPayload("")
	require.True(t, models.IsKind(err, models.ErrKindCapacity))

	err = ValidateAnswerPayload(strings.Repeat("x", MaxAnswerLen+1))
	require.True(t, models.IsKind(err, models.ErrKindCapacity))
}
