package services

import (
	"testing"

	"arena-engine/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestValidateSplitWeights(t *testing.T) {
	require.NoError(t, ValidateSplitWeights(8500, 1000, 500))
	require.NoError(t, ValidateSplitWeights(10000, 0, 0))

	err := ValidateSplitWeights(8500, 1000, 400)
	require.Error(t, err)
	require.True(t, models.IsKind(err, models.ErrKindConfig))

	err = ValidateSplitWeights(9000, 1000, 500)
	require.True(t, models.IsKind(err, models.ErrKindConfig))
}

func TestSplitPoolExactShares(t *testing.T) {
	split, err := SplitPool(100, 8500, 1000, 500)
	require.NoError(t, err)
	require.Equal(t, uint64(85), split.WinnerShare)
	require.Equal(t, uint64(10), split.TreasuryShare)
	require.Equal(t, uint64(5), split.ResidualShare)
}

func TestSplitPoolResidualAbsorbsDust(t *testing.T) {
	// 999 does not divide evenly; truncation dust must land in the residual
	// so the three shares still sum to the pool.
	pools := []uint64{0, 1, 3, 999, 10001, 123456789}
	for _, pool := range pools {
		split, err := SplitPool(pool, 8500, 1000, 500)
		require.NoError(t, err)
		require.Equal(t, pool, split.WinnerShare+split.TreasuryShare+split.ResidualShare,
			"pool %d must split without loss", pool)
		require.LessOrEqual(t, split.WinnerShare, pool)
	}
}

func TestSplitPoolRejectsBadWeights(t *testing.T) {
	_, err := SplitPool(1000, 5000, 5000, 5000)
	require.True(t, models.IsKind(err, models.ErrKindConfig))
}

func TestProportionalShareWeighted(t *testing.T) {
	total := decimal.NewFromInt(180)

	a := ProportionalShare(1000, decimal.NewFromInt(100), total, 2)
	b := ProportionalShare(1000, decimal.NewFromInt(80), total, 2)

	require.Equal(t, uint64(555), a) // 1000*100/180 truncated
	require.Equal(t, uint64(444), b) // 1000*80/180 truncated
	require.LessOrEqual(t, a+b, uint64(1000))
}

func TestProportionalShareNegativeScoreGetsZero(t *testing.T) {
	total := decimal.NewFromInt(100)

	require.Equal(t, uint64(0), ProportionalShare(1000, decimal.NewFromInt(-10), total, 2))
	require.Equal(t, uint64(0), ProportionalShare(1000, decimal.Zero, total, 2))
	require.Equal(t, uint64(1000), ProportionalShare(1000, decimal.NewFromInt(100), total, 2))
}

func TestProportionalShareMixedTrio(t *testing.T) {
	// Snapshots -50, 100, 75: only the positive ones count toward the total.
	total := FoldPositiveReputation(decimal.Zero, decimal.NewFromInt(-50))
	total = FoldPositiveReputation(total, decimal.NewFromInt(100))
	total = FoldPositiveReputation(total, decimal.NewFromInt(75))
	require.True(t, total.Equal(decimal.NewFromInt(175)))

	reward := uint64(9000)
	negative := ProportionalShare(reward, decimal.NewFromInt(-50), total, 3)
	mid := ProportionalShare(reward, decimal.NewFromInt(75), total, 3)
	high := ProportionalShare(reward, decimal.NewFromInt(100), total, 3)

	require.Equal(t, uint64(0), negative)
	require.Equal(t, uint64(3857), mid)  // 9000*75/175 truncated
	require.Equal(t, uint64(5142), high) // 9000*100/175 truncated
	require.LessOrEqual(t, negative+mid+high, reward)
}

func TestProportionalShareFractionalSnapshots(t *testing.T) {
	// decimal(18,6) snapshots must divide exactly, not through floats.
	score := decimal.RequireFromString("33.333333")
	total := decimal.RequireFromString("99.999999")

	share := ProportionalShare(3000, score, total, 3)
	require.Equal(t, uint64(1000), share)
}

func TestProportionalShareEqualSplitFallback(t *testing.T) {
	// No positive reputation recorded: reward splits equally across the
	// answering participants.
	require.Equal(t, uint64(450), ProportionalShare(900, decimal.Zero, decimal.Zero, 2))
	require.Equal(t, uint64(300), ProportionalShare(900, decimal.NewFromInt(-5), decimal.Zero, 3))
	require.Equal(t, uint64(0), ProportionalShare(900, decimal.Zero, decimal.Zero, 0))
}

func TestFoldPositiveReputationExcludesNonPositive(t *testing.T) {
	total := decimal.NewFromInt(50)

	require.True(t, FoldPositiveReputation(total, decimal.NewFromInt(-20)).Equal(total))
	require.True(t, FoldPositiveReputation(total, decimal.Zero).Equal(total))
	require.True(t, FoldPositiveReputation(total, decimal.NewFromInt(25)).Equal(decimal.NewFromInt(75)))
}

func TestMulBpsLargeAmounts(t *testing.T) {
	// amount*bps would overflow uint64 without big.Int intermediate math.
	const amount = uint64(10_000_000_000_000_000_000)
	require.Equal(t, uint64(1_000_000_000_000_000_000), mulBps(amount, 1000))
}
