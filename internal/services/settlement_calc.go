package services

import (
	"math/big"

	"arena-engine/internal/models"

	"github.com/shopspring/decimal"
)

// TotalBps is the full split: every weight set must sum to exactly this.
const TotalBps uint64 = 10000

// scoreScale matches the decimal(18,6) storage of reputation snapshots, so
// shifted scores are exact integers.
const scoreScale = 6

// PoolSplit is the three-way fixed-percentage division of a settled pool.
// The residual absorbs rounding dust, so the shares always sum to the pool.
type PoolSplit struct {
	WinnerShare   uint64
	TreasuryShare uint64
	ResidualShare uint64
}

// ValidateSplitWeights rejects any weight set that does not sum to exactly
// 100.00%.
func ValidateSplitWeights(winnerBps, treasuryBps, residualBps uint64) error {
	if winnerBps+treasuryBps+residualBps != TotalBps {
		return models.NewEngineError(models.ErrKindConfig, 0, "",
			"split weights must sum to 10000 basis points")
	}
	return nil
}

// SplitPool divides pool by basis-point weights using truncating integer
// division for the winner and treasury shares; the residual is the exact
// remainder.
func SplitPool(pool, winnerBps, treasuryBps, residualBps uint64) (PoolSplit, error) {
	if err := ValidateSplitWeights(winnerBps, treasuryBps, residualBps); err != nil {
		return PoolSplit{}, err
	}
	winner := mulBps(pool, winnerBps)
	treasury := mulBps(pool, treasuryBps)
	return PoolSplit{
		WinnerShare:   winner,
		TreasuryShare: treasury,
		ResidualShare: pool - winner - treasury,
	}, nil
}

// mulBps computes amount*bps/10000 without overflowing uint64.
func mulBps(amount, bps uint64) uint64 {
	product := new(big.Int).Mul(new(big.Int).SetUint64(amount), new(big.Int).SetUint64(bps))
	product.Div(product, new(big.Int).SetUint64(TotalBps))
	return product.Uint64()
}

// ProportionalShare computes one answering participant's share of the reward
// under the reputation-weighted fallback: reward * score / totalPositive,
// truncated. Participants with a non-positive snapshot receive zero. When no
// positive reputation was accumulated, the reward is split equally across
// the answering participants instead. Truncation keeps the sum of all issued
// shares at or below the reward; the remainder stays unclaimed in escrow.
func ProportionalShare(reward uint64, score, totalPositive decimal.Decimal, answeredCount int) uint64 {
	if totalPositive.Sign() <= 0 {
		if answeredCount <= 0 {
			return 0
		}
		return reward / uint64(answeredCount)
	}
	if score.Sign() <= 0 {
		return 0
	}

	num := new(big.Int).Mul(new(big.Int).SetUint64(reward), score.Shift(scoreScale).BigInt())
	den := totalPositive.Shift(scoreScale).BigInt()
	return new(big.Int).Div(num, den).Uint64()
}

// FoldPositiveReputation adds a join-time snapshot into the running
// denominator for proportional settlement. Negative scores are excluded
// outright; they must never shrink the denominator.
func FoldPositiveReputation(total, snapshot decimal.Decimal) decimal.Decimal {
	if snapshot.Sign() <= 0 {
		return total
	}
	return total.Add(snapshot)
}
