package services

import (
	"context"
	"log"

	"arena-engine/internal/ledger"
	"arena-engine/internal/models"
	"arena-engine/internal/repository"
)

// ClaimWinnerReward credits the full bounty reward to the picked winner's
// pending balance. Single-use: the entry's claimed flag makes a second call
// a double-claim error, never a double payment.
func (cs *ContestService) ClaimWinnerReward(ctx context.Context, contestID uint, caller string) (uint64, error) {
	var amount uint64

	err := cs.withContestLock(ctx, contestID, func(repo *repository.Repository, vl ledger.ValueLedger) error {
		contest, err := repo.GetContestByID(ctx, contestID)
		if err != nil {
			return err
		}
		if contest.SettlementPolicy != models.SettlementPolicyCreatorPick {
			return models.NewEngineError(models.ErrKindState, contestID, caller,
				"contest has no claimable winner reward")
		}
		if contest.Phase != models.ContestPhaseSettled {
			return models.NewPhaseMismatchError(contestID, models.ContestPhaseSettled, contest.Phase, "claim winner reward")
		}
		if contest.WinnerAccount == nil || *contest.WinnerAccount != caller {
			return models.NewEngineError(models.ErrKindCapability, contestID, caller,
				"caller is not the contest winner")
		}

		entry, err := repo.GetEntry(ctx, contestID, caller)
		if err != nil {
			return err
		}
		if entry.Claimed {
			return models.NewEngineError(models.ErrKindState, contestID, caller, "reward already claimed")
		}

		amount = contest.RewardAmount
		if err := repo.CreditPendingBalance(ctx, caller, amount); err != nil {
			return err
		}
		if err := repo.CreateValueTransaction(ctx, &models.ValueTransaction{
			ContestID: contestID,
			Type:      models.ValueTransactionTypePayout,
			Account:   caller,
			Amount:    amount,
		}); err != nil {
			return err
		}

		entry.Claimed = true
		if err := repo.UpdateEntry(ctx, entry); err != nil {
			return err
		}

		contest.DistributedTotal += amount
		if err := repo.UpdateContest(ctx, contest); err != nil {
			return err
		}

		return repo.IncrementParticipantStats(ctx, caller, 0, 1, 0, 0, amount)
	})
	if err != nil {
		return 0, err
	}

	log.Printf("[ContestService] Winner %s claimed %d from contest %d", caller, amount, contestID)
	return amount, nil
}

// ClaimShare credits an answering participant's reputation-weighted share of
// an unpicked bounty after its deadline. Claiming exactly at the deadline
// fails; one tick after succeeds. A non-positive snapshot yields a zero
// share, which is still a one-shot claim.
func (cs *ContestService) ClaimShare(ctx context.Context, contestID uint, caller string) (uint64, error) {
	var amount uint64

	err := cs.withContestLock(ctx, contestID, func(repo *repository.Repository, vl ledger.ValueLedger) error {
		contest, err := repo.GetContestByID(ctx, contestID)
		if err != nil {
			return err
		}
		if contest.SettlementPolicy != models.SettlementPolicyCreatorPick {
			return models.NewEngineError(models.ErrKindState, contestID, caller,
				"contest has no proportional-share fallback")
		}
		if contest.Phase != models.ContestPhaseActive {
			return models.NewPhaseMismatchError(contestID, models.ContestPhaseActive, contest.Phase, "claim share")
		}
		if contest.WinnerAccount != nil {
			return models.NewEngineError(models.ErrKindState, contestID, caller,
				"winner was picked; shares are not claimable")
		}
		if contest.AnswerDeadline == nil || !cs.now().After(*contest.AnswerDeadline) {
			return models.NewEngineError(models.ErrKindDeadlineNotReached, contestID, caller,
				"answer deadline not yet passed")
		}

		entry, err := repo.GetEntry(ctx, contestID, caller)
		if err != nil {
			return err
		}
		if !entry.HasAnswered {
			return models.NewEngineError(models.ErrKindState, contestID, caller, "account did not answer")
		}
		if entry.Claimed {
			return models.NewEngineError(models.ErrKindState, contestID, caller, "share already claimed")
		}

		amount = ProportionalShare(contest.RewardAmount, entry.Reputation,
			contest.TotalPositiveReputation, contest.AnsweredCount)

		if amount > 0 {
			if err := repo.CreditPendingBalance(ctx, caller, amount); err != nil {
				return err
			}
			if err := repo.CreateValueTransaction(ctx, &models.ValueTransaction{
				ContestID: contestID,
				Type:      models.ValueTransactionTypePayout,
				Account:   caller,
				Amount:    amount,
			}); err != nil {
				return err
			}
			contest.DistributedTotal += amount
		}

		entry.Claimed = true
		if err := repo.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		return repo.UpdateContest(ctx, contest)
	})
	if err != nil {
		return 0, err
	}

	log.Printf("[ContestService] %s claimed share %d from contest %d", caller, amount, contestID)
	return amount, nil
}

// ClaimCreatorRefund lets the creator reclaim the full reward of a bounty
// nobody answered. The path is mutually exclusive with the share fallback:
// a single answering participant makes it an error.
func (cs *ContestService) ClaimCreatorRefund(ctx context.Context, contestID uint, caller string) (uint64, error) {
	var amount uint64

	err := cs.withContestLock(ctx, contestID, func(repo *repository.Repository, vl ledger.ValueLedger) error {
		contest, err := repo.GetContestByID(ctx, contestID)
		if err != nil {
			return err
		}
		if contest.SettlementPolicy != models.SettlementPolicyCreatorPick {
			return models.NewEngineError(models.ErrKindState, contestID, caller,
				"contest has no creator-refund path")
		}
		if caller != contest.CreatorAccount {
			return models.NewEngineError(models.ErrKindCapability, contestID, caller,
				"only the contest creator may reclaim the reward")
		}
		if contest.Phase != models.ContestPhaseActive {
			return models.NewPhaseMismatchError(contestID, models.ContestPhaseActive, contest.Phase, "claim creator refund")
		}
		if contest.AnswerDeadline == nil || !cs.now().After(*contest.AnswerDeadline) {
			return models.NewEngineError(models.ErrKindDeadlineNotReached, contestID, caller,
				"answer deadline not yet passed")
		}
		if contest.AnsweredCount > 0 {
			return models.NewEngineError(models.ErrKindState, contestID, caller,
				"participants answered; refund path is closed")
		}

		amount = contest.RewardAmount
		if err := repo.CreditPendingBalance(ctx, caller, amount); err != nil {
			return err
		}
		if err := repo.CreateValueTransaction(ctx, &models.ValueTransaction{
			ContestID: contestID,
			Type:      models.ValueTransactionTypeRefundCredit,
			Account:   caller,
			Amount:    amount,
		}); err != nil {
			return err
		}

		now := cs.now()
		contest.Phase = models.ContestPhaseRefunded
		contest.DistributedTotal += amount
		contest.RefundedAt = &now
		return repo.UpdateContest(ctx, contest)
	})
	if err != nil {
		return 0, err
	}

	log.Printf("[ContestService] Creator %s reclaimed %d from contest %d", caller, amount, contestID)
	return amount, nil
}
