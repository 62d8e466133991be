package services

import (
	"context"
	"fmt"
	"log"

	"arena-engine/internal/ledger"
	"arena-engine/internal/models"
	"arena-engine/internal/repository"
)

// Expire terminates a contest whose join deadline passed with nobody joined.
// A bounty's escrowed reward goes back to the creator's pending balance.
func (cs *ContestService) Expire(ctx context.Context, contestID uint, caller string) error {
	return cs.withContestLock(ctx, contestID, func(repo *repository.Repository, vl ledger.ValueLedger) error {
		if err := cs.requireOperator(ctx, repo, caller); err != nil {
			return err
		}

		contest, err := repo.GetContestByID(ctx, contestID)
		if err != nil {
			return err
		}
		switch contest.Phase {
		case models.ContestPhaseOpen, models.ContestPhaseQuestionPosted:
		default:
			return models.NewPhaseMismatchError(contestID, models.ContestPhaseOpen, contest.Phase, "expire")
		}
		if !cs.now().After(contest.JoinDeadline) {
			return models.NewEngineError(models.ErrKindDeadlineNotReached, contestID, caller,
				"join deadline not yet passed")
		}
		if contest.ParticipantCount > 0 {
			return models.NewEngineError(models.ErrKindState, contestID, caller,
				"contest has participants; expiry requires none")
		}

		if contest.Kind == models.ContestKindBounty && contest.RewardAmount > 0 {
			if err := repo.CreditPendingBalance(ctx, contest.CreatorAccount, contest.RewardAmount); err != nil {
				return err
			}
			if err := repo.CreateValueTransaction(ctx, &models.ValueTransaction{
				ContestID: contestID,
				Type:      models.ValueTransactionTypeRefundCredit,
				Account:   contest.CreatorAccount,
				Amount:    contest.RewardAmount,
			}); err != nil {
				return err
			}
			contest.DistributedTotal = contest.RewardAmount
		}

		contest.Phase = models.ContestPhaseExpired
		if err := repo.UpdateContest(ctx, contest); err != nil {
			return err
		}

		log.Printf("[ContestService] Contest %d expired with no participants", contestID)
		return nil
	})
}

// RefundTimeout resolves a quiz match that can no longer settle: either the
// answer deadline passed without a settlement, or the join window closed
// below the participant minimum so answering can never open. The timed-out
// case pays the treasury its configured cut immediately; the under-filled
// case refunds in full. Either way the remainder is pending-credited equally
// to the joiners, each of whom pulls their own balance afterwards. One
// uncooperative recipient can therefore never stall the batch.
func (cs *ContestService) RefundTimeout(ctx context.Context, contestID uint, caller string) error {
	return cs.withContestLock(ctx, contestID, func(repo *repository.Repository, vl ledger.ValueLedger) error {
		if err := cs.requireOperator(ctx, repo, caller); err != nil {
			return err
		}

		contest, err := repo.GetContestByID(ctx, contestID)
		if err != nil {
			return err
		}
		if contest.SettlementPolicy != models.SettlementPolicyFixedSplit {
			return models.NewEngineError(models.ErrKindState, contestID, caller,
				"contest refunds through claims, not batch refund")
		}

		switch contest.Phase {
		case models.ContestPhaseOpen, models.ContestPhaseQuestionPosted:
			if !cs.now().After(contest.JoinDeadline) {
				return models.NewEngineError(models.ErrKindDeadlineNotReached, contestID, caller,
					"join deadline not yet passed")
			}
			if contest.ParticipantCount >= contest.MinParticipants {
				return models.NewEngineError(models.ErrKindState, contestID, caller,
					"minimum participant count reached; open answering instead")
			}
		case models.ContestPhaseActive:
			if contest.AnswerDeadline == nil || !cs.now().After(*contest.AnswerDeadline) {
				return models.NewEngineError(models.ErrKindDeadlineNotReached, contestID, caller,
					"answer deadline not yet passed")
			}
		default:
			return models.NewPhaseMismatchError(contestID, models.ContestPhaseActive, contest.Phase, "refund")
		}

		settings, err := repo.GetSettings(ctx)
		if err != nil {
			return err
		}

		entries, err := repo.ListEntries(ctx, contestID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return models.NewEngineError(models.ErrKindState, contestID, caller,
				"no entries to refund; use expire")
		}

		// The cut compensates for a contest that ran and timed out; an
		// under-filled contest never started, so its entries come back whole.
		var treasuryCut uint64
		if contest.Phase == models.ContestPhaseActive {
			treasuryCut = mulBps(contest.PoolTotal, settings.TreasuryBps)
		}
		remainder := contest.PoolTotal - treasuryCut
		perEntry := remainder / uint64(len(entries))

		if treasuryCut > 0 {
			if err := vl.Debit(ctx, cs.escrowAccount, treasuryCut); err != nil {
				return models.NewEngineError(models.ErrKindTransfer, contestID, settings.TreasuryAccount,
					fmt.Sprintf("treasury cut failed: %v", err))
			}
			if err := vl.Credit(ctx, settings.TreasuryAccount, treasuryCut); err != nil {
				return models.NewEngineError(models.ErrKindTransfer, contestID, settings.TreasuryAccount,
					fmt.Sprintf("treasury credit failed: %v", err))
			}
			if err := repo.CreateValueTransaction(ctx, &models.ValueTransaction{
				ContestID: contestID,
				Type:      models.ValueTransactionTypePayout,
				Account:   settings.TreasuryAccount,
				Amount:    treasuryCut,
			}); err != nil {
				return err
			}
		}

		for _, entry := range entries {
			if perEntry > 0 {
				if err := repo.CreditPendingBalance(ctx, entry.Account, perEntry); err != nil {
					return err
				}
				if err := repo.CreateValueTransaction(ctx, &models.ValueTransaction{
					ContestID: contestID,
					Type:      models.ValueTransactionTypeRefundCredit,
					Account:   entry.Account,
					Amount:    perEntry,
				}); err != nil {
					return err
				}
			}
			entry.Claimed = true
			if err := repo.UpdateEntry(ctx, entry); err != nil {
				return err
			}
		}

		now := cs.now()
		contest.Phase = models.ContestPhaseRefunded
		contest.DistributedTotal = treasuryCut + perEntry*uint64(len(entries))
		contest.RefundedAt = &now
		if err := repo.UpdateContest(ctx, contest); err != nil {
			return err
		}

		log.Printf("[ContestService] Contest %d refunded: treasury %d, %d joiners get %d each",
			contestID, treasuryCut, len(entries), perEntry)
		return nil
	})
}
