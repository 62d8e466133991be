package services

import (
	"context"
	"fmt"
	"log"

	"arena-engine/internal/ledger"
	"arena-engine/internal/models"
	"arena-engine/internal/repository"
)

// Settle resolves a fixed-split quiz match: the operator designates a winner
// who has answered, and the pool is pushed out immediately in three exact
// shares. Any transfer failure aborts the whole settlement; a half-paid
// contest is never left behind.
func (cs *ContestService) Settle(
	ctx context.Context,
	contestID uint,
	caller string,
	winnerAccount string,
) (*models.SettlementRecord, error) {
	var record *models.SettlementRecord

	err := cs.withContestLock(ctx, contestID, func(repo *repository.Repository, vl ledger.ValueLedger) error {
		if err := cs.requireOperator(ctx, repo, caller); err != nil {
			return err
		}

		contest, err := repo.GetContestByID(ctx, contestID)
		if err != nil {
			return err
		}
		if contest.SettlementPolicy != models.SettlementPolicyFixedSplit {
			return models.NewEngineError(models.ErrKindState, contestID, caller,
				"contest does not settle by fixed split")
		}
		if contest.Phase != models.ContestPhaseActive {
			return models.NewPhaseMismatchError(contestID, models.ContestPhaseActive, contest.Phase, "settle")
		}

		winner, err := repo.GetEntry(ctx, contestID, winnerAccount)
		if err != nil {
			return err
		}
		if !winner.HasAnswered {
			return models.NewEngineError(models.ErrKindState, contestID, winnerAccount, "winner did not answer")
		}

		settings, err := repo.GetSettings(ctx)
		if err != nil {
			return err
		}
		split, err := SplitPool(contest.PoolTotal, settings.WinnerBps, settings.TreasuryBps, settings.ResidualBps)
		if err != nil {
			return err
		}

		// Immediate push: winner and treasury are paid now, the residual is
		// burned out of circulation.
		if err := cs.pushFromEscrow(ctx, repo, vl, contestID, winnerAccount, split.WinnerShare); err != nil {
			return err
		}
		if err := cs.pushFromEscrow(ctx, repo, vl, contestID, settings.TreasuryAccount, split.TreasuryShare); err != nil {
			return err
		}
		if split.ResidualShare > 0 {
			if err := vl.Burn(ctx, cs.escrowAccount, split.ResidualShare); err != nil {
				return models.NewEngineError(models.ErrKindTransfer, contestID, "",
					fmt.Sprintf("residual burn failed: %v", err))
			}
			if err := repo.CreateValueTransaction(ctx, &models.ValueTransaction{
				ContestID: contestID,
				Type:      models.ValueTransactionTypeResidualBurn,
				Account:   cs.escrowAccount,
				Amount:    split.ResidualShare,
			}); err != nil {
				return err
			}
		}

		winner.Claimed = true
		if err := repo.UpdateEntry(ctx, winner); err != nil {
			return err
		}

		now := cs.now()
		contest.Phase = models.ContestPhaseSettled
		contest.WinnerAccount = &winnerAccount
		contest.DistributedTotal = contest.PoolTotal
		contest.SettledAt = &now
		if err := repo.UpdateContest(ctx, contest); err != nil {
			return err
		}

		record = &models.SettlementRecord{
			ContestID:     contestID,
			Policy:        models.SettlementPolicyFixedSplit,
			WinnerAccount: &winnerAccount,
			WinnerShare:   split.WinnerShare,
			TreasuryShare: split.TreasuryShare,
			ResidualShare: split.ResidualShare,
		}
		if err := repo.CreateSettlementRecord(ctx, record); err != nil {
			return err
		}

		return repo.IncrementParticipantStats(ctx, winnerAccount, 0, 1, 0, 0, split.WinnerShare)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ContestService] Contest %d settled: winner %s takes %d, treasury %d, residual %d",
		contestID, winnerAccount, record.WinnerShare, record.TreasuryShare, record.ResidualShare)
	return record, nil
}

// pushFromEscrow moves amount from the escrow account to a recipient and
// records the movement.
func (cs *ContestService) pushFromEscrow(
	ctx context.Context,
	repo *repository.Repository,
	vl ledger.ValueLedger,
	contestID uint,
	recipient string,
	amount uint64,
) error {
	if amount == 0 {
		return nil
	}
	if err := vl.Debit(ctx, cs.escrowAccount, amount); err != nil {
		return models.NewEngineError(models.ErrKindTransfer, contestID, recipient,
			fmt.Sprintf("escrow debit failed: %v", err))
	}
	if err := vl.Credit(ctx, recipient, amount); err != nil {
		return models.NewEngineError(models.ErrKindTransfer, contestID, recipient,
			fmt.Sprintf("payout credit failed: %v", err))
	}
	return repo.CreateValueTransaction(ctx, &models.ValueTransaction{
		ContestID: contestID,
		Type:      models.ValueTransactionTypePayout,
		Account:   recipient,
		Amount:    amount,
	})
}

// PickWinner lets a bounty's creator select the winner from among accounts
// that answered, before the answer deadline. The reward itself is claimed
// later by the winner's own pull.
func (cs *ContestService) PickWinner(
	ctx context.Context,
	contestID uint,
	caller string,
	winnerAccount string,
) error {
	return cs.withContestLock(ctx, contestID, func(repo *repository.Repository, vl ledger.ValueLedger) error {
		contest, err := repo.GetContestByID(ctx, contestID)
		if err != nil {
			return err
		}
		if contest.SettlementPolicy != models.SettlementPolicyCreatorPick {
			return models.NewEngineError(models.ErrKindState, contestID, caller,
				"contest winner is not creator-picked")
		}
		if caller != contest.CreatorAccount {
			return models.NewEngineError(models.ErrKindCapability, contestID, caller,
				"only the contest creator may pick the winner")
		}
		if contest.Phase != models.ContestPhaseActive {
			return models.NewPhaseMismatchError(contestID, models.ContestPhaseActive, contest.Phase, "pick winner")
		}
		if contest.AnswerDeadline == nil || cs.now().After(*contest.AnswerDeadline) {
			return models.NewEngineError(models.ErrKindDeadlinePassed, contestID, caller,
				"answer deadline passed; fallback claims apply")
		}

		winner, err := repo.GetEntry(ctx, contestID, winnerAccount)
		if err != nil {
			return err
		}
		if !winner.HasAnswered {
			return models.NewEngineError(models.ErrKindState, contestID, winnerAccount, "winner did not answer")
		}

		now := cs.now()
		contest.Phase = models.ContestPhaseSettled
		contest.WinnerAccount = &winnerAccount
		contest.SettledAt = &now
		if err := repo.UpdateContest(ctx, contest); err != nil {
			return err
		}

		record := &models.SettlementRecord{
			ContestID:     contestID,
			Policy:        models.SettlementPolicyCreatorPick,
			WinnerAccount: &winnerAccount,
			WinnerShare:   contest.RewardAmount,
		}
		if err := repo.CreateSettlementRecord(ctx, record); err != nil {
			return err
		}

		log.Printf("[ContestService] Contest %d winner picked: %s", contestID, winnerAccount)
		return nil
	})
}

// Approve moves a screened bounty from the pending phase into its join
// window.
func (cs *ContestService) Approve(ctx context.Context, contestID uint, caller string) error {
	return cs.withContestLock(ctx, contestID, func(repo *repository.Repository, vl ledger.ValueLedger) error {
		if err := cs.requireUnpaused(ctx, repo); err != nil {
			return err
		}
		if err := cs.requireOperator(ctx, repo, caller); err != nil {
			return err
		}

		contest, err := repo.GetContestByID(ctx, contestID)
		if err != nil {
			return err
		}
		if contest.Phase != models.ContestPhasePending {
			return models.NewPhaseMismatchError(contestID, models.ContestPhasePending, contest.Phase, "approve")
		}

		contest.Phase = models.ContestPhaseOpen
		if err := repo.UpdateContest(ctx, contest); err != nil {
			return err
		}

		log.Printf("[ContestService] Contest %d approved", contestID)
		return nil
	})
}

// Reject closes a screened bounty before it opens. The escrowed reward is
// pending-credited back to the creator, who pulls it like any other balance.
func (cs *ContestService) Reject(ctx context.Context, contestID uint, caller string) error {
	return cs.withContestLock(ctx, contestID, func(repo *repository.Repository, vl ledger.ValueLedger) error {
		if err := cs.requireOperator(ctx, repo, caller); err != nil {
			return err
		}

		contest, err := repo.GetContestByID(ctx, contestID)
		if err != nil {
			return err
		}
		if contest.Phase != models.ContestPhasePending {
			return models.NewPhaseMismatchError(contestID, models.ContestPhasePending, contest.Phase, "reject")
		}

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

		now := cs.now()
		contest.Phase = models.ContestPhaseSettled
		contest.DistributedTotal = contest.RewardAmount
		contest.SettledAt = &now
		if err := repo.UpdateContest(ctx, contest); err != nil {
			return err
		}

		record := &models.SettlementRecord{
			ContestID: contestID,
			Policy:    models.SettlementPolicyCreatorPick,
		}
		if err := repo.CreateSettlementRecord(ctx, record); err != nil {
			return err
		}

		log.Printf("[ContestService] Contest %d rejected, reward returned to %s", contestID, contest.CreatorAccount)
		return nil
	})
}
