package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"arena-engine/internal/ledger"
	"arena-engine/internal/models"
	"arena-engine/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// lockTable hands out non-blocking per-key locks. An acquisition that finds
// the key already held fails immediately; this doubles as the re-entrancy
// guard, since no mutation may enter a contest that is mid-mutation.
type lockTable struct {
	mu   sync.Mutex
	held map[string]bool
}

func newLockTable() *lockTable {
	return &lockTable{held: make(map[string]bool)}
}

func (lt *lockTable) acquire(key string) bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if lt.held[key] {
		return false
	}
	lt.held[key] = true
	return true
}

func (lt *lockTable) release(key string) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	delete(lt.held, key)
}

// ContestService is the authoritative lifecycle controller for contests.
// Every mutating operation is phase-gated, holds the contest's lock for its
// full duration, and runs inside one database transaction.
type ContestService struct {
	repo          *repository.Repository
	valueLedger   ledger.ValueLedger
	identity      ledger.IdentityDirectory
	reputation    ledger.ReputationService
	escrowAccount string
	locks         *lockTable
	now           func() time.Time
}

func NewContestService(
	repo *repository.Repository,
	valueLedger ledger.ValueLedger,
	identity ledger.IdentityDirectory,
	reputation ledger.ReputationService,
	escrowAccount string,
) *ContestService {
	return &ContestService{
		repo:          repo,
		valueLedger:   valueLedger,
		identity:      identity,
		reputation:    reputation,
		escrowAccount: escrowAccount,
		locks:         newLockTable(),
		now:           time.Now,
	}
}

func contestLockKey(contestID uint) string {
	return fmt.Sprintf("contest:%d", contestID)
}

// withContestLock runs fn holding the contest's lock and a transaction.
func (cs *ContestService) withContestLock(
	ctx context.Context,
	contestID uint,
	fn func(repo *repository.Repository, vl ledger.ValueLedger) error,
) error {
	key := contestLockKey(contestID)
	if !cs.locks.acquire(key) {
		return models.NewEngineError(models.ErrKindReentrancy, contestID, "",
			"contest is already mid-mutation")
	}
	defer cs.locks.release(key)

	return cs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(cs.repo.WithTx(tx), cs.valueLedger.WithTx(tx))
	})
}

func (cs *ContestService) requireOperator(ctx context.Context, repo *repository.Repository, account string) error {
	ok, err := repo.IsOperator(ctx, account)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewEngineError(models.ErrKindCapability, 0, account, "operator role required")
	}
	return nil
}

func (cs *ContestService) requireUnpaused(ctx context.Context, repo *repository.Repository) error {
	settings, err := repo.GetSettings(ctx)
	if err != nil {
		return err
	}
	if settings.Paused {
		return models.NewEngineError(models.ErrKindPaused, 0, "", "engine is paused")
	}
	return nil
}

// CreateContest validates configuration and allocates a new contest. Quiz
// matches are operator-created and open immediately; bounties are created by
// their funding account and start in the screening phase with the reward
// already escrowed.
func (cs *ContestService) CreateContest(
	ctx context.Context,
	caller string,
	req *models.CreateContestRequest,
) (*models.Contest, error) {
	kind := models.ContestKind(req.Kind)
	policy := models.SettlementPolicy(req.SettlementPolicy)

	if err := validateContestConfig(kind, policy, req); err != nil {
		return nil, err
	}

	var minRep *decimal.Decimal
	if req.MinReputation != nil {
		d, err := decimal.NewFromString(*req.MinReputation)
		if err != nil {
			return nil, models.NewEngineError(models.ErrKindConfig, 0, "", "malformed min_reputation")
		}
		minRep = &d
	}

	now := cs.now()
	contest := &models.Contest{
		Kind:             kind,
		CreatorAccount:   caller,
		Title:            req.Title,
		Prompt:           req.Prompt,
		CommitmentHash:   req.CommitmentHash,
		EntryAmount:      req.EntryAmount,
		RewardAmount:     req.RewardAmount,
		BaseFee:          req.BaseFee,
		MinParticipants:  req.MinParticipants,
		MaxParticipants:  req.MaxParticipants,
		Difficulty:       req.Difficulty,
		MinReputation:    minRep,
		JoinDeadline:     now.Add(time.Duration(req.JoinWindowSecs) * time.Second),
		AnswerDuration:   time.Duration(req.AnswerWindowSecs) * time.Second,
		SettlementPolicy: policy,
		Phase:            models.ContestPhaseOpen,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if kind == models.ContestKindBounty {
		contest.Phase = models.ContestPhasePending
	}

	err := cs.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := cs.repo.WithTx(tx)
		vl := cs.valueLedger.WithTx(tx)

		if err := cs.requireUnpaused(ctx, repo); err != nil {
			return err
		}

		if kind == models.ContestKindQuizMatch {
			if err := cs.requireOperator(ctx, repo, caller); err != nil {
				return err
			}
		}

		if err := repo.CreateContest(ctx, contest); err != nil {
			return fmt.Errorf("failed to create contest: %w", err)
		}

		// Bounty rewards are escrowed up front by the creator.
		if kind == models.ContestKindBounty {
			if err := vl.Debit(ctx, caller, contest.RewardAmount); err != nil {
				return models.NewEngineError(models.ErrKindTransfer, contest.ID, caller,
					fmt.Sprintf("reward deposit failed: %v", err))
			}
			if err := vl.Credit(ctx, cs.escrowAccount, contest.RewardAmount); err != nil {
				return models.NewEngineError(models.ErrKindTransfer, contest.ID, caller,
					fmt.Sprintf("reward escrow failed: %v", err))
			}
			contest.PoolTotal = contest.RewardAmount
			if err := repo.UpdateContest(ctx, contest); err != nil {
				return err
			}
			if err := repo.CreateValueTransaction(ctx, &models.ValueTransaction{
				ContestID: contest.ID,
				Type:      models.ValueTransactionTypeRewardDeposit,
				Account:   caller,
				Amount:    contest.RewardAmount,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ContestService] Created %s contest %d by %s", kind, contest.ID, caller)
	return contest, nil
}

func validateContestConfig(kind models.ContestKind, policy models.SettlementPolicy, req *models.CreateContestRequest) error {
	cfgErr := func(msg string) error {
		return models.NewEngineError(models.ErrKindConfig, 0, "", msg)
	}

	switch kind {
	case models.ContestKindQuizMatch:
		if policy != models.SettlementPolicyFixedSplit {
			return cfgErr("quiz matches settle by fixed split")
		}
		if req.EntryAmount == 0 {
			return cfgErr("entry amount must be positive")
		}
		if req.MinParticipants < 1 {
			return cfgErr("minimum participant count must be positive")
		}
	case models.ContestKindBounty:
		if policy != models.SettlementPolicyCreatorPick {
			return cfgErr("bounties settle by creator pick")
		}
		if req.RewardAmount == 0 {
			return cfgErr("reward amount must be positive")
		}
		// Bounty payouts are claim-pulled from the creator's reward; an entry
		// deposit would sit in escrow with no path back out.
		if req.EntryAmount != 0 {
			return cfgErr("bounties take no entry deposits")
		}
		if req.CommitmentHash == "" {
			return cfgErr("bounty requires an answer commitment")
		}
	default:
		return cfgErr("unknown contest kind")
	}

	if req.BaseFee == 0 {
		return cfgErr("base fee must be positive")
	}
	if req.JoinWindowSecs <= 0 || req.AnswerWindowSecs <= 0 {
		return cfgErr("durations must be positive")
	}
	if req.Difficulty < 1 || req.Difficulty > 5 {
		return cfgErr("difficulty must be between 1 and 5")
	}
	if req.MaxParticipants < 1 || req.MinParticipants > req.MaxParticipants {
		return cfgErr("inconsistent capacity bounds")
	}
	return nil
}

// JoinContest admits an account into a contest that is accepting entries.
// The caller must control the claimed identity; its reputation is
// snapshotted unconditionally, even without a configured gate, because a
// later proportional settlement needs it.
func (cs *ContestService) JoinContest(
	ctx context.Context,
	contestID uint,
	caller string,
	identity string,
) (*models.ContestEntry, error) {
	var entry *models.ContestEntry

	err := cs.withContestLock(ctx, contestID, func(repo *repository.Repository, vl ledger.ValueLedger) error {
		if err := cs.requireUnpaused(ctx, repo); err != nil {
			return err
		}

		contest, err := repo.GetContestByID(ctx, contestID)
		if err != nil {
			return err
		}

		if contest.Phase != models.ContestPhaseOpen && contest.Phase != models.ContestPhaseQuestionPosted {
			return models.NewPhaseMismatchError(contestID, models.ContestPhaseOpen, contest.Phase, "join")
		}
		// Joining exactly at the deadline timestamp is still allowed.
		if cs.now().After(contest.JoinDeadline) {
			return models.NewEngineError(models.ErrKindDeadlinePassed, contestID, caller, "join deadline passed")
		}
		if contest.ParticipantCount >= contest.MaxParticipants {
			return models.NewEngineError(models.ErrKindCapacity, contestID, caller, "contest is full")
		}
		if caller == contest.CreatorAccount {
			return models.NewEngineError(models.ErrKindCapability, contestID, caller, "creator cannot join own contest")
		}

		controller, err := cs.identity.ControllerOf(ctx, identity)
		if err != nil {
			return models.NewEngineError(models.ErrKindNotFound, contestID, caller,
				fmt.Sprintf("identity lookup failed: %v", err))
		}
		if controller != caller {
			return models.NewEngineError(models.ErrKindCapability, contestID, caller,
				"caller does not control the claimed identity")
		}

		if _, err := repo.GetEntry(ctx, contestID, caller); err == nil {
			return models.NewEngineError(models.ErrKindState, contestID, caller, "duplicate join")
		} else if !models.IsKind(err, models.ErrKindNotFound) {
			return err
		}

		snapshot, err := cs.reputation.AggregateScore(ctx, identity, ledger.ScoreFilter{})
		if err != nil {
			return fmt.Errorf("reputation query failed: %w", err)
		}
		if contest.MinReputation != nil && snapshot.LessThan(*contest.MinReputation) {
			return models.NewEngineError(models.ErrKindState, contestID, caller, "reputation below contest minimum")
		}

		if contest.EntryAmount > 0 {
			if err := vl.Debit(ctx, caller, contest.EntryAmount); err != nil {
				return models.NewEngineError(models.ErrKindTransfer, contestID, caller,
					fmt.Sprintf("entry deposit failed: %v", err))
			}
			if err := vl.Credit(ctx, cs.escrowAccount, contest.EntryAmount); err != nil {
				return models.NewEngineError(models.ErrKindTransfer, contestID, caller,
					fmt.Sprintf("entry escrow failed: %v", err))
			}
			if err := repo.CreateValueTransaction(ctx, &models.ValueTransaction{
				ContestID: contestID,
				Type:      models.ValueTransactionTypeEntryDeposit,
				Account:   caller,
				Amount:    contest.EntryAmount,
			}); err != nil {
				return err
			}
		}

		entry = &models.ContestEntry{
			ContestID:  contestID,
			Account:    caller,
			JoinOrder:  contest.ParticipantCount,
			Reputation: snapshot,
			JoinedAt:   cs.now(),
		}
		if err := repo.CreateEntry(ctx, entry); err != nil {
			return fmt.Errorf("failed to record entry: %w", err)
		}

		contest.ParticipantCount++
		contest.PoolTotal += contest.EntryAmount
		if err := repo.UpdateContest(ctx, contest); err != nil {
			return err
		}

		return repo.IncrementParticipantStats(ctx, caller, 1, 0, contest.EntryAmount, 0, 0)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ContestService] %s joined contest %d", caller, contestID)
	return entry, nil
}

// PostQuestion stores the answer commitment for a quiz match.
func (cs *ContestService) PostQuestion(
	ctx context.Context,
	contestID uint,
	caller string,
	commitmentHash string,
) error {
	if commitmentHash == "" {
		return models.NewEngineError(models.ErrKindConfig, contestID, caller, "commitment hash is required")
	}

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
		if contest.Phase != models.ContestPhaseOpen {
			return models.NewPhaseMismatchError(contestID, models.ContestPhaseOpen, contest.Phase, "post question")
		}

		contest.CommitmentHash = commitmentHash
		contest.Phase = models.ContestPhaseQuestionPosted
		return repo.UpdateContest(ctx, contest)
	})
}

// OpenAnswering starts the answer period and fixes its deadline.
func (cs *ContestService) OpenAnswering(ctx context.Context, contestID uint, caller string) error {
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
		if contest.Phase != models.ContestPhaseQuestionPosted {
			return models.NewPhaseMismatchError(contestID, models.ContestPhaseQuestionPosted, contest.Phase, "open answering")
		}

		switch contest.Kind {
		case models.ContestKindQuizMatch:
			if contest.ParticipantCount < contest.MinParticipants {
				return models.NewEngineError(models.ErrKindState, contestID, caller,
					"minimum participant count not reached")
			}
		case models.ContestKindBounty:
			if contest.CommitmentHash == "" {
				return models.NewEngineError(models.ErrKindState, contestID, caller,
					"no answer commitment posted")
			}
		}

		deadline := cs.now().Add(contest.AnswerDuration)
		contest.AnswerDeadline = &deadline
		contest.Phase = models.ContestPhaseActive
		if err := repo.UpdateContest(ctx, contest); err != nil {
			return err
		}

		log.Printf("[ContestService] Contest %d answering open until %s", contestID, deadline.Format(time.RFC3339))
		return nil
	})
}

// SubmitAnswer records one attempt. The escalating fee is burned from the
// caller; it leaves circulation and never enters the pool.
func (cs *ContestService) SubmitAnswer(
	ctx context.Context,
	contestID uint,
	caller string,
	payload string,
) (*models.AnswerSubmission, error) {
	var submission *models.AnswerSubmission

	err := cs.withContestLock(ctx, contestID, func(repo *repository.Repository, vl ledger.ValueLedger) error {
		if err := cs.requireUnpaused(ctx, repo); err != nil {
			return err
		}

		contest, err := repo.GetContestByID(ctx, contestID)
		if err != nil {
			return err
		}
		if contest.Phase != models.ContestPhaseActive {
			return models.NewPhaseMismatchError(contestID, models.ContestPhaseActive, contest.Phase, "submit answer")
		}
		if contest.AnswerDeadline == nil || cs.now().After(*contest.AnswerDeadline) {
			return models.NewEngineError(models.ErrKindDeadlinePassed, contestID, caller, "answer deadline passed")
		}

		if err := ValidateAnswerPayload(payload); err != nil {
			ee := err.(*models.EngineError)
			ee.ContestID = contestID
			ee.Account = caller
			return ee
		}

		entry, err := repo.GetEntry(ctx, contestID, caller)
		if err != nil {
			return err
		}

		fee, err := EscalatedFee(contest.BaseFee, entry.Attempts)
		if err != nil {
			ee := err.(*models.EngineError)
			ee.ContestID = contestID
			ee.Account = caller
			return ee
		}

		if err := vl.Burn(ctx, caller, fee); err != nil {
			return models.NewEngineError(models.ErrKindTransfer, contestID, caller,
				fmt.Sprintf("fee burn failed: %v", err))
		}
		if err := repo.CreateValueTransaction(ctx, &models.ValueTransaction{
			ContestID: contestID,
			Type:      models.ValueTransactionTypeFeeBurn,
			Account:   caller,
			Amount:    fee,
		}); err != nil {
			return err
		}

		submission = &models.AnswerSubmission{
			ContestID: contestID,
			Account:   caller,
			Attempt:   entry.Attempts,
			Payload:   payload,
			FeePaid:   fee,
			CreatedAt: cs.now(),
		}
		if err := repo.CreateAnswerSubmission(ctx, submission); err != nil {
			return err
		}

		entry.Attempts++
		first := !entry.HasAnswered
		entry.HasAnswered = true
		if err := repo.UpdateEntry(ctx, entry); err != nil {
			return err
		}

		if first {
			contest.AnsweredCount++
			contest.TotalPositiveReputation = FoldPositiveReputation(contest.TotalPositiveReputation, entry.Reputation)
			if err := repo.UpdateContest(ctx, contest); err != nil {
				return err
			}
		}

		return repo.IncrementParticipantStats(ctx, caller, 0, 0, 0, fee, 0)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ContestService] %s answered contest %d (attempt %d, fee %d)",
		caller, contestID, submission.Attempt, submission.FeePaid)
	return submission, nil
}

// GetContest retrieves a contest by id
func (cs *ContestService) GetContest(ctx context.Context, contestID uint) (*models.Contest, error) {
	return cs.repo.GetContestByID(ctx, contestID)
}

// GetEntries retrieves a contest's entries in join order
func (cs *ContestService) GetEntries(ctx context.Context, contestID uint) ([]*models.ContestEntry, error) {
	return cs.repo.ListEntries(ctx, contestID)
}

// ListByPhase retrieves contests in a phase with pagination
func (cs *ContestService) ListByPhase(
	ctx context.Context,
	phase models.ContestPhase,
	limit, offset int,
) ([]*models.Contest, int64, error) {
	return cs.repo.ListContestsByPhase(ctx, phase, limit, offset)
}

// ListAccountContests retrieves an account's contest history
func (cs *ContestService) ListAccountContests(
	ctx context.Context,
	account string,
	limit, offset int,
) ([]*models.Contest, int64, error) {
	return cs.repo.ListAccountContests(ctx, account, limit, offset)
}

// GetSettlement retrieves the settlement record for a resolved contest
func (cs *ContestService) GetSettlement(ctx context.Context, contestID uint) (*models.SettlementRecord, error) {
	return cs.repo.GetSettlementRecord(ctx, contestID)
}

// GetParticipantStats retrieves the per-account roll-up
func (cs *ContestService) GetParticipantStats(ctx context.Context, account string) (*models.ParticipantStats, error) {
	return cs.repo.GetParticipantStats(ctx, account)
}

// SetClock overrides the time source. Tests use this to drive deadlines.
func (cs *ContestService) SetClock(now func() time.Time) {
	cs.now = now
}
