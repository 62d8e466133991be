package repository

import (
	"context"
	"errors"
	"time"

	"arena-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// DB exposes the underlying handle for transaction scoping.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// CreateContest creates a new contest
func (r *Repository) CreateContest(ctx context.Context, contest *models.Contest) error {
	return r.db.WithContext(ctx).Create(contest).Error
}

// GetContestByID retrieves a contest by its integer id
func (r *Repository) GetContestByID(ctx context.Context, contestID uint) (*models.Contest, error) {
	var contest models.Contest
	err := r.db.WithContext(ctx).Where("id = ?", contestID).First(&contest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewEngineError(models.ErrKindNotFound, contestID, "", "contest not found")
	}
	if err != nil {
		return nil, err
	}
	return &contest, nil
}

// UpdateContest updates a contest
func (r *Repository) UpdateContest(ctx context.Context, contest *models.Contest) error {
	contest.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(contest).Error
}

// ListContestsByPhase retrieves contests in a given phase
func (r *Repository) ListContestsByPhase(
	ctx context.Context,
	phase models.ContestPhase,
	limit, offset int,
) ([]*models.Contest, int64, error) {
	var contests []*models.Contest
	var total int64

	q := r.db.WithContext(ctx).Model(&models.Contest{}).Where("phase = ?", phase)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&contests).Error
	if err != nil {
		return nil, 0, err
	}
	return contests, total, nil
}

// ListUnresolvedContests retrieves contests that are neither settled nor
// terminal, for the deadline sweeper.
func (r *Repository) ListUnresolvedContests(ctx context.Context, limit int) ([]*models.Contest, error) {
	var contests []*models.Contest
	err := r.db.WithContext(ctx).
		Where("phase NOT IN ?", []models.ContestPhase{
			models.ContestPhaseSettled,
			models.ContestPhaseExpired,
			models.ContestPhaseRefunded,
		}).
		Order("created_at ASC").
		Limit(limit).
		Find(&contests).Error
	if err != nil {
		return nil, err
	}
	return contests, nil
}

// ListAccountContests retrieves all contests an account has entered
func (r *Repository) ListAccountContests(
	ctx context.Context,
	account string,
	limit, offset int,
) ([]*models.Contest, int64, error) {
	var contests []*models.Contest
	var total int64

	sub := r.db.WithContext(ctx).Model(&models.ContestEntry{}).
		Select("contest_id").
		Where("account = ?", account)

	q := r.db.WithContext(ctx).Model(&models.Contest{}).Where("id IN (?)", sub)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&contests).Error
	if err != nil {
		return nil, 0, err
	}
	return contests, total, nil
}

// CreateEntry records one account's membership in a contest
func (r *Repository) CreateEntry(ctx context.Context, entry *models.ContestEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// GetEntry retrieves the entry for (contest, account)
func (r *Repository) GetEntry(ctx context.Context, contestID uint, account string) (*models.ContestEntry, error) {
	var entry models.ContestEntry
	err := r.db.WithContext(ctx).
		Where("contest_id = ? AND account = ?", contestID, account).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewEngineError(models.ErrKindNotFound, contestID, account, "no entry for account")
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateEntry updates an entry
func (r *Repository) UpdateEntry(ctx context.Context, entry *models.ContestEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

// ListEntries retrieves all entries of a contest in join order
func (r *Repository) ListEntries(ctx context.Context, contestID uint) ([]*models.ContestEntry, error) {
	var entries []*models.ContestEntry
	err := r.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Order("join_order ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateAnswerSubmission records one answer attempt
func (r *Repository) CreateAnswerSubmission(ctx context.Context, sub *models.AnswerSubmission) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(sub).Error
}

// ListAnswerSubmissions retrieves all attempts for a contest
func (r *Repository) ListAnswerSubmissions(ctx context.Context, contestID uint) ([]*models.AnswerSubmission, error) {
	var subs []*models.AnswerSubmission
	err := r.db.WithContext(ctx).
		Where("contest_id = ?", contestID).
		Order("created_at ASC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// GetPendingBalance retrieves an account's withdrawable balance row; missing
// rows read as zero.
func (r *Repository) GetPendingBalance(ctx context.Context, account string) (*models.PendingBalance, error) {
	var balance models.PendingBalance
	err := r.db.WithContext(ctx).Where("account = ?", account).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.PendingBalance{Account: account, Amount: 0}, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// CreditPendingBalance adds amount to the account's withdrawable balance
func (r *Repository) CreditPendingBalance(ctx context.Context, account string, amount uint64) error {
	var balance models.PendingBalance
	err := r.db.WithContext(ctx).Where("account = ?", account).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(&models.PendingBalance{
			Account: account,
			Amount:  amount,
		}).Error
	}
	if err != nil {
		return err
	}
	balance.Amount += amount
	balance.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(&balance).Error
}

// ZeroPendingBalance zeroes the account's balance and returns the amount it
// held. Zeroing a zero balance returns 0.
func (r *Repository) ZeroPendingBalance(ctx context.Context, account string) (uint64, error) {
	var balance models.PendingBalance
	err := r.db.WithContext(ctx).Where("account = ?", account).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	amount := balance.Amount
	balance.Amount = 0
	balance.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(&balance).Error; err != nil {
		return 0, err
	}
	return amount, nil
}

// CreateValueTransaction appends to the value-movement audit trail
func (r *Repository) CreateValueTransaction(ctx context.Context, tx *models.ValueTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(tx).Error
}

// SumValueTransactions sums the audit trail for a contest by type
func (r *Repository) SumValueTransactions(
	ctx context.Context,
	contestID uint,
	txType models.ValueTransactionType,
) (uint64, error) {
	var total *uint64
	err := r.db.WithContext(ctx).Model(&models.ValueTransaction{}).
		Select("SUM(amount)").
		Where("contest_id = ? AND type = ?", contestID, txType).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

// CreateSettlementRecord writes the one-shot settlement result
func (r *Repository) CreateSettlementRecord(ctx context.Context, rec *models.SettlementRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// GetSettlementRecord retrieves the settlement result for a contest
func (r *Repository) GetSettlementRecord(ctx context.Context, contestID uint) (*models.SettlementRecord, error) {
	var rec models.SettlementRecord
	err := r.db.WithContext(ctx).Where("contest_id = ?", contestID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewEngineError(models.ErrKindNotFound, contestID, "", "contest not settled")
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// IsOperator reports whether the account is on the operator allow-list
func (r *Repository) IsOperator(ctx context.Context, account string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Operator{}).
		Where("account = ?", account).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddOperator adds an account to the operator allow-list
func (r *Repository) AddOperator(ctx context.Context, account, addedBy string) error {
	return r.db.WithContext(ctx).Create(&models.Operator{
		Account: account,
		AddedBy: addedBy,
	}).Error
}

// RemoveOperator removes an account from the operator allow-list
func (r *Repository) RemoveOperator(ctx context.Context, account string) error {
	return r.db.WithContext(ctx).
		Where("account = ?", account).
		Delete(&models.Operator{}).Error
}

// GetSettings retrieves the singleton settings row, creating it with defaults
// on first use.
func (r *Repository) GetSettings(ctx context.Context) (*models.EngineSettings, error) {
	var settings models.EngineSettings
	err := r.db.WithContext(ctx).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.EngineSettings{
			TreasuryAccount: "treasury",
			WinnerBps:       8500,
			TreasuryBps:     1000,
			ResidualBps:     500,
		}
		if err := r.db.WithContext(ctx).Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSettings updates the singleton settings row
func (r *Repository) UpdateSettings(ctx context.Context, settings *models.EngineSettings) error {
	settings.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(settings).Error
}

// IncrementParticipantStats rolls the per-account counters forward
func (r *Repository) IncrementParticipantStats(
	ctx context.Context,
	account string,
	joined, won int64,
	entryPaid, feesBurned, amountWon uint64,
) error {
	var stats models.ParticipantStats
	err := r.db.WithContext(ctx).Where("account = ?", account).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(&models.ParticipantStats{
			Account:         account,
			ContestsJoined:  joined,
			ContestsWon:     won,
			TotalEntryPaid:  entryPaid,
			TotalFeesBurned: feesBurned,
			TotalWon:        amountWon,
		}).Error
	}
	if err != nil {
		return err
	}
	stats.ContestsJoined += joined
	stats.ContestsWon += won
	stats.TotalEntryPaid += entryPaid
	stats.TotalFeesBurned += feesBurned
	stats.TotalWon += amountWon
	stats.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(&stats).Error
}

// GetParticipantStats retrieves the roll-up for an account
func (r *Repository) GetParticipantStats(ctx context.Context, account string) (*models.ParticipantStats, error) {
	var stats models.ParticipantStats
	err := r.db.WithContext(ctx).Where("account = ?", account).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.ParticipantStats{Account: account}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
