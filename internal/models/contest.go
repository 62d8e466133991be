package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ContestPhase string

const (
	ContestPhasePending        ContestPhase = "PENDING"
	ContestPhaseOpen           ContestPhase = "OPEN"
	ContestPhaseQuestionPosted ContestPhase = "QUESTION_POSTED"
	ContestPhaseActive         ContestPhase = "ACTIVE"
	ContestPhaseSettled        ContestPhase = "SETTLED"
	ContestPhaseExpired        ContestPhase = "EXPIRED"
	ContestPhaseRefunded       ContestPhase = "REFUNDED"
)

type ContestKind string

const (
	ContestKindQuizMatch ContestKind = "QUIZ_MATCH"
	ContestKindBounty    ContestKind = "BOUNTY"
)

type SettlementPolicy string

const (
	SettlementPolicyFixedSplit  SettlementPolicy = "FIXED_SPLIT"
	SettlementPolicyCreatorPick SettlementPolicy = "CREATOR_PICK"
)

// Contest represents one timed multi-party contest. Configuration fields are
// written once at creation; state fields are mutated only through phase-gated
// transitions in the contest service.
type Contest struct {
	ID   uint        `gorm:"primaryKey" json:"id"` // 0 is reserved as "none"
	Kind ContestKind `gorm:"size:20;not null;index" json:"kind"`

	// Immutable configuration
	CreatorAccount   string           `gorm:"size:64;not null;index" json:"creator_account"`
	Title            string           `gorm:"size:255;not null" json:"title"`
	Prompt           string           `gorm:"type:text" json:"prompt"`
	CommitmentHash   string           `gorm:"size:128" json:"commitment_hash"`
	EntryAmount      uint64           `gorm:"not null" json:"entry_amount"`
	RewardAmount     uint64           `gorm:"not null" json:"reward_amount"`
	BaseFee          uint64           `gorm:"not null" json:"base_fee"`
	MinParticipants  int              `gorm:"not null" json:"min_participants"`
	MaxParticipants  int              `gorm:"not null" json:"max_participants"`
	Difficulty       int16            `gorm:"not null" json:"difficulty"` // 1..5
	MinReputation    *decimal.Decimal `gorm:"type:decimal(18,6)" json:"min_reputation"`
	JoinDeadline     time.Time        `gorm:"not null" json:"join_deadline"`
	AnswerDuration   time.Duration    `gorm:"not null" json:"answer_duration"`
	SettlementPolicy SettlementPolicy `gorm:"size:20;not null" json:"settlement_policy"`

	// Mutable state
	Phase                   ContestPhase    `gorm:"size:30;not null;default:OPEN;index" json:"phase"`
	AnswerDeadline          *time.Time      `json:"answer_deadline"`
	PoolTotal               uint64          `gorm:"not null;default:0" json:"pool_total"`
	DistributedTotal        uint64          `gorm:"not null;default:0" json:"distributed_total"`
	WinnerAccount           *string         `gorm:"size:64" json:"winner_account"`
	ParticipantCount        int             `gorm:"not null;default:0" json:"participant_count"`
	AnsweredCount           int             `gorm:"not null;default:0" json:"answered_count"`
	TotalPositiveReputation decimal.Decimal `gorm:"type:decimal(18,6);default:0" json:"total_positive_reputation"`

	CreatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	SettledAt  *time.Time `json:"settled_at"`
	RefundedAt *time.Time `json:"refunded_at"`
}

func (Contest) TableName() string {
	return "contests"
}

// ContestEntry represents one account's membership in one contest. The
// reputation snapshot is frozen at join time and never re-read.
type ContestEntry struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ContestID   uint            `gorm:"not null;index;uniqueIndex:idx_contest_account" json:"contest_id"`
	Account     string          `gorm:"size:64;not null;index;uniqueIndex:idx_contest_account" json:"account"`
	JoinOrder   int             `gorm:"not null" json:"join_order"`
	Reputation  decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"reputation"`
	Attempts    int             `gorm:"not null;default:0" json:"attempts"`
	HasAnswered bool            `gorm:"not null;default:false" json:"has_answered"`
	Claimed     bool            `gorm:"not null;default:false" json:"claimed"`
	JoinedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"joined_at"`
}

func (ContestEntry) TableName() string {
	return "contest_entries"
}

// AnswerSubmission records a single attempt, including the escalated fee
// burned for it.
type AnswerSubmission struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ContestID uint      `gorm:"not null;index" json:"contest_id"`
	Account   string    `gorm:"size:64;not null;index" json:"account"`
	Attempt   int       `gorm:"not null" json:"attempt"`
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	FeePaid   uint64    `gorm:"not null" json:"fee_paid"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AnswerSubmission) TableName() string {
	return "answer_submissions"
}

// PendingBalance accumulates a contest-independent withdrawable amount per
// account. It only grows on credit and is zeroed exactly once by a successful
// withdrawal.
type PendingBalance struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Account   string    `gorm:"size:64;not null;uniqueIndex" json:"account"`
	Amount    uint64    `gorm:"not null;default:0" json:"amount"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (PendingBalance) TableName() string {
	return "pending_balances"
}

// SettlementRecord is emitted once per contest at resolution and never
// recomputed.
type SettlementRecord struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ContestID     uint             `gorm:"not null;uniqueIndex" json:"contest_id"`
	Policy        SettlementPolicy `gorm:"size:20;not null" json:"policy"`
	WinnerAccount *string          `gorm:"size:64" json:"winner_account"`
	WinnerShare   uint64           `gorm:"not null;default:0" json:"winner_share"`
	TreasuryShare uint64           `gorm:"not null;default:0" json:"treasury_share"`
	ResidualShare uint64           `gorm:"not null;default:0" json:"residual_share"`
	CreatedAt     time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (SettlementRecord) TableName() string {
	return "settlement_records"
}

type ValueTransactionType string

const (
	ValueTransactionTypeEntryDeposit  ValueTransactionType = "ENTRY_DEPOSIT"
	ValueTransactionTypeRewardDeposit ValueTransactionType = "REWARD_DEPOSIT"
	ValueTransactionTypeFeeBurn       ValueTransactionType = "FEE_BURN"
	ValueTransactionTypePayout        ValueTransactionType = "PAYOUT"
	ValueTransactionTypeRefundCredit  ValueTransactionType = "REFUND_CREDIT"
	ValueTransactionTypeResidualBurn  ValueTransactionType = "RESIDUAL_BURN"
	ValueTransactionTypeWithdraw      ValueTransactionType = "WITHDRAW"
)

// ValueTransaction is the audit trail for every value movement the engine
// causes, one row per movement.
type ValueTransaction struct {
	ID        uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	ContestID uint                 `gorm:"index" json:"contest_id"`
	Type      ValueTransactionType `gorm:"size:30;not null;index" json:"type"`
	Account   string               `gorm:"size:64;not null;index" json:"account"`
	Amount    uint64               `gorm:"not null" json:"amount"`
	CreatedAt time.Time            `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ValueTransaction) TableName() string {
	return "value_transactions"
}

// ParticipantStats is a per-account roll-up updated at settlement time.
type ParticipantStats struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Account         string    `gorm:"size:64;not null;uniqueIndex" json:"account"`
	ContestsJoined  int64     `gorm:"default:0" json:"contests_joined"`
	ContestsWon     int64     `gorm:"default:0" json:"contests_won"`
	TotalEntryPaid  uint64    `gorm:"default:0" json:"total_entry_paid"`
	TotalFeesBurned uint64    `gorm:"default:0" json:"total_fees_burned"`
	TotalWon        uint64    `gorm:"default:0" json:"total_won"`
	UpdatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ParticipantStats) TableName() string {
	return "participant_stats"
}

// CreateContestRequest represents a request to create a new contest
type CreateContestRequest struct {
	Kind             string  `json:"kind" binding:"required,oneof=QUIZ_MATCH BOUNTY"`
	Title            string  `json:"title" binding:"required"`
	Prompt           string  `json:"prompt"`
	CommitmentHash   string  `json:"commitment_hash"`
	EntryAmount      uint64  `json:"entry_amount"`
	RewardAmount     uint64  `json:"reward_amount"`
	BaseFee          uint64  `json:"base_fee" binding:"required"`
	MinParticipants  int     `json:"min_participants"`
	MaxParticipants  int     `json:"max_participants" binding:"required"`
	Difficulty       int16   `json:"difficulty" binding:"required"`
	MinReputation    *string `json:"min_reputation"`
	JoinWindowSecs   int64   `json:"join_window_secs" binding:"required"`
	AnswerWindowSecs int64   `json:"answer_window_secs" binding:"required"`
	SettlementPolicy string  `json:"settlement_policy" binding:"required,oneof=FIXED_SPLIT CREATOR_PICK"`
}

// JoinContestRequest carries the identity handle the caller claims to control.
type JoinContestRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// SubmitAnswerRequest represents one answer attempt
type SubmitAnswerRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// SettleContestRequest designates the winner for operator settlement
type SettleContestRequest struct {
	WinnerAccount string `json:"winner_account" binding:"required"`
}

// PickWinnerRequest designates the winner chosen by the contest creator
type PickWinnerRequest struct {
	WinnerAccount string `json:"winner_account" binding:"required"`
}
