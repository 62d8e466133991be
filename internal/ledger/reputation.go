package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ScoreFilter narrows which reputation events count toward the aggregate.
type ScoreFilter struct {
	Since      *time.Time
	Categories []string
}

// ReputationService returns a signed fixed-point aggregate score per
// identity. The engine queries it exactly once, at join time.
type ReputationService interface {
	AggregateScore(ctx context.Context, identity string, filter ScoreFilter) (decimal.Decimal, error)
}

// ReputationScore stores one identity's aggregate with its decimal precision.
type ReputationScore struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Identity  string          `gorm:"size:128;not null;uniqueIndex" json:"identity"`
	Score     decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"score"`
	Precision int             `gorm:"not null;default:6" json:"precision"`
	UpdatedAt time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ReputationScore) TableName() string {
	return "reputation_scores"
}

// ScoreStore is the database-backed ReputationService.
type ScoreStore struct {
	db *gorm.DB
}

func NewScoreStore(db *gorm.DB) *ScoreStore {
	return &ScoreStore{db: db}
}

// AggregateScore returns the stored aggregate. Identities with no recorded
// score aggregate to zero rather than failing the join.
func (s *ScoreStore) AggregateScore(ctx context.Context, identity string, filter ScoreFilter) (decimal.Decimal, error) {
	var score ReputationScore
	err := s.db.WithContext(ctx).Where("identity = ?", identity).First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return score.Score, nil
}

// SetScore records or replaces an identity's aggregate. Used by tooling and
// tests; the engine itself never writes scores.
func (s *ScoreStore) SetScore(ctx context.Context, identity string, value decimal.Decimal) error {
	var existing ReputationScore
	err := s.db.WithContext(ctx).Where("identity = ?", identity).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(&ReputationScore{
			Identity: identity,
			Score:    value,
		}).Error
	}
	if err != nil {
		return err
	}
	existing.Score = value
	existing.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Save(&existing).Error
}
