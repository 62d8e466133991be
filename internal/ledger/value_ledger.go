package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInsufficientBalance is returned by Debit and Burn when the account does
// not hold the requested amount.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ValueLedger is the narrow surface of the fungible-value collaborator the
// engine consumes. Burn removes value from circulation; it is used for
// answer fees and the residual allocation.
type ValueLedger interface {
	WithTx(tx *gorm.DB) ValueLedger
	Debit(ctx context.Context, account string, amount uint64) error
	Credit(ctx context.Context, account string, amount uint64) error
	Burn(ctx context.Context, account string, amount uint64) error
	Balance(ctx context.Context, account string) (uint64, error)
}

// TokenAccount holds one account's circulating balance in the token-like
// account service.
type TokenAccount struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Account   string    `gorm:"size:64;not null;uniqueIndex" json:"account"`
	Balance   uint64    `gorm:"not null;default:0" json:"balance"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (TokenAccount) TableName() string {
	return "token_accounts"
}

// TokenLedger is the database-backed implementation of ValueLedger.
type TokenLedger struct {
	db *gorm.DB
}

func NewTokenLedger(db *gorm.DB) *TokenLedger {
	return &TokenLedger{db: db}
}

// WithTx returns a copy bound to the given transaction so ledger movements
// commit or roll back together with the engine state that caused them.
func (l *TokenLedger) WithTx(tx *gorm.DB) ValueLedger {
	return &TokenLedger{db: tx}
}

// Debit removes amount from the account's balance.
func (l *TokenLedger) Debit(ctx context.Context, account string, amount uint64) error {
	var acct TokenAccount
	err := l.db.WithContext(ctx).Where("account = ?", account).First(&acct).Error
	if err != nil {
		return fmt.Errorf("debit %s: %w", account, err)
	}
	if acct.Balance < amount {
		return fmt.Errorf("debit %s for %d: %w", account, amount, ErrInsufficientBalance)
	}
	acct.Balance -= amount
	acct.UpdatedAt = time.Now()
	return l.db.WithContext(ctx).Save(&acct).Error
}

// Credit adds amount to the account's balance, creating the account row on
// first use.
func (l *TokenLedger) Credit(ctx context.Context, account string, amount uint64) error {
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now(),
		}),
	}).Create(&TokenAccount{Account: account, Balance: amount}).Error
}

// Burn removes amount from circulation entirely.
func (l *TokenLedger) Burn(ctx context.Context, account string, amount uint64) error {
	if err := l.Debit(ctx, account, amount); err != nil {
		return fmt.Errorf("burn: %w", err)
	}
	return nil
}

// Balance returns the account's current balance; unknown accounts hold zero.
func (l *TokenLedger) Balance(ctx context.Context, account string) (uint64, error) {
	var acct TokenAccount
	err := l.db.WithContext(ctx).Where("account = ?", account).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Mint issues new value to an account. Not part of the engine-facing
// surface; used by operational tooling and tests.
func (l *TokenLedger) Mint(ctx context.Context, account string, amount uint64) error {
	return l.Credit(ctx, account, amount)
}
