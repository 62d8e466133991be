package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"arena-engine/internal/ledger"
	"arena-engine/internal/models"
	"arena-engine/internal/repository"

	"gorm.io/gorm"
)

// EscrowService owns the pull side of the payment pattern: pending balances
// accumulate credits and are withdrawn in one shot by their owner.
type EscrowService struct {
	repo          *repository.Repository
	valueLedger   ledger.ValueLedger
	escrowAccount string
	locks         *lockTable
	now           func() time.Time
}

func NewEscrowService(
	repo *repository.Repository,
	valueLedger ledger.ValueLedger,
	escrowAccount string,
) *EscrowService {
	return &EscrowService{
		repo:          repo,
		valueLedger:   valueLedger,
		escrowAccount: escrowAccount,
		locks:         newLockTable(),
		now:           time.Now,
	}
}

// PendingBalance returns what the account could withdraw right now.
func (es *EscrowService) PendingBalance(ctx context.Context, account string) (uint64, error) {
	balance, err := es.repo.GetPendingBalance(ctx, account)
	if err != nil {
		return 0, err
	}
	return balance.Amount, nil
}

// Withdraw pays out the caller's entire pending balance. The balance is
// zeroed before the transfer is made, so a re-entrant second withdrawal can
// only ever observe zero and fail. Withdrawals stay available while the
// engine is paused.
func (es *EscrowService) Withdraw(ctx context.Context, account string) (uint64, error) {
	key := "account:" + account
	if !es.locks.acquire(key) {
		return 0, models.NewEngineError(models.ErrKindReentrancy, 0, account,
			"withdrawal already in progress")
	}
	defer es.locks.release(key)

	var amount uint64
	err := es.repo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := es.repo.WithTx(tx)
		vl := es.valueLedger.WithTx(tx)

		var err error
		amount, err = repo.ZeroPendingBalance(ctx, account)
		if err != nil {
			return err
		}
		if amount == 0 {
			return models.NewEngineError(models.ErrKindState, 0, account,
				"nothing to withdraw")
		}

		if err := vl.Debit(ctx, es.escrowAccount, amount); err != nil {
			return models.NewEngineError(models.ErrKindTransfer, 0, account,
				fmt.Sprintf("escrow debit failed: %v", err))
		}
		if err := vl.Credit(ctx, account, amount); err != nil {
			return models.NewEngineError(models.ErrKindTransfer, 0, account,
				fmt.Sprintf("withdrawal credit failed: %v", err))
		}

		return repo.CreateValueTransaction(ctx, &models.ValueTransaction{
			Type:    models.ValueTransactionTypeWithdraw,
			Account: account,
			Amount:  amount,
		})
	})
	if err != nil {
		return 0, err
	}

	log.Printf("[EscrowService] %s withdrew %d", account, amount)
	return amount, nil
}
