package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"gorm.io/gorm"
)

// IdentityDirectory resolves a participant handle to the account that
// controls it. The engine queries it before admitting a join.
type IdentityDirectory interface {
	ControllerOf(ctx context.Context, identity string) (string, error)
}

// IdentityBinding maps a handle to its verified controlling account.
type IdentityBinding struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Identity  string    `gorm:"size:128;not null;uniqueIndex" json:"identity"`
	Account   string    `gorm:"size:64;not null;index" json:"account"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (IdentityBinding) TableName() string {
	return "identity_bindings"
}

// Directory is the database-backed IdentityDirectory.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// ControllerOf returns the account bound to the given identity handle.
func (d *Directory) ControllerOf(ctx context.Context, identity string) (string, error) {
	var binding IdentityBinding
	err := d.db.WithContext(ctx).Where("identity = ?", identity).First(&binding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("identity %s not registered", identity)
	}
	if err != nil {
		return "", err
	}
	return binding.Account, nil
}

// Register binds an identity handle to an account address. Account addresses
// are base58 strings, the same shape the funding wallets use.
func (d *Directory) Register(ctx context.Context, identity, account string) (*IdentityBinding, error) {
	if identity == "" {
		return nil, errors.New("identity is required")
	}
	if _, err := base58.Decode(account); err != nil {
		return nil, fmt.Errorf("invalid account address: %w", err)
	}

	binding := &IdentityBinding{
		Identity: identity,
		Account:  account,
	}
	if err := d.db.WithContext(ctx).Create(binding).Error; err != nil {
		return nil, fmt.Errorf("failed to register identity: %w", err)
	}
	return binding, nil
}
