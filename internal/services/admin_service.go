package services

import (
	"context"
	"log"

	"arena-engine/internal/models"
	"arena-engine/internal/repository"
)

// AdminService manages the operator allow-list and the engine-wide knobs.
type AdminService struct {
	repo *repository.Repository
}

func NewAdminService(repo *repository.Repository) *AdminService {
	return &AdminService{repo: repo}
}

func (as *AdminService) requireOperator(ctx context.Context, account string) error {
	ok, err := as.repo.IsOperator(ctx, account)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewEngineError(models.ErrKindCapability, 0, account, "operator role required")
	}
	return nil
}

// AddOperator grants the operator role to an account
func (as *AdminService) AddOperator(ctx context.Context, caller, account string) error {
	if err := as.requireOperator(ctx, caller); err != nil {
		return err
	}
	if ok, err := as.repo.IsOperator(ctx, account); err != nil {
		return err
	} else if ok {
		return models.NewEngineError(models.ErrKindState, 0, account, "already an operator")
	}
	if err := as.repo.AddOperator(ctx, account, caller); err != nil {
		return err
	}
	log.Printf("[AdminService] %s added operator %s", caller, account)
	return nil
}

// RemoveOperator revokes the operator role
func (as *AdminService) RemoveOperator(ctx context.Context, caller, account string) error {
	if err := as.requireOperator(ctx, caller); err != nil {
		return err
	}
	if err := as.repo.RemoveOperator(ctx, account); err != nil {
		return err
	}
	log.Printf("[AdminService] %s removed operator %s", caller, account)
	return nil
}

// UpdateTreasury changes the account that receives treasury shares
func (as *AdminService) UpdateTreasury(ctx context.Context, caller, account string) error {
	if err := as.requireOperator(ctx, caller); err != nil {
		return err
	}
	if account == "" {
		return models.NewEngineError(models.ErrKindConfig, 0, caller, "treasury account is required")
	}

	settings, err := as.repo.GetSettings(ctx)
	if err != nil {
		return err
	}
	settings.TreasuryAccount = account
	return as.repo.UpdateSettings(ctx, settings)
}

// UpdateSplitWeights replaces the settlement split. Weights must sum to
// exactly 10000 basis points.
func (as *AdminService) UpdateSplitWeights(ctx context.Context, caller string, winnerBps, treasuryBps, residualBps uint64) error {
	if err := as.requireOperator(ctx, caller); err != nil {
		return err
	}
	if err := ValidateSplitWeights(winnerBps, treasuryBps, residualBps); err != nil {
		return err
	}

	settings, err := as.repo.GetSettings(ctx)
	if err != nil {
		return err
	}
	settings.WinnerBps = winnerBps
	settings.TreasuryBps = treasuryBps
	settings.ResidualBps = residualBps
	if err := as.repo.UpdateSettings(ctx, settings); err != nil {
		return err
	}
	log.Printf("[AdminService] Split weights now %d/%d/%d", winnerBps, treasuryBps, residualBps)
	return nil
}

// SetPaused pauses or unpauses entry-side mutations. Settlement, refunds,
// claims and withdrawals ignore the flag so funds are never stuck.
func (as *AdminService) SetPaused(ctx context.Context, caller string, paused bool) error {
	if err := as.requireOperator(ctx, caller); err != nil {
		return err
	}

	settings, err := as.repo.GetSettings(ctx)
	if err != nil {
		return err
	}
	settings.Paused = paused
	if err := as.repo.UpdateSettings(ctx, settings); err != nil {
		return err
	}
	log.Printf("[AdminService] Paused=%v by %s", paused, caller)
	return nil
}

// GetSettings exposes the current engine settings
func (as *AdminService) GetSettings(ctx context.Context) (*models.EngineSettings, error) {
	return as.repo.GetSettings(ctx)
}

// Bootstrap seeds the initial operator if the allow-list is empty. Called
// once at startup with the configured root operator.
func (as *AdminService) Bootstrap(ctx context.Context, rootOperator string) error {
	if rootOperator == "" {
		return nil
	}
	ok, err := as.repo.IsOperator(ctx, rootOperator)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := as.repo.AddOperator(ctx, rootOperator, "bootstrap"); err != nil {
		return err
	}
	log.Printf("[AdminService] Bootstrapped root operator %s", rootOperator)
	return nil
}
