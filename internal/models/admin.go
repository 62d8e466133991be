package models

import "time"

// Operator is the capability table for role-gated transitions. It lives
// outside contest state and is checked by every gated operation.
type Operator struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Account   string    `gorm:"size:64;not null;uniqueIndex" json:"account"`
	AddedBy   string    `gorm:"size:64;not null" json:"added_by"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Operator) TableName() string {
	return "operators"
}

// EngineSettings is a single-row table holding the operator-tunable knobs.
// The three split weights are basis points and must sum to exactly 10000.
type EngineSettings struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TreasuryAccount string    `gorm:"size:64;not null" json:"treasury_account"`
	WinnerBps       uint64    `gorm:"not null;default:8500" json:"winner_bps"`
	TreasuryBps     uint64    `gorm:"not null;default:1000" json:"treasury_bps"`
	ResidualBps     uint64    `gorm:"not null;default:500" json:"residual_bps"`
	Paused          bool      `gorm:"not null;default:false" json:"paused"`
	UpdatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (EngineSettings) TableName() string {
	return "engine_settings"
}

// UpdateSplitRequest updates the settlement split weights
type UpdateSplitRequest struct {
	WinnerBps   uint64 `json:"winner_bps" binding:"required"`
	TreasuryBps uint64 `json:"treasury_bps" binding:"required"`
	ResidualBps uint64 `json:"residual_bps"`
}

// UpdateTreasuryRequest changes the treasury account
type UpdateTreasuryRequest struct {
	Account string `json:"account" binding:"required"`
}

// OperatorRequest adds or removes an operator account
type OperatorRequest struct {
	Account string `json:"account" binding:"required"`
}
