package database

import (
	"fmt"
	"log"

	"arena-engine/internal/ledger"
	"arena-engine/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established successfully")
	return nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate() error {
	// Engine state
	engineModels := []interface{}{
		&models.Contest{},
		&models.ContestEntry{},
		&models.AnswerSubmission{},
		&models.PendingBalance{},
		&models.SettlementRecord{},
		&models.ValueTransaction{},
		&models.ParticipantStats{},
		&models.Operator{},
		&models.EngineSettings{},
	}

	for _, model := range engineModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	// Collaborator tables
	collaboratorModels := []interface{}{
		&ledger.TokenAccount{},
		&ledger.IdentityBinding{},
		&ledger.ReputationScore{},
	}

	for _, model := range collaboratorModels {
		if err := DB.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
