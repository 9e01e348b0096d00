package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/nearby-backend/internal/domain"
)

func EnableExtensions(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}
	return nil
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureIndexes(db)
}

// EnsureIndexes adds what struct tags cannot express.
func EnsureIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_analysis_job_claim ON analysis_job(status, priority DESC, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_connection_analysis_to ON connection_analysis(to_user_id);`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}
