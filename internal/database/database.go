package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/psych-report/backend/internal/config"
	"github.com/psych-report/backend/internal/models"
)

func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.IsDevelopment() {
		logLevel = logger.Info
	} else {
		logLevel = logger.Silent
	}

	log.Info("connecting to database",
		zap.String("driver", cfg.Database.Driver),
		zap.String("dsn", maskPassword(cfg.Database.DSN)))

	dialector, err := Dialector(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection successful")
	return db, nil
}

// Dialector picks the gorm driver for DB_DRIVER.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func maskPassword(dsn string) string {
	if len(dsn) > 20 {
		return dsn[:20] + "...***..."
	}
	return "***"
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running migrations")

	err := db.AutoMigrate(
		&models.TestDefinition{},
		&models.ReportTemplate{},
		&models.ScoreDescriptorRule{},
		&models.Assessment{},
		&models.AssessmentScore{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_test_definitions_owner_created ON test_definitions(owner_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_report_templates_owner_type ON report_templates(owner_id, test_type)",
		"CREATE INDEX IF NOT EXISTS idx_assessment_scores_assessment ON assessment_scores(assessment_id)",
	}
	if db.Dialector.Name() == "mysql" {
		// MySQL has no CREATE INDEX IF NOT EXISTS; the gorm tags cover the single-column indexes.
		return nil
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			log.Warn("index creation failed", zap.String("statement", stmt), zap.Error(err))
		}
	}
	return nil
}
