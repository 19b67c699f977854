// Package database opens the service's PostgreSQL connection.
package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/niaga-platform/service-seller-analytics/internal/models"
)

// Connect opens the database and applies pool settings.
func Connect(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logger.Info("Connected to database")
	return db, nil
}

// Migrate creates or updates the service's tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.SellerCredential{}, &models.ReportSnapshot{})
}
