package db

import (
	"context"
	"fmt"

	"pitaradio/logger"
	"pitaradio/model"

	"gorm.io/gorm"
)

// Migrate creates or updates the tracks and track_stats tables.
func Migrate(gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("GORM database not initialized")
	}
	if err := gdb.AutoMigrate(&model.Track{}, &model.TrackStat{}); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	logger.Info("Database schema migrated")
	return nil
}

// Ping checks the connection, used by the health endpoint.
func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
