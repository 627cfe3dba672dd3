package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pdfsqueeze/internal/compression"
)

const statsRowID = 1

// Database handles database operations
type Database struct {
	db *gorm.DB
}

// NewDatabase opens (or creates) the sqlite file at dbPath. ":memory:" is
// accepted for tests.
func NewDatabase(dbPath string) (*Database, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	return newDatabase(db)
}

func newDatabase(db *gorm.DB) (*Database, error) {
	// sqlite serializes writers anyway; one connection also keeps ":memory:"
	// databases from splitting across the pool.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&Statistics{}); err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

// Record adds one finished compression to the running totals.
func (d *Database) Record(ctx context.Context, result *compression.Result) error {
	if result == nil {
		return nil
	}

	updates := map[string]any{
		"files_compressed": gorm.Expr("files_compressed + ?", 1),
		"bytes_in":         gorm.Expr("bytes_in + ?", result.OriginalSize),
		"bytes_out":        gorm.Expr("bytes_out + ?", result.FinalSize),
		"bytes_saved":      gorm.Expr("bytes_saved + ?", result.Saved()),
	}

	switch result.Engine {
	case compression.EngineNative:
		updates["native_runs"] = gorm.Expr("native_runs + ?", 1)
	case compression.EngineFallback:
		updates["fallback_runs"] = gorm.Expr("fallback_runs + ?", 1)
	}
	if result.Unchanged {
		updates["unchanged_results"] = gorm.Expr("unchanged_results + ?", 1)
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getOrCreateStatistics(tx); err != nil {
			return err
		}
		return tx.Model(&Statistics{}).Where("id = ?", statsRowID).Updates(updates).Error
	})
}

// Get returns a snapshot of the running totals.
func (d *Database) Get(ctx context.Context) (*Statistics, error) {
	return getOrCreateStatistics(d.db.WithContext(ctx))
}

// Reset zeroes the running totals.
func (d *Database) Reset(ctx context.Context) error {
	return d.db.WithContext(ctx).Save(&Statistics{ID: statsRowID}).Error
}

// Close releases the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// getOrCreateStatistics gets the statistics row or creates an empty one
func getOrCreateStatistics(db *gorm.DB) (*Statistics, error) {
	var stats Statistics

	err := db.First(&stats, statsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = Statistics{ID: statsRowID}
		if err := db.Create(&stats).Error; err != nil {
			return nil, err
		}
		return &stats, nil
	}
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
