package models

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Table names, shared with the change notifier
const (
	TableCanonicalMedia  = "canonical_media"
	TableMediaSourceRefs = "media_source_refs"
	TableResumeMarks     = "resume_marks"
	TableIntegrityFaults = "integrity_faults"
)

// Database wraps the gorm connection
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens (and migrates) the sqlite database at path
func NewDatabase(path string) (*Database, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=off", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	// sqlite allows a single writer; one connection keeps writers from failing with SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Duration(0))

	if err := db.AutoMigrate(&CanonicalMedia{}, &MediaSourceRef{}, &ResumeMark{}, &IntegrityFault{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Continue watching filters on the pair and orders by recency
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_resume_continue
		ON resume_marks (profile_id, is_completed, position_percent, updated_at DESC)`).Error; err != nil {
		return nil, fmt.Errorf("failed to create resume index: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
