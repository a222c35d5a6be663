package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/ir-tracker/internal/models"
)

// Open connects to the SQLite database at dbPath and migrates the schema.
// The returned handle is meant to be created once and shared; call Close on shutdown.
func Open(dbPath string, debug bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         newLogger(log.New(os.Stdout, "\r\n", log.LstdFlags), logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; serialize through one connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	log.Println("Database connected successfully")

	if err := cleanupDuplicateSlots(db); err != nil {
		return nil, fmt.Errorf("cleanup duplicate slots: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Card{},
		&models.Expansion{},
		&models.Binder{},
		&models.BinderSlot{},
		&models.WishlistItem{},
		&models.Stats{},
	); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	log.Println("Database migration completed")
	return db, nil
}

// newLogger is gorm's default logger without the record-not-found noise;
// lookups miss routinely (uncached stats, unknown slugs).
func newLogger(out logger.Writer, level logger.LogLevel) logger.Interface {
	return logger.New(out, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  true,
	})
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
