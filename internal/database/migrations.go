package database

import (
	"log"

	"gorm.io/gorm"
)

// cleanupDuplicateSlots removes duplicate binder_slots rows before the unique
// (binder_id, slot_number) index is created, keeping the newest row.
// This runs BEFORE AutoMigrate to prevent constraint violations.
func cleanupDuplicateSlots(db *gorm.DB) error {
	if !db.Migrator().HasTable("binder_slots") {
		return nil
	}

	result := db.Exec(`
		DELETE FROM binder_slots
		WHERE id NOT IN (
			SELECT MAX(id)
			FROM binder_slots
			GROUP BY binder_id, slot_number
		)
	`)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("Cleaned up %d duplicate binder_slots entries", result.RowsAffected)
	}

	return nil
}

// RunMigrations runs data fixes after schema changes. Safe to run repeatedly.
func RunMigrations(db *gorm.DB) error {
	if err := normalizeExpansionSlugs(db); err != nil {
		return err
	}
	return clearUncollectedDates(db)
}

// normalizeExpansionSlugs lowercases card expansion references so they match Expansion.Slug
func normalizeExpansionSlugs(db *gorm.DB) error {
	result := db.Exec(`UPDATE cards SET expansion = LOWER(expansion) WHERE expansion <> LOWER(expansion)`)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("Normalized expansion slug on %d cards", result.RowsAffected)
	}
	return nil
}

// clearUncollectedDates enforces dateCollected = NULL for uncollected user rows
func clearUncollectedDates(db *gorm.DB) error {
	result := db.Exec(`UPDATE cards SET date_collected = NULL WHERE is_collected = 0 AND date_collected IS NOT NULL`)
	if result.Error != nil {
		log.Printf("Warning: failed to clear stale collected dates: %v", result.Error)
	}
	return nil
}
