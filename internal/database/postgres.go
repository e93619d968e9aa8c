package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ConnectPostgres establishes a connection to the PostgreSQL database using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// EnsureSelectionIndex creates the partial unique index backing the invariant
// that at most one paper per (subject, exam type) is selected and locked.
// Application code keeps the selection cascade idempotent; this index is the
// storage-level backstop against concurrent selections.
func EnsureSelectionIndex(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_papers_selected_one
		ON papers (subject_id, exam_type)
		WHERE is_selected AND status = 'locked'`).Error
}
