package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/notify-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createFailureLogEntriesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_failure_log_entries",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.FailureLogEntryModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_failure_log_logged_at ON failure_log_entries (logged_at DESC, correlation_id DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.FailureLogEntryModel{})
		},
	}
}
