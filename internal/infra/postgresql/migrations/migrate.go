package migrations

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

const migrationsTable = "notify_dispatch_migrations"

func Migrate(db *gorm.DB) error {
	opts := *gormigrate.DefaultOptions
	opts.TableName = migrationsTable
	opts.UseTransaction = true

	m := gormigrate.New(db, &opts, []*gormigrate.Migration{
		createFailureLogEntriesTable(),
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate failure log schema: %w", err)
	}
	return nil
}
