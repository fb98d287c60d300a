package repository

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ FailureLog = (*GormFailureLog)(nil)

type GormFailureLog struct {
	db       *gorm.DB
	pageSize int
	now      func() time.Time
}

func NewGormFailureLog(db *gorm.DB) *GormFailureLog {
	return &GormFailureLog{
		db:       db,
		pageSize: defaultListPageSize,
		now:      time.Now,
	}
}

func (r *GormFailureLog) Record(
	ctx context.Context,
	req domain.NotificationRequest,
	attempts []domain.AttemptOutcome,
) (*domain.FailureLogEntry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	entry := newFailureLogEntry(req, attempts, r.now())
	model := failureLogModelFromDomain(&entry)

	if err := upsertFailureLogEntry(r.db.WithContext(ctx), model).Error; err != nil {
		return nil, fmt.Errorf("failed to record failure log entry: %w", err)
	}

	return failureLogModelToDomain(model), nil
}

// upsertFailureLogEntry replaces an existing row for the same correlation ID, resetting its
// acknowledged flag.
func upsertFailureLogEntry(tx *gorm.DB, model *FailureLogEntryModel) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "correlation_id"}},
		UpdateAll: true,
	}).Create(model)
}

func (r *GormFailureLog) List(ctx context.Context) iter.Seq2[domain.FailureLogEntry, error] {
	return func(yield func(domain.FailureLogEntry, error) bool) {
		var cursor *FailureLogEntryModel
		for {
			var models []FailureLogEntryModel
			if err := listFailureLogPage(r.db.WithContext(ctx), cursor, r.pageSize).Find(&models).Error; err != nil {
				yield(domain.FailureLogEntry{}, fmt.Errorf("failed to list failure log entries: %w", err))
				return
			}

			for i := range models {
				if !yield(*failureLogModelToDomain(&models[i]), nil) {
					return
				}
			}

			if len(models) < r.pageSize {
				return
			}
			cursor = &models[len(models)-1]
		}
	}
}

// listFailureLogPage selects one keyset page, newest first, strictly after cursor.
func listFailureLogPage(tx *gorm.DB, cursor *FailureLogEntryModel, pageSize int) *gorm.DB {
	query := tx.Model(&FailureLogEntryModel{}).
		Order("logged_at DESC").
		Order("correlation_id DESC").
		Limit(pageSize)

	if cursor != nil {
		query = query.Where("(logged_at, correlation_id) < (?, ?)", cursor.LoggedAt, cursor.CorrelationID)
	}
	return query
}

func (r *GormFailureLog) Acknowledge(ctx context.Context, correlationID string) error {
	result := acknowledgeFailureLogEntry(r.db.WithContext(ctx), correlationID)
	if result.Error != nil {
		return fmt.Errorf("failed to acknowledge failure log entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func acknowledgeFailureLogEntry(tx *gorm.DB, correlationID string) *gorm.DB {
	return tx.Model(&FailureLogEntryModel{}).
		Where("correlation_id = ?", correlationID).
		Update("acknowledged", true)
}

func (r *GormFailureLog) Clear(ctx context.Context) error {
	if err := clearFailureLog(r.db.WithContext(ctx)).Error; err != nil {
		return fmt.Errorf("failed to clear failure log: %w", err)
	}
	return nil
}

func clearFailureLog(tx *gorm.DB) *gorm.DB {
	return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&FailureLogEntryModel{})
}

func (r *GormFailureLog) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
