package repository

import (
	"time"

	"github.com/kursadbilgin/notify-dispatch/internal/domain"
)

// FailureLogEntryModel is the persistence model for the failure_log_entries table.
type FailureLogEntryModel struct {
	CorrelationID string                  `gorm:"type:varchar(128);primaryKey"`
	Kind          domain.Kind             `gorm:"type:varchar(32);not null"`
	Recipient     string                  `gorm:"type:varchar(32);not null"`
	Body          string                  `gorm:"type:text;not null"`
	Attempts      []domain.AttemptOutcome `gorm:"type:jsonb;serializer:json;not null"`
	LoggedAt      time.Time               `gorm:"type:timestamptz;not null"`
	Acknowledged  bool                    `gorm:"not null;default:false"`
	UpdatedAt     time.Time
}

func (FailureLogEntryModel) TableName() string {
	return "failure_log_entries"
}

func failureLogModelFromDomain(e *domain.FailureLogEntry) *FailureLogEntryModel {
	if e == nil {
		return nil
	}

	return &FailureLogEntryModel{
		CorrelationID: e.Request.CorrelationID,
		Kind:          e.Request.Kind,
		Recipient:     e.Request.Recipient,
		Body:          e.Request.Body,
		Attempts:      e.Attempts,
		LoggedAt:      e.LoggedAt,
		Acknowledged:  e.Acknowledged,
	}
}

func failureLogModelToDomain(m *FailureLogEntryModel) *domain.FailureLogEntry {
	if m == nil {
		return nil
	}

	return &domain.FailureLogEntry{
		Request: domain.NotificationRequest{
			Recipient:     m.Recipient,
			Body:          m.Body,
			Kind:          m.Kind,
			CorrelationID: m.CorrelationID,
		},
		Attempts:     m.Attempts,
		LoggedAt:     m.LoggedAt.UTC(),
		Acknowledged: m.Acknowledged,
	}
}
