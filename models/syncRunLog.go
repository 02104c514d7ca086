package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type SyncRunStatus string

const (
	SyncRunStatusSuccess SyncRunStatus = "success"
	SyncRunStatusPartial SyncRunStatus = "partial"
	SyncRunStatusFailed  SyncRunStatus = "failed"
)

// SyncRunLog is the audit row for one reconciliation-and-sync execution.
type SyncRunLog struct {
	ID                    int           `gorm:"primary_key" json:"id"`
	MonthKey              string        `gorm:"size:7;index;not null" json:"month"`
	CorrelationId         string        `gorm:"size:64;index;not null" json:"correlationId"`
	TriggeredBy           string        `gorm:"size:64" json:"triggeredBy"`
	StaleRecordsFixed     int           `gorm:"not null" json:"staleRecordsFixed"`
	MissingRecordsCreated int           `gorm:"not null" json:"missingRecordsCreated"`
	AmountMismatchesFixed int           `gorm:"not null" json:"amountMismatchesFixed"`
	ErrorCount            int           `gorm:"not null" json:"errorCount"`
	ErrorDetail           string        `gorm:"type:text" json:"errorDetail,omitempty"`
	Status                SyncRunStatus `gorm:"size:20;index;not null" json:"status"`
	StartedAt             time.Time     `gorm:"not null" json:"startedAt"`
	FinishedAt            time.Time     `gorm:"not null" json:"finishedAt"`
	DurationMs            int64         `gorm:"not null" json:"durationMs"`
}

func (SyncRunLog) TableName() string {
	return "sync_run_logs"
}

func CreateSyncRunLog(ctx context.Context, db *gorm.DB, row *SyncRunLog) error {
	return db.WithContext(ctx).Create(row).Error
}

func GetRecentSyncRuns(ctx context.Context, db *gorm.DB, limit int) ([]SyncRunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []SyncRunLog
	err := db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
