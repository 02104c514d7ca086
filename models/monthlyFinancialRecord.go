package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/storyfount/finance_backend/money"
	"bitbucket.org/storyfount/finance_backend/utils"
)

type MonthStatus string

const (
	MonthStatusPending    MonthStatus = "pending"
	MonthStatusInProgress MonthStatus = "in_progress"
	MonthStatusProcessed  MonthStatus = "processed"
)

// MonthlyFinancialRecord is the one-per-month fund-flow summary.
// Immutable once Status is processed.
type MonthlyFinancialRecord struct {
	ID                     int             `gorm:"primary_key" json:"-"`
	MonthKey               string          `gorm:"size:7;uniqueIndex;not null" json:"month"`
	TotalSubscriptionCents money.Cents     `gorm:"not null" json:"totalSubscriptionCents"`
	TotalAllocatedCents    money.Cents     `gorm:"not null" json:"totalAllocatedCents"`
	TotalUnallocatedCents  money.Cents     `gorm:"not null" json:"totalUnallocatedCents"`
	// Overspend is allocation promised beyond what subscribers paid.
	// Tracked for visibility; never part of the month total.
	TotalOverspentCents  money.Cents     `gorm:"not null" json:"totalOverspentCents"`
	PlatformFeeCents     money.Cents     `gorm:"not null" json:"platformFeeCents"`
	CreatorPayoutsCents  money.Cents     `gorm:"not null" json:"creatorPayoutsCents"`
	PlatformRevenueCents money.Cents     `gorm:"not null" json:"platformRevenueCents"`
	UserCount            int             `gorm:"not null" json:"userCount"`
	AllocationRate       decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"allocationRate"`
	Status               MonthStatus     `gorm:"size:20;index;not null" json:"status"`
	ProcessedAt          *time.Time      `json:"processedAt,omitempty"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"-"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"-"`
}

func (MonthlyFinancialRecord) TableName() string {
	return "monthly_financial_records"
}

func GetMonthlyRecord(ctx context.Context, db *gorm.DB, key MonthKey) (*MonthlyFinancialRecord, error) {
	var record MonthlyFinancialRecord
	err := db.WithContext(ctx).Where("month_key = ?", key.String()).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetHistoricalRecords returns processed months, newest first.
func GetHistoricalRecords(ctx context.Context, db *gorm.DB) ([]MonthlyFinancialRecord, error) {
	var records []MonthlyFinancialRecord
	err := db.WithContext(ctx).
		Where("status = ?", MonthStatusProcessed).
		Order("month_key DESC").
		Find(&records).Error
	return records, err
}

// EnsureMonthlyRecord creates the month's record on first subscription
// activity. Safe under concurrent callers: a duplicate insert is not an
// error. The current month is promoted to in_progress, past months stay
// whatever they already are.
func EnsureMonthlyRecord(ctx context.Context, db *gorm.DB, key MonthKey, now time.Time) (*MonthlyFinancialRecord, error) {
	existing, err := GetMonthlyRecord(ctx, db, key)
	if err == nil {
		if existing.Status == MonthStatusPending && key.IsCurrent(now) {
			if err := db.WithContext(ctx).Model(&MonthlyFinancialRecord{}).
				Where("month_key = ? AND status = ?", key.String(), MonthStatusPending).
				Update("status", MonthStatusInProgress).Error; err != nil {
				return nil, err
			}
			existing.Status = MonthStatusInProgress
		}
		return existing, nil
	}
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	status := MonthStatusPending
	if key.IsCurrent(now) {
		status = MonthStatusInProgress
	}
	record := &MonthlyFinancialRecord{
		MonthKey:       key.String(),
		AllocationRate: decimal.Zero,
		Status:         status,
	}
	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		if IsDuplicateKeyErr(err) {
			return GetMonthlyRecord(ctx, db, key)
		}
		return nil, err
	}
	return record, nil
}

// MonthlyTotalsSummary is the lifetime roll-up: all processed months plus
// the current in-progress month.
type MonthlyTotalsSummary struct {
	TotalSubscriptionCents money.Cents `json:"totalSubscriptionCents"`
	TotalAllocatedCents    money.Cents `json:"totalAllocatedCents"`
	TotalUnallocatedCents  money.Cents `json:"totalUnallocatedCents"`
	PlatformFeeCents       money.Cents `json:"platformFeeCents"`
	CreatorPayoutsCents    money.Cents `json:"creatorPayoutsCents"`
	PlatformRevenueCents   money.Cents `json:"platformRevenueCents"`
	MonthCount             int         `json:"monthCount"`
}

func GetMonthlyTotals(ctx context.Context, db *gorm.DB) (MonthlyTotalsSummary, error) {
	var summary MonthlyTotalsSummary
	err := db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(total_subscription_cents), 0) AS total_subscription_cents,
			COALESCE(SUM(total_allocated_cents), 0)    AS total_allocated_cents,
			COALESCE(SUM(total_unallocated_cents), 0)  AS total_unallocated_cents,
			COALESCE(SUM(platform_fee_cents), 0)       AS platform_fee_cents,
			COALESCE(SUM(creator_payouts_cents), 0)    AS creator_payouts_cents,
			COALESCE(SUM(platform_revenue_cents), 0)   AS platform_revenue_cents,
			COUNT(*)                                   AS month_count
		FROM monthly_financial_records
		WHERE status IN (?, ?)
	`, MonthStatusProcessed, MonthStatusInProgress).Scan(&summary).Error
	return summary, err
}
