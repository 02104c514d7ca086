package models

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/storyfount/finance_backend/money"
)

// LedgerAllocation is one supporter's standing monthly pledge to one
// writer. Pledges are promises; how much of each is actually funded is
// decided against the subscriber's charged amount during aggregation.
type LedgerAllocation struct {
	ID           int         `gorm:"primary_key" json:"id"`
	SubscriberId string      `gorm:"size:64;uniqueIndex:idx_sub_writer;not null" json:"subscriberId"`
	WriterId     string      `gorm:"size:64;uniqueIndex:idx_sub_writer;index;not null" json:"writerId"`
	AmountCents  money.Cents `gorm:"not null" json:"amountCents"`
	Status       SubscriptionStatus `gorm:"size:20;index;not null" json:"status"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"-"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"-"`
}

func (LedgerAllocation) TableName() string {
	return "ledger_allocations"
}

func GetActiveAllocations(ctx context.Context, db *gorm.DB) ([]LedgerAllocation, error) {
	var rows []LedgerAllocation
	err := db.WithContext(ctx).
		Where("status = ?", SubscriptionStatusActive).
		Order("subscriber_id, writer_id").
		Find(&rows).Error
	return rows, err
}

// GetActiveAllocationsBySubscriber groups active pledges per supporter.
func GetActiveAllocationsBySubscriber(ctx context.Context, db *gorm.DB) (map[string][]LedgerAllocation, error) {
	rows, err := GetActiveAllocations(ctx, db)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]LedgerAllocation)
	for _, row := range rows {
		grouped[row.SubscriberId] = append(grouped[row.SubscriberId], row)
	}
	return grouped, nil
}
