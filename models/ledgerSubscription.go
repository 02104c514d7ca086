package models

import (
	"context"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/storyfount/finance_backend/config"
	"bitbucket.org/storyfount/finance_backend/money"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// LedgerSubscription is the platform's own record of one supporter's
// subscription, cached from the payment processor. The processor stays
// authoritative; rows here drift and get corrected by the sync executor.
type LedgerSubscription struct {
	ID           int                `gorm:"primary_key" json:"id"`
	CustomerId   string             `gorm:"size:64;uniqueIndex;not null" json:"customerId"`
	SubscriberId string             `gorm:"size:64;index" json:"subscriberId"`
	AmountCents  money.Cents        `gorm:"not null" json:"amountCents"`
	Status       SubscriptionStatus `gorm:"size:20;index;not null" json:"status"`
	CancelledAt  *time.Time         `json:"cancelledAt,omitempty"`
	CreatedAt    time.Time          `gorm:"autoCreateTime" json:"-"`
	UpdatedAt    time.Time          `gorm:"autoUpdateTime" json:"-"`
}

func (LedgerSubscription) TableName() string {
	return "ledger_subscriptions"
}

func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// GetActiveLedgerSubscriptions returns the full active snapshot for a
// reconciliation pass.
func GetActiveLedgerSubscriptions(ctx context.Context, db *gorm.DB) ([]LedgerSubscription, error) {
	var rows []LedgerSubscription
	err := db.WithContext(ctx).
		Where("status = ?", SubscriptionStatusActive).
		Order("customer_id").
		Find(&rows).Error
	return rows, err
}

// GetLedgerSubscriptionsByCustomerIds point-reads a set of rows, chunked
// to the store's IN-query limit.
func GetLedgerSubscriptionsByCustomerIds(ctx context.Context, db *gorm.DB, customerIds []string) ([]LedgerSubscription, error) {
	var rows []LedgerSubscription
	for start := 0; start < len(customerIds); start += config.BatchReadLimit {
		end := start + config.BatchReadLimit
		if end > len(customerIds) {
			end = len(customerIds)
		}
		var chunk []LedgerSubscription
		if err := db.WithContext(ctx).
			Where("customer_id IN ?", customerIds[start:end]).
			Find(&chunk).Error; err != nil {
			return nil, err
		}
		rows = append(rows, chunk...)
	}
	return rows, nil
}

// UpsertFromProcessor seeds a ledger row from the processor's authoritative
// amount and status. Existing rows (including cancelled ones) are revived
// in place. Returns true when the write changed anything, so repeat runs
// count zero.
func UpsertFromProcessor(ctx context.Context, db *gorm.DB, customerId string, amountCents money.Cents) (bool, error) {
	row := LedgerSubscription{
		CustomerId:  customerId,
		AmountCents: amountCents,
		Status:      SubscriptionStatusActive,
	}
	result := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "customer_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount_cents": amountCents,
			"status":       SubscriptionStatusActive,
			"cancelled_at": nil,
		}),
	}).Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateLedgerAmount overwrites only the cached amount. The WHERE guard on
// the old value keeps the write idempotent and leaves unrelated fields
// untouched.
func UpdateLedgerAmount(ctx context.Context, db *gorm.DB, customerId string, amountCents money.Cents) (bool, error) {
	result := db.WithContext(ctx).Model(&LedgerSubscription{}).
		Where("customer_id = ? AND amount_cents <> ?", customerId, amountCents).
		Update("amount_cents", amountCents)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkLedgerCancelled deactivates a stale row. Never deletes: the row is
// the audit trail.
func MarkLedgerCancelled(ctx context.Context, db *gorm.DB, customerId string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Model(&LedgerSubscription{}).
		Where("customer_id = ? AND status = ?", customerId, SubscriptionStatusActive).
		Updates(map[string]interface{}{
			"status":       SubscriptionStatusCancelled,
			"cancelled_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
