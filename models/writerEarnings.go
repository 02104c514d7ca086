package models

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/storyfount/finance_backend/money"
)

type BankAccountStatus string

const (
	BankAccountNotSetup   BankAccountStatus = "not_setup"
	BankAccountPending    BankAccountStatus = "pending"
	BankAccountVerified   BankAccountStatus = "verified"
	BankAccountRestricted BankAccountStatus = "restricted"
	BankAccountRejected   BankAccountStatus = "rejected"
)

// WriterEarnings is one writer's earnings for one month. Gross comes from
// funded allocations only; pending/available mirror the processor-side
// maturity of the money.
type WriterEarnings struct {
	ID                     int               `gorm:"primary_key" json:"-"`
	WriterId               string            `gorm:"size:64;uniqueIndex:idx_writer_month;not null" json:"writerId"`
	MonthKey               string            `gorm:"size:7;uniqueIndex:idx_writer_month;not null" json:"month"`
	GrossEarningsCents     money.Cents       `gorm:"not null" json:"grossEarningsCents"`
	PlatformFeeCents       money.Cents       `gorm:"not null" json:"platformFeeCents"`
	NetPayoutCents money.Cents `gorm:"not null" json:"netPayoutCents"`
	// Pending is the not-yet-matured remainder of the net payout; available
	// is money the processor has matured for payout. Available is written
	// only by payout processing and survives aggregation recomputes.
	PendingEarningsCents   money.Cents       `gorm:"not null" json:"pendingEarningsCents"`
	AvailableEarningsCents money.Cents       `gorm:"not null" json:"availableEarningsCents"`
	BankAccountStatus      BankAccountStatus `gorm:"size:20;not null" json:"bankAccountStatus"`
	CanReceivePayout       bool              `gorm:"not null" json:"canReceivePayout"`
	CreatedAt              time.Time         `gorm:"autoCreateTime" json:"-"`
	UpdatedAt              time.Time         `gorm:"autoUpdateTime" json:"-"`
}

func (WriterEarnings) TableName() string {
	return "writer_earnings"
}

// CanReceivePayoutFor derives the payout gate from bank account state.
func CanReceivePayoutFor(status BankAccountStatus) bool {
	return status == BankAccountVerified
}

func GetWriterEarningsForMonth(ctx context.Context, db *gorm.DB, key MonthKey) ([]WriterEarnings, error) {
	var rows []WriterEarnings
	err := db.WithContext(ctx).
		Where("month_key = ?", key.String()).
		Order("gross_earnings_cents DESC").
		Find(&rows).Error
	return rows, err
}

// UpsertWriterEarnings writes a recomputed earnings row, replacing the
// previous aggregation for the same writer and month. Matured money is
// deliberately absent from the update list: available_earnings_cents
// belongs to payout processing and a recompute must never reset it.
func UpsertWriterEarnings(ctx context.Context, db *gorm.DB, row *WriterEarnings) error {
	row.CanReceivePayout = CanReceivePayoutFor(row.BankAccountStatus)
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "writer_id"}, {Name: "month_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"gross_earnings_cents",
			"platform_fee_cents",
			"net_payout_cents",
			"pending_earnings_cents",
			"bank_account_status",
			"can_receive_payout",
		}),
	}).Create(row).Error
}

// TotalOwedToWriters sums every writer's pending + available earnings —
// the ledger side of the solvency check.
func TotalOwedToWriters(ctx context.Context, db *gorm.DB) (money.Cents, error) {
	var owed int64
	err := db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(pending_earnings_cents + available_earnings_cents), 0)
		FROM writer_earnings
	`).Scan(&owed).Error
	return money.Cents(owed), err
}
