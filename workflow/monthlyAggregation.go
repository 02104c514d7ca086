package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/storyfount/finance_backend/config"
	"bitbucket.org/storyfount/finance_backend/finance"
	"bitbucket.org/storyfount/finance_backend/models"
	"bitbucket.org/storyfount/finance_backend/money"
	"bitbucket.org/storyfount/finance_backend/utils"
)

// RecomputeMonthlyRecord rebuilds a month's financial record and writer
// earnings from the current ledger. Processed months are immutable: the
// call returns the record untouched together with
// utils.ErrorMonthAlreadyProcessed.
func RecomputeMonthlyRecord(ctx context.Context, db *gorm.DB, logger *logrus.Logger, key models.MonthKey, now time.Time) (*models.MonthlyFinancialRecord, error) {
	record, err := models.EnsureMonthlyRecord(ctx, db, key, now)
	if err != nil {
		return nil, err
	}
	if record.Status == models.MonthStatusProcessed {
		return record, utils.ErrorMonthAlreadyProcessed
	}

	summary, earnings, err := aggregateFromLedger(ctx, db)
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Model(&models.MonthlyFinancialRecord{}).
		Where("month_key = ? AND status <> ?", key.String(), models.MonthStatusProcessed).
		Updates(map[string]interface{}{
			"total_subscription_cents": summary.TotalSubscriptionCents,
			"total_allocated_cents":    summary.TotalAllocatedCents,
			"total_unallocated_cents":  summary.TotalUnallocatedCents,
			"total_overspent_cents":    summary.TotalOverspentCents,
			"platform_fee_cents":       summary.PlatformFeeCents,
			"creator_payouts_cents":    summary.CreatorPayoutsCents,
			"platform_revenue_cents":   summary.PlatformRevenueCents,
			"user_count":               summary.UserCount,
			"allocation_rate":          summary.AllocationRate,
		}).Error; err != nil {
		return nil, err
	}

	for _, e := range earnings {
		bank, available := existingEarningsState(ctx, db, e.WriterId, key)
		row := &models.WriterEarnings{
			WriterId:           e.WriterId,
			MonthKey:           key.String(),
			GrossEarningsCents: e.GrossEarningsCents,
			PlatformFeeCents:   e.PlatformFeeCents,
			NetPayoutCents:     e.NetPayoutCents,
			// Money the processor already matured stays matured; only the
			// remainder of the recomputed payout is pending.
			PendingEarningsCents:   pendingEarnings(e.NetPayoutCents, available),
			AvailableEarningsCents: available,
			BankAccountStatus:      bank,
		}
		if err := models.UpsertWriterEarnings(ctx, db, row); err != nil {
			config.LogError(logger, "workflow/monthlyAggregation.go", "RecomputeMonthlyRecord", "upserting writer earnings", row, err)
			return nil, err
		}
	}

	return models.GetMonthlyRecord(ctx, db, key)
}

// aggregateFromLedger turns the active ledger into the pure core's inputs
// and folds them.
func aggregateFromLedger(ctx context.Context, db *gorm.DB) (finance.MonthlySummary, []finance.WriterEarningsDetail, error) {
	subscriptions, err := models.GetActiveLedgerSubscriptions(ctx, db)
	if err != nil {
		return finance.MonthlySummary{}, nil, utils.Retryable("ledger subscriptions read", err)
	}
	pledgesBySubscriber, err := models.GetActiveAllocationsBySubscriber(ctx, db)
	if err != nil {
		return finance.MonthlySummary{}, nil, utils.Retryable("ledger allocations read", err)
	}

	subscribers := make([]finance.SubscriberDetail, 0, len(subscriptions))
	contributions := make(map[string][]finance.FundedContribution)
	for _, sub := range subscriptions {
		var pledged money.Cents
		pledges := make([]finance.PledgedAllocation, 0, len(pledgesBySubscriber[sub.SubscriberId]))
		for _, a := range pledgesBySubscriber[sub.SubscriberId] {
			pledged += a.AmountCents
			pledges = append(pledges, finance.PledgedAllocation{
				WriterId:    a.WriterId,
				AmountCents: a.AmountCents,
			})
		}

		subscribers = append(subscribers, finance.NewSubscriberDetail(sub.SubscriberId, sub.AmountCents, pledged))

		for _, share := range finance.FundPledges(sub.AmountCents, pledges) {
			if share.AmountCents == 0 {
				continue
			}
			contributions[share.WriterId] = append(contributions[share.WriterId], finance.FundedContribution{
				SubscriberId: sub.SubscriberId,
				AmountCents:  share.AmountCents,
			})
		}
	}

	summary, earnings := finance.Aggregate(subscribers, contributions, money.FeePercent())
	return summary, earnings, nil
}

// pendingEarnings is the not-yet-matured remainder of a recomputed net
// payout. Never negative: a payout revised below what already matured
// simply has nothing left pending.
func pendingEarnings(netPayout, available money.Cents) money.Cents {
	if available >= netPayout {
		return 0
	}
	return netPayout - available
}

// existingEarningsState carries a writer's bank account state and matured
// money across recomputes; writers seen for the first time start at
// not_setup with nothing matured.
func existingEarningsState(ctx context.Context, db *gorm.DB, writerId string, key models.MonthKey) (models.BankAccountStatus, money.Cents) {
	var existing models.WriterEarnings
	err := db.WithContext(ctx).
		Where("writer_id = ? AND month_key = ?", writerId, key.String()).
		Take(&existing).Error
	if err != nil {
		return models.BankAccountNotSetup, 0
	}
	bank := existing.BankAccountStatus
	if bank == "" {
		bank = models.BankAccountNotSetup
	}
	return bank, existing.AvailableEarningsCents
}
