package finance

import (
	"sort"

	"github.com/shopspring/decimal"

	"bitbucket.org/storyfount/finance_backend/money"
)

// Aggregate folds one month of subscriber splits into the month-level
// summary and per-writer gross earnings. Pure: persistence and the month
// state machine belong to the caller.
//
// The platform fee is applied once to the month's funded allocations and
// once per writer to their gross, both through money.Fee. Unfunded
// overspend is reported but never enters the month total, so
// TotalAllocatedCents + TotalUnallocatedCents == TotalSubscriptionCents
// holds for any input.
func Aggregate(subscribers []SubscriberDetail, contributions map[string][]FundedContribution, feePercent decimal.Decimal) (MonthlySummary, []WriterEarningsDetail) {
	var summary MonthlySummary
	for _, sub := range subscribers {
		summary.TotalSubscriptionCents += sub.SubscriptionAmountCents
		summary.TotalAllocatedCents += sub.FundedAllocatedCents
		summary.TotalUnallocatedCents += sub.UnallocatedCents
		summary.TotalOverspentCents += sub.OverspentUnfundedCents
	}
	summary.UserCount = len(subscribers)
	summary.PlatformFeeCents = money.Fee(summary.TotalAllocatedCents, feePercent)
	summary.CreatorPayoutsCents = summary.TotalAllocatedCents - summary.PlatformFeeCents
	summary.PlatformRevenueCents = summary.TotalUnallocatedCents + summary.PlatformFeeCents
	summary.AllocationRate = money.RatePercent(summary.TotalAllocatedCents, summary.TotalSubscriptionCents)

	writerIds := make([]string, 0, len(contributions))
	for writerId := range contributions {
		writerIds = append(writerIds, writerId)
	}
	sort.Strings(writerIds)

	earnings := make([]WriterEarningsDetail, 0, len(writerIds))
	for _, writerId := range writerIds {
		var gross money.Cents
		for _, c := range contributions[writerId] {
			gross += c.AmountCents
		}
		fee := money.Fee(gross, feePercent)
		earnings = append(earnings, WriterEarningsDetail{
			WriterId:           writerId,
			GrossEarningsCents: gross,
			PlatformFeeCents:   fee,
			NetPayoutCents:     gross - fee,
		})
	}
	return summary, earnings
}
