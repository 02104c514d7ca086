package finance

import (
	"time"

	"bitbucket.org/storyfount/finance_backend/money"
)

// CheckSolvency combines the processor-held balance with the ledger's
// outstanding writer obligations. HasSufficientFunds=false is a signal,
// not an error: payout initiation downstream consults it and refuses to
// pay writers beyond what the processor actually holds.
func CheckSolvency(balance ProcessorBalance, totalOwedToWriters money.Cents) RealtimeBalanceBreakdown {
	held := balance.AvailableCents + balance.PendingCents
	return RealtimeBalanceBreakdown{
		ProcessorAvailableCents: balance.AvailableCents,
		ProcessorPendingCents:   balance.PendingCents,
		TotalOwedToWritersCents: totalOwedToWriters,
		// Whatever the processor holds beyond writer obligations is the
		// platform's. Negative means obligations exceed held funds.
		PlatformRevenueCents: held - totalOwedToWriters,
		HasSufficientFunds:   held >= totalOwedToWriters,
		FetchedAt:            time.Now().UTC(),
	}
}
