// Package finance is the pure core of the fund-flow engine: allocation
// splitting, monthly aggregation, ledger-vs-processor reconciliation, and
// the solvency check. Every function here is a pure function of the
// snapshots passed in; fetching and persistence live with the callers.
package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/storyfount/finance_backend/money"
)

// ProcessorSubscription is one row of the payment processor's
// authoritative billing snapshot.
type ProcessorSubscription struct {
	CustomerId  string      `json:"customerId"`
	AmountCents money.Cents `json:"amountCents"`
	Status      string      `json:"status"`
}

// Live reports whether the subscription currently bills.
func (s ProcessorSubscription) Live() bool {
	return s.Status == "active"
}

// LedgerSnapshotEntry is one active internal ledger row as seen by a
// reconciliation pass.
type LedgerSnapshotEntry struct {
	RecordId    string      `json:"recordId"`
	CustomerId  string      `json:"customerId"`
	AmountCents money.Cents `json:"amountCents"`
}

// ProcessorBalance is the processor-held platform balance.
type ProcessorBalance struct {
	AvailableCents money.Cents `json:"availableCents"`
	PendingCents   money.Cents `json:"pendingCents"`
}

type DiscrepancyType string

const (
	// DiscrepancyStaleFirebase: the ledger still shows an active
	// subscription no live processor subscription backs.
	DiscrepancyStaleFirebase DiscrepancyType = "stale_firebase"
	// DiscrepancyMissingFirebase: the processor bills a customer the
	// ledger has no record of.
	DiscrepancyMissingFirebase DiscrepancyType = "missing_firebase"
	// DiscrepancyAmountMismatch: both sides have the customer but the
	// cached amount drifted from the live one.
	DiscrepancyAmountMismatch DiscrepancyType = "amount_mismatch"
)

// DiscrepancyDetail is one classified mismatch. Ephemeral: produced by
// Reconcile, consumed by the sync executor, never persisted.
type DiscrepancyDetail struct {
	Type                 DiscrepancyType `json:"type"`
	CustomerId           string          `json:"customerId"`
	ProcessorAmountCents money.Cents     `json:"processorAmountCents"`
	LedgerAmountCents    money.Cents     `json:"ledgerAmountCents"`
	LedgerRecordId       string          `json:"ledgerRecordId,omitempty"`
}

// SyncResult is the outcome of one corrective pass. Per-record failures
// land in Errors; the pass itself never aborts on a single record.
type SyncResult struct {
	StaleRecordsFixed     int      `json:"staleRecordsFixed"`
	MissingRecordsCreated int      `json:"missingRecordsCreated"`
	AmountMismatchesFixed int      `json:"amountMismatchesFixed"`
	Errors                []string `json:"errors"`
}

// ReconciliationReport is the result of diffing the two snapshots.
type ReconciliationReport struct {
	ProcessorTotalCents      money.Cents         `json:"processorTotalCents"`
	LedgerTotalCents         money.Cents         `json:"ledgerTotalCents"`
	DiscrepancyCents         money.Cents         `json:"discrepancyCents"`
	ProcessorSubscriberCount int                 `json:"processorSubscriberCount"`
	LedgerSubscriberCount    int                 `json:"ledgerSubscriberCount"`
	IsInSync                 bool                `json:"isInSync"`
	Discrepancies            []DiscrepancyDetail `json:"discrepancies"`
	SyncResult               *SyncResult         `json:"syncResult,omitempty"`
	FetchedAt                time.Time           `json:"fetchedAt"`
}

// RealtimeBalanceBreakdown is a point-in-time solvency snapshot; never
// persisted as history.
type RealtimeBalanceBreakdown struct {
	ProcessorAvailableCents money.Cents `json:"processorAvailableCents"`
	ProcessorPendingCents   money.Cents `json:"processorPendingCents"`
	TotalOwedToWritersCents money.Cents `json:"totalOwedToWritersCents"`
	PlatformRevenueCents    money.Cents `json:"platformRevenueCents"`
	HasSufficientFunds      bool        `json:"hasSufficientFunds"`
	FetchedAt               time.Time   `json:"fetchedAt"`
}

// SubscriberDetail is one supporter's money for one month, after
// splitting their outgoing allocations against what they actually paid.
type SubscriberDetail struct {
	SubscriberId            string      `json:"subscriberId"`
	SubscriptionAmountCents money.Cents `json:"subscriptionAmountCents"`
	AllocatedCents          money.Cents `json:"allocatedCents"`
	FundedAllocatedCents    money.Cents `json:"fundedAllocatedCents"`
	OverspentUnfundedCents  money.Cents `json:"overspentUnfundedCents"`
	UnallocatedCents        money.Cents `json:"unallocatedCents"`
}

// FundedContribution is one subscriber's funded allocation to one writer.
type FundedContribution struct {
	SubscriberId string      `json:"subscriberId"`
	AmountCents  money.Cents `json:"amountCents"`
}

// WriterEarningsDetail is the aggregation output for one writer.
type WriterEarningsDetail struct {
	WriterId           string      `json:"writerId"`
	GrossEarningsCents money.Cents `json:"grossEarningsCents"`
	PlatformFeeCents   money.Cents `json:"platformFeeCents"`
	NetPayoutCents     money.Cents `json:"netPayoutCents"`
}

// MonthlySummary mirrors the MonthlyFinancialRecord money fields without
// touching persistence; the caller decides whether the state machine lets
// it be written.
type MonthlySummary struct {
	TotalSubscriptionCents money.Cents     `json:"totalSubscriptionCents"`
	TotalAllocatedCents    money.Cents     `json:"totalAllocatedCents"`
	TotalUnallocatedCents  money.Cents     `json:"totalUnallocatedCents"`
	TotalOverspentCents    money.Cents     `json:"totalOverspentCents"`
	PlatformFeeCents       money.Cents     `json:"platformFeeCents"`
	CreatorPayoutsCents    money.Cents     `json:"creatorPayoutsCents"`
	PlatformRevenueCents   money.Cents     `json:"platformRevenueCents"`
	UserCount              int             `json:"userCount"`
	AllocationRate         decimal.Decimal `json:"allocationRate"`
}
