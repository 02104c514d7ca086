package finance

import "time"

// Reconcile diffs the processor's live subscription snapshot against the
// platform's active ledger rows. Read-only over both inputs and cheap
// enough to run on every page load; this is the only way discrepancies
// are discovered.
//
// Classification, keyed by the processor customer id:
//   - live processor subscription with no ledger row  -> missing_firebase
//   - both present, cached amount differs             -> amount_mismatch
//   - active ledger row no live subscription backs    -> stale_firebase
//
// IsInSync demands a zero signed discrepancy, equal subscriber counts,
// and an empty discrepancy list: two offsetting amount errors cancel to
// zero but must still report out of sync.
func Reconcile(processorSnapshot []ProcessorSubscription, ledgerSnapshot []LedgerSnapshotEntry) ReconciliationReport {
	report := ReconciliationReport{FetchedAt: time.Now().UTC()}

	ledgerByCustomer := make(map[string]LedgerSnapshotEntry, len(ledgerSnapshot))
	for _, entry := range ledgerSnapshot {
		ledgerByCustomer[entry.CustomerId] = entry
		report.LedgerTotalCents += entry.AmountCents
	}
	report.LedgerSubscriberCount = len(ledgerSnapshot)

	liveCustomers := make(map[string]bool, len(processorSnapshot))
	for _, sub := range processorSnapshot {
		if !sub.Live() {
			continue
		}
		liveCustomers[sub.CustomerId] = true
		report.ProcessorTotalCents += sub.AmountCents
		report.ProcessorSubscriberCount++

		entry, ok := ledgerByCustomer[sub.CustomerId]
		if !ok {
			report.Discrepancies = append(report.Discrepancies, DiscrepancyDetail{
				Type:                 DiscrepancyMissingFirebase,
				CustomerId:           sub.CustomerId,
				ProcessorAmountCents: sub.AmountCents,
			})
			continue
		}
		if entry.AmountCents != sub.AmountCents {
			report.Discrepancies = append(report.Discrepancies, DiscrepancyDetail{
				Type:                 DiscrepancyAmountMismatch,
				CustomerId:           sub.CustomerId,
				ProcessorAmountCents: sub.AmountCents,
				LedgerAmountCents:    entry.AmountCents,
				LedgerRecordId:       entry.RecordId,
			})
		}
	}

	for _, entry := range ledgerSnapshot {
		if liveCustomers[entry.CustomerId] {
			continue
		}
		report.Discrepancies = append(report.Discrepancies, DiscrepancyDetail{
			Type:              DiscrepancyStaleFirebase,
			CustomerId:        entry.CustomerId,
			LedgerAmountCents: entry.AmountCents,
			LedgerRecordId:    entry.RecordId,
		})
	}

	report.DiscrepancyCents = report.ProcessorTotalCents - report.LedgerTotalCents
	report.IsInSync = report.DiscrepancyCents == 0 &&
		report.ProcessorSubscriberCount == report.LedgerSubscriberCount &&
		len(report.Discrepancies) == 0
	return report
}
