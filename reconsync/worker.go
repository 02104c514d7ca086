package reconsync

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/storyfount/finance_backend/config"
	"bitbucket.org/storyfount/finance_backend/finance"
	"bitbucket.org/storyfount/finance_backend/models"
	"bitbucket.org/storyfount/finance_backend/utils"
	"bitbucket.org/storyfount/finance_backend/workflow"
)

// ProcessorSource is the read surface of the external payment processor.
// *processor.Client satisfies it.
type ProcessorSource interface {
	ListSubscriptions(ctx context.Context) ([]finance.ProcessorSubscription, error)
	GetBalance(ctx context.Context) (finance.ProcessorBalance, error)
}

const (
	defaultSyncWorkers = 5
	maxSyncWorkers     = 10
)

func syncWorkerCount() int {
	v := strings.TrimSpace(os.Getenv("SYNC_WORKER_COUNT"))
	if v == "" {
		return defaultSyncWorkers
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return defaultSyncWorkers
	}
	if n > maxSyncWorkers {
		return maxSyncWorkers
	}
	return n
}

// ApplySync applies corrective writes for each discrepancy through a
// bounded worker pool. Records fail independently: an error on one is
// collected and the rest keep going. Cancelling ctx stops new corrections
// from being issued; writes already in flight finish and the partial
// result is still returned. Counts reflect only writes that changed
// something, so a repeat run over an unchanged world reports zeros.
func ApplySync(ctx context.Context, logger *logrus.Logger, store LedgerStore, discrepancies []finance.DiscrepancyDetail) finance.SyncResult {
	result := finance.SyncResult{Errors: []string{}}
	if len(discrepancies) == 0 {
		return result
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan finance.DiscrepancyDetail)

	workers := syncWorkerCount()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				changed, kind, err := applyOne(ctx, store, d)
				mu.Lock()
				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", d.Type, d.CustomerId, err))
					if logger != nil {
						config.LogError(logger, "reconsync/worker.go", "ApplySync", "applying correction", d, err)
					}
				} else if changed {
					switch kind {
					case finance.DiscrepancyStaleFirebase:
						result.StaleRecordsFixed++
					case finance.DiscrepancyMissingFirebase:
						result.MissingRecordsCreated++
					case finance.DiscrepancyAmountMismatch:
						result.AmountMismatchesFixed++
					}
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, d := range discrepancies {
		select {
		case jobs <- d:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return result
}

func applyOne(ctx context.Context, store LedgerStore, d finance.DiscrepancyDetail) (changed bool, kind finance.DiscrepancyType, err error) {
	defer func() {
		if r := recover(); r != nil {
			changed = false
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch d.Type {
	case finance.DiscrepancyMissingFirebase:
		changed, err = store.CreateFromProcessor(ctx, d.CustomerId, d.ProcessorAmountCents)
	case finance.DiscrepancyAmountMismatch:
		changed, err = store.UpdateAmount(ctx, d.CustomerId, d.ProcessorAmountCents)
	case finance.DiscrepancyStaleFirebase:
		changed, err = store.MarkCancelled(ctx, d.CustomerId)
	default:
		err = fmt.Errorf("unknown discrepancy type %q", d.Type)
	}
	return changed, d.Type, err
}

// verifyCorrections re-reads the corrected customers in batches and
// returns the ones whose ledger state still disagrees with the processor.
// A non-empty result after a sync pass means some corrections were lost or
// raced with concurrent writes.
func verifyCorrections(ctx context.Context, store LedgerStore, discrepancies []finance.DiscrepancyDetail) ([]string, error) {
	if len(discrepancies) == 0 {
		return nil, nil
	}
	customerIds := make([]string, 0, len(discrepancies))
	for _, d := range discrepancies {
		customerIds = append(customerIds, d.CustomerId)
	}
	amounts, err := store.ActiveAmountsByCustomerIds(ctx, customerIds)
	if err != nil {
		return nil, err
	}

	var unresolved []string
	for _, d := range discrepancies {
		amount, active := amounts[d.CustomerId]
		switch d.Type {
		case finance.DiscrepancyStaleFirebase:
			if active {
				unresolved = append(unresolved, d.CustomerId)
			}
		case finance.DiscrepancyMissingFirebase, finance.DiscrepancyAmountMismatch:
			if !active || amount != d.ProcessorAmountCents {
				unresolved = append(unresolved, d.CustomerId)
			}
		}
	}
	return unresolved, nil
}

// RunReconciliation fetches both snapshots and diffs them. Read-only and
// cheap; callers may run it on every page load. The successful report is
// cached as the last known good copy for outage degradation.
func RunReconciliation(ctx context.Context, db *gorm.DB, source ProcessorSource) (finance.ReconciliationReport, error) {
	processorSnapshot, err := source.ListSubscriptions(ctx)
	if err != nil {
		return finance.ReconciliationReport{}, err
	}
	rows, err := models.GetActiveLedgerSubscriptions(ctx, db)
	if err != nil {
		return finance.ReconciliationReport{}, utils.Retryable("ledger snapshot read", err)
	}

	ledgerSnapshot := make([]finance.LedgerSnapshotEntry, 0, len(rows))
	for _, row := range rows {
		ledgerSnapshot = append(ledgerSnapshot, finance.LedgerSnapshotEntry{
			RecordId:    strconv.Itoa(row.ID),
			CustomerId:  row.CustomerId,
			AmountCents: row.AmountCents,
		})
	}

	report := finance.Reconcile(processorSnapshot, ledgerSnapshot)
	_ = config.SetRedisObject(reportCacheKey, report, cacheTTL)
	return report, nil
}

// RunSync is one full reconciliation-and-correction pass for a month,
// serialized per month. After corrections the month record is recomputed
// from the corrected ledger.
func RunSync(ctx context.Context, db *gorm.DB, logger *logrus.Logger, source ProcessorSource, store LedgerStore, key models.MonthKey, triggeredBy string) (finance.ReconciliationReport, error) {
	release, err := acquireMonthLock(ctx, key)
	if err != nil {
		return finance.ReconciliationReport{}, err
	}
	defer release()

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	startedAt := time.Now().UTC()

	report, err := RunReconciliation(ctx, db, source)
	if err != nil {
		return finance.ReconciliationReport{}, err
	}

	result := ApplySync(ctx, logger, store, report.Discrepancies)
	report.SyncResult = &result

	if unresolved, verr := verifyCorrections(ctx, store, report.Discrepancies); verr != nil {
		config.LogError(logger, "reconsync/worker.go", "RunSync", "verifying corrections", key.String(), verr)
	} else if len(unresolved) > 0 && logger != nil {
		logger.WithFields(logrus.Fields{
			"module":     "reconsync",
			"month":      key.String(),
			"unresolved": unresolved,
		}).Warn("corrections did not converge for some customers")
	}

	status := models.SyncRunStatusSuccess
	if len(result.Errors) > 0 {
		status = models.SyncRunStatusPartial
		if result.StaleRecordsFixed+result.MissingRecordsCreated+result.AmountMismatchesFixed == 0 &&
			len(result.Errors) == len(report.Discrepancies) && len(report.Discrepancies) > 0 {
			status = models.SyncRunStatusFailed
		}
	}
	finishedAt := time.Now().UTC()
	var errorDetail string
	if len(result.Errors) > 0 {
		errorDetail, _ = utils.MarshalToJSON(result.Errors)
	}
	runLog := &models.SyncRunLog{
		MonthKey:              key.String(),
		CorrelationId:         cid,
		TriggeredBy:           triggeredBy,
		StaleRecordsFixed:     result.StaleRecordsFixed,
		MissingRecordsCreated: result.MissingRecordsCreated,
		AmountMismatchesFixed: result.AmountMismatchesFixed,
		ErrorCount:            len(result.Errors),
		ErrorDetail:           errorDetail,
		Status:                status,
		StartedAt:             startedAt,
		FinishedAt:            finishedAt,
		DurationMs:            finishedAt.Sub(startedAt).Milliseconds(),
	}
	if err := models.CreateSyncRunLog(ctx, db, runLog); err != nil {
		config.LogError(logger, "reconsync/worker.go", "RunSync", "persisting run log", runLog, err)
	}

	if _, err := workflow.RecomputeMonthlyRecord(ctx, db, logger, key, time.Now().UTC()); err != nil {
		config.LogError(logger, "reconsync/worker.go", "RunSync", "recomputing month record", key.String(), err)
	}
	// The recompute moved writer obligations; the cached solvency snapshot
	// no longer reflects them.
	_ = config.RemoveRedisKey(balanceCacheKey)

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"module":         "reconsync",
			"month":          key.String(),
			"correlation_id": cid,
			"stale_fixed":    result.StaleRecordsFixed,
			"missing_created": result.MissingRecordsCreated,
			"amounts_fixed":  result.AmountMismatchesFixed,
			"errors":         len(result.Errors),
			"duration_ms":    runLog.DurationMs,
		}).Info("reconciliation sync completed")
	}

	_ = config.SetRedisObject(reportCacheKey, report, cacheTTL)
	return report, nil
}
