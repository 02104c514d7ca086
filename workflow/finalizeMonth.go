package workflow

import (
	"fmt"
	"time"

	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/storyfount/finance_backend/finance"
	"bitbucket.org/storyfount/finance_backend/models"
	"bitbucket.org/storyfount/finance_backend/utils"
)

// CheckFinalizable is the pure finalization gate. A month already
// processed is a safe no-op; a month whose ledger still disagrees with
// the processor is a hard rejection carrying the discrepancy breakdown.
func CheckFinalizable(record *models.MonthlyFinancialRecord, report finance.ReconciliationReport) error {
	if record.Status == models.MonthStatusProcessed {
		return utils.ErrorMonthAlreadyProcessed
	}
	if !report.IsInSync {
		counts := map[finance.DiscrepancyType]int{}
		for _, d := range report.Discrepancies {
			counts[d.Type]++
		}
		return fmt.Errorf("%w: %d discrepancies (stale=%d missing=%d mismatch=%d, net %d cents)",
			utils.ErrorMonthOutOfSync,
			len(report.Discrepancies),
			counts[finance.DiscrepancyStaleFirebase],
			counts[finance.DiscrepancyMissingFirebase],
			counts[finance.DiscrepancyAmountMismatch],
			report.DiscrepancyCents)
	}
	return nil
}

// FinalizeMonth closes a month: one last recompute from the reconciled
// ledger, then the pending/in_progress -> processed transition. The
// transition happens exactly once; calling finalize again on a processed
// month returns the record unchanged with no error. An out-of-sync month
// is rejected without touching the record's status.
func FinalizeMonth(ctx context.Context, db *gorm.DB, logger *logrus.Logger, key models.MonthKey, report finance.ReconciliationReport, now time.Time) (*models.MonthlyFinancialRecord, error) {
	record, err := models.GetMonthlyRecord(ctx, db, key)
	if err != nil {
		return nil, err
	}

	if err := CheckFinalizable(record, report); err != nil {
		if err == utils.ErrorMonthAlreadyProcessed {
			// Idempotent: the published record stays exactly as it was.
			return record, nil
		}
		return nil, err
	}

	if _, err := RecomputeMonthlyRecord(ctx, db, logger, key, now); err != nil {
		return nil, err
	}

	// Guarded transition: the WHERE clause makes a lost race a no-op
	// instead of a double finalization.
	result := db.WithContext(ctx).Model(&models.MonthlyFinancialRecord{}).
		Where("month_key = ? AND status <> ?", key.String(), models.MonthStatusProcessed).
		Updates(map[string]interface{}{
			"status":       models.MonthStatusProcessed,
			"processed_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	record, err = models.GetMonthlyRecord(ctx, db, key)
	if err != nil {
		return nil, err
	}

	if logger != nil && result.RowsAffected > 0 {
		logger.WithFields(logrus.Fields{
			"module":               "workflow",
			"month":                key.String(),
			"total_subscription":   record.TotalSubscriptionCents,
			"creator_payouts":      record.CreatorPayoutsCents,
			"platform_revenue":     record.PlatformRevenueCents,
			"user_count":           record.UserCount,
		}).Info("month finalized")
	}
	return record, nil
}
