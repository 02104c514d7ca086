package reconsync

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bitbucket.org/storyfount/finance_backend/config"
	"bitbucket.org/storyfount/finance_backend/finance"
	"bitbucket.org/storyfount/finance_backend/models"
	"bitbucket.org/storyfount/finance_backend/utils"
	"bitbucket.org/storyfount/finance_backend/workflow"
)

// MonthsHandler serves the current month record, the processed history,
// and the lifetime totals.
func MonthsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		db := config.GetDB()

		now := time.Now().UTC()
		current, err := models.GetMonthlyRecord(ctx, db, models.CurrentMonthKey(now))
		if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		historical, err := models.GetHistoricalRecords(ctx, db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		totals, err := models.GetMonthlyTotals(ctx, db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, MonthsResponse{
			Current:    current,
			Historical: historical,
			Totals:     totals,
		})
	}
}

// MonthDetailHandler serves one month's record and writer earnings.
// The month key is validated before anything touches the ledger.
func MonthDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := models.ParseMonthKey(c.Param("month"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()
		db := config.GetDB()

		record, err := models.GetMonthlyRecord(ctx, db, key)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no financial record for " + key.String()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		earnings, err := models.GetWriterEarningsForMonth(ctx, db, key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, MonthDetailResponse{Record: record, WriterEarnings: earnings})
	}
}

// ReconciliationHandler runs a read-only reconciliation pass. When the
// processor is unreachable the last known good report is served with
// stale=true rather than blocking the page.
func ReconciliationHandler(source ProcessorSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		report, err := RunReconciliation(ctx, config.GetDB(), source)
		if err != nil {
			if utils.IsRetryable(err) {
				var cached finance.ReconciliationReport
				if ok, cacheErr := config.GetRedisObject(reportCacheKey, &cached); cacheErr == nil && ok {
					c.JSON(http.StatusOK, ReportResponse{ReconciliationReport: cached, Stale: true})
					return
				}
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, ReportResponse{ReconciliationReport: report, Stale: false})
	}
}

// TriggerSyncHandler runs a full reconcile-and-correct pass for the
// current month. Admin only; idempotent — repeating it against a clean
// ledger reports zero corrections.
func TriggerSyncHandler(source ProcessorSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if isAdmin, ok := utils.GetIsAdminFromContext(ctx); !ok || !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		var req SyncTriggerRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := utils.ValidateStruct(req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
				return
			}
		}

		key := models.CurrentMonthKey(time.Now().UTC())
		if req.Month != "" {
			var err error
			key, err = models.ParseMonthKey(req.Month)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		triggeredBy := "api"
		if userName, ok := utils.GetUserNameFromContext(ctx); ok {
			triggeredBy = userName
		}
		ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())

		db := config.GetDB()
		report, err := RunSync(ctx, db, config.GetLogger(), source, NewLedgerStore(db), key, triggeredBy)
		if err != nil {
			if errors.Is(err, utils.ErrorSyncInProgress) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			if utils.IsRetryable(err) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, ReportResponse{ReconciliationReport: report, Stale: false})
	}
}

// SyncRunsHandler lists recent sync executions for the audit trail,
// with the stored error detail decoded back into a list.
func SyncRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		rows, err := models.GetRecentSyncRuns(ctx, config.GetDB(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		runs := make([]SyncRunEntry, 0, len(rows))
		for _, row := range rows {
			entry := SyncRunEntry{SyncRunLog: row}
			if row.ErrorDetail != "" {
				var detail []string
				if err := utils.UnmarshalFromJSON([]byte(row.ErrorDetail), &detail); err == nil {
					entry.Errors = detail
				}
			}
			entry.ErrorDetail = ""
			runs = append(runs, entry)
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

// FinalizeMonthHandler closes a month. Admin only; refuses loudly while
// the month is out of sync and no-ops on an already processed month.
func FinalizeMonthHandler(source ProcessorSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if isAdmin, ok := utils.GetIsAdminFromContext(ctx); !ok || !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		key, err := models.ParseMonthKey(c.Param("month"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		report, err := RunReconciliation(ctx, config.GetDB(), source)
		if err != nil {
			if utils.IsRetryable(err) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		record, err := workflow.FinalizeMonth(ctx, config.GetDB(), config.GetLogger(), key, report, time.Now().UTC())
		if err != nil {
			switch {
			case errors.Is(err, utils.ErrorRecordNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "no financial record for " + key.String()})
			case errors.Is(err, utils.ErrorMonthOutOfSync):
				c.JSON(http.StatusConflict, gin.H{
					"error":            err.Error(),
					"discrepancyCount": len(report.Discrepancies),
				})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		_ = config.RemoveRedisKey(balanceCacheKey)
		c.JSON(http.StatusOK, record)
	}
}

// BalanceHandler serves the realtime solvency breakdown, degrading to
// the last known good snapshot with stale=true on processor outage.
func BalanceHandler(source ProcessorSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		db := config.GetDB()

		balance, err := source.GetBalance(ctx)
		if err != nil {
			if utils.IsRetryable(err) {
				var cached finance.RealtimeBalanceBreakdown
				if ok, cacheErr := config.GetRedisObject(balanceCacheKey, &cached); cacheErr == nil && ok {
					c.JSON(http.StatusOK, BalanceResponse{RealtimeBalanceBreakdown: cached, Stale: true})
					return
				}
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		owed, err := models.TotalOwedToWriters(ctx, db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		breakdown := finance.CheckSolvency(balance, owed)
		_ = config.SetRedisObject(balanceCacheKey, breakdown, cacheTTL)
		c.JSON(http.StatusOK, BalanceResponse{RealtimeBalanceBreakdown: breakdown, Stale: false})
	}
}
