package reconsync

import (
	"time"

	"bitbucket.org/storyfount/finance_backend/finance"
	"bitbucket.org/storyfount/finance_backend/models"
)

const (
	reportCacheKey  = "finance:reconciliation:last"
	balanceCacheKey = "finance:balance:last"
	cacheTTL        = 24 * time.Hour
)

// SyncTriggerRequest is the optional body for the manual sync endpoint.
// An empty body means "sync the current month".
type SyncTriggerRequest struct {
	Month string `json:"month" validate:"omitempty,len=7"`
}

// MonthsResponse is the presentation contract for the months endpoint:
// the live month, finalized history, and the lifetime roll-up.
type MonthsResponse struct {
	Current    *models.MonthlyFinancialRecord  `json:"current"`
	Historical []models.MonthlyFinancialRecord `json:"historical"`
	Totals     models.MonthlyTotalsSummary     `json:"totals"`
}

// ReportResponse wraps a reconciliation report with the staleness
// indicator used when the processor is unreachable and the last known
// good copy is served instead.
type ReportResponse struct {
	finance.ReconciliationReport
	Stale bool `json:"stale"`
}

// BalanceResponse is the solvency breakdown plus staleness.
type BalanceResponse struct {
	finance.RealtimeBalanceBreakdown
	Stale bool `json:"stale"`
}

// SyncRunEntry is one audit row with the raw error detail replaced by
// the decoded list.
type SyncRunEntry struct {
	models.SyncRunLog
	Errors []string `json:"errors,omitempty"`
}

// MonthDetailResponse is one month's record with its writer earnings.
type MonthDetailResponse struct {
	Record         *models.MonthlyFinancialRecord `json:"record"`
	WriterEarnings []models.WriterEarnings        `json:"writerEarnings"`
}
