package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/storyfount/finance_backend/config"
	"bitbucket.org/storyfount/finance_backend/models"
	"bitbucket.org/storyfount/finance_backend/processor"
	"bitbucket.org/storyfount/finance_backend/reconsync"
	"bitbucket.org/storyfount/finance_backend/utils"
	"bitbucket.org/storyfount/finance_backend/workflow"
)

// Scheduled month-close job. Runs a sync pass for the target month, then
// finalizes it if the ledger reconciles clean. Meant to run on the 1st of
// each month against the month that just ended; a month that is still out
// of sync is left untouched and the job exits non-zero so the scheduler
// alerts.
func main() {
	monthFlag := flag.String("month", "", "Optional: month to close (YYYY-MM). Defaults to the previous calendar month.")
	dryRun := flag.Bool("dry-run", false, "Reconcile and report, but do not write corrections or finalize.")
	flag.Parse()

	ctx := context.Background()
	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	key := models.CurrentMonthKey(time.Now().UTC()).Prev()
	if strings.TrimSpace(*monthFlag) != "" {
		var err error
		key, err = models.ParseMonthKey(strings.TrimSpace(*monthFlag))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -month: %v\n", err)
			os.Exit(1)
		}
	}

	source, err := processor.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "processor client: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		report, err := reconsync.RunReconciliation(ctx, db, source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("month=%s in_sync=%v discrepancies=%d net_cents=%d\n",
			key.String(), report.IsInSync, len(report.Discrepancies), report.DiscrepancyCents)
		return
	}

	report, err := reconsync.RunSync(ctx, db, logger, source, reconsync.NewLedgerStore(db), key, "close-month-job")
	if err != nil {
		if errors.Is(err, utils.ErrorSyncInProgress) {
			fmt.Fprintf(os.Stderr, "another sync holds the lock for %s; try again later\n", key.String())
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
		os.Exit(1)
	}

	record, err := workflow.FinalizeMonth(ctx, db, logger, key, report, time.Now().UTC())
	if err != nil {
		if errors.Is(err, utils.ErrorMonthOutOfSync) {
			fmt.Fprintf(os.Stderr, "month %s still out of sync after corrections: %v\n", key.String(), err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "finalize failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("month %s closed: gross=%d payouts=%d revenue=%d users=%d\n",
		key.String(),
		record.TotalSubscriptionCents,
		record.CreatorPayoutsCents,
		record.PlatformRevenueCents,
		record.UserCount)
}
