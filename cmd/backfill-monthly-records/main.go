package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/storyfount/finance_backend/config"
	"bitbucket.org/storyfount/finance_backend/models"
	"bitbucket.org/storyfount/finance_backend/workflow"
)

// Backfill job: recomputes monthly financial records over a range of
// months from whatever the ledger currently holds. Processed months are
// skipped (their published totals are immutable); pending/in_progress
// months are recomputed in place.
func main() {
	fromFlag := flag.String("from", "", "Start month (YYYY-MM), required.")
	toFlag := flag.String("to", "", "Optional: end month (YYYY-MM), inclusive. Defaults to the current month.")
	flag.Parse()

	if strings.TrimSpace(*fromFlag) == "" {
		fmt.Fprintln(os.Stderr, "usage: backfill-monthly-records -from YYYY-MM [-to YYYY-MM]")
		os.Exit(1)
	}
	from, err := models.ParseMonthKey(strings.TrimSpace(*fromFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -from: %v\n", err)
		os.Exit(1)
	}
	to := models.CurrentMonthKey(time.Now().UTC())
	if strings.TrimSpace(*toFlag) != "" {
		to, err = models.ParseMonthKey(strings.TrimSpace(*toFlag))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -to: %v\n", err)
			os.Exit(1)
		}
	}
	if to.Before(from) {
		fmt.Fprintln(os.Stderr, "-to must not be before -from")
		os.Exit(1)
	}

	ctx := context.Background()
	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	var recomputed, skipped int
	for key := from; !to.Before(key); key = key.Next() {
		record, err := workflow.RecomputeMonthlyRecord(ctx, db, logger, key, time.Now().UTC())
		if err != nil {
			if record != nil && record.Status == models.MonthStatusProcessed {
				fmt.Printf("%s already processed; skipped\n", key.String())
				skipped++
				continue
			}
			fmt.Fprintf(os.Stderr, "%s: recompute failed: %v\n", key.String(), err)
			os.Exit(1)
		}
		fmt.Printf("%s recomputed: gross=%d payouts=%d revenue=%d users=%d\n",
			key.String(),
			record.TotalSubscriptionCents,
			record.CreatorPayoutsCents,
			record.PlatformRevenueCents,
			record.UserCount)
		recomputed++
	}
	fmt.Printf("done: %d recomputed, %d skipped\n", recomputed, skipped)
}
