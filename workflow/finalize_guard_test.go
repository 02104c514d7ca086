package workflow

import (
	"errors"
	"strings"
	"testing"

	"bitbucket.org/storyfount/finance_backend/finance"
	"bitbucket.org/storyfount/finance_backend/models"
	"bitbucket.org/storyfount/finance_backend/utils"
)

// NOTE: These tests are intentionally DB-free. They pin the finalization
// gate semantics; the thin gorm transition around the gate is covered by
// integration environments that can run MySQL.

func TestCheckFinalizable_OutOfSyncIsRejected(t *testing.T) {
	record := &models.MonthlyFinancialRecord{MonthKey: "2026-07", Status: models.MonthStatusInProgress}
	report := finance.ReconciliationReport{
		DiscrepancyCents: 500,
		IsInSync:         false,
		Discrepancies: []finance.DiscrepancyDetail{
			{Type: finance.DiscrepancyAmountMismatch, CustomerId: "cus_1"},
			{Type: finance.DiscrepancyStaleFirebase, CustomerId: "cus_2"},
		},
	}

	err := CheckFinalizable(record, report)
	if !errors.Is(err, utils.ErrorMonthOutOfSync) {
		t.Fatalf("expected ErrorMonthOutOfSync, got %v", err)
	}
	// The record itself must be left alone by a rejected gate.
	if record.Status != models.MonthStatusInProgress {
		t.Fatalf("gate must not change status, got %s", record.Status)
	}
}

func TestCheckFinalizable_ProcessedIsNoOp(t *testing.T) {
	record := &models.MonthlyFinancialRecord{MonthKey: "2026-06", Status: models.MonthStatusProcessed}
	err := CheckFinalizable(record, finance.ReconciliationReport{IsInSync: true})
	if !errors.Is(err, utils.ErrorMonthAlreadyProcessed) {
		t.Fatalf("expected ErrorMonthAlreadyProcessed, got %v", err)
	}
}

func TestCheckFinalizable_InSyncPasses(t *testing.T) {
	for _, status := range []models.MonthStatus{models.MonthStatusPending, models.MonthStatusInProgress} {
		record := &models.MonthlyFinancialRecord{MonthKey: "2026-07", Status: status}
		if err := CheckFinalizable(record, finance.ReconciliationReport{IsInSync: true}); err != nil {
			t.Fatalf("in-sync %s month should finalize, got %v", status, err)
		}
	}
}

func TestCheckFinalizable_ErrorNamesTheBreakdown(t *testing.T) {
	record := &models.MonthlyFinancialRecord{MonthKey: "2026-07", Status: models.MonthStatusInProgress}
	report := finance.ReconciliationReport{
		DiscrepancyCents: -300,
		Discrepancies: []finance.DiscrepancyDetail{
			{Type: finance.DiscrepancyMissingFirebase},
			{Type: finance.DiscrepancyMissingFirebase},
			{Type: finance.DiscrepancyStaleFirebase},
		},
	}
	err := CheckFinalizable(record, report)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"3 discrepancies", "missing=2", "stale=1", "-300"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q should contain %q", msg, want)
		}
	}
}
