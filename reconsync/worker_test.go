package reconsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bitbucket.org/storyfount/finance_backend/finance"
	"bitbucket.org/storyfount/finance_backend/models"
	"bitbucket.org/storyfount/finance_backend/money"
)

func monthKeyForTest(t *testing.T, s string) models.MonthKey {
	t.Helper()
	key, err := models.ParseMonthKey(s)
	if err != nil {
		t.Fatalf("ParseMonthKey(%q): %v", s, err)
	}
	return key
}

// fakeLedger mimics the idempotent ledger writes: every operation reports
// whether it actually changed anything, like the guarded UPDATEs do.
type fakeLedger struct {
	mu      sync.Mutex
	rows    map[string]fakeRow
	failOn  map[string]error
	applied int
	delay   time.Duration
}

type fakeRow struct {
	amount money.Cents
	active bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[string]fakeRow{}, failOn: map[string]error{}}
}

func (f *fakeLedger) CreateFromProcessor(ctx context.Context, customerId string, amountCents money.Cents) (bool, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied++
	if err := f.failOn[customerId]; err != nil {
		return false, err
	}
	row, ok := f.rows[customerId]
	if ok && row.active && row.amount == amountCents {
		return false, nil
	}
	f.rows[customerId] = fakeRow{amount: amountCents, active: true}
	return true, nil
}

func (f *fakeLedger) UpdateAmount(ctx context.Context, customerId string, amountCents money.Cents) (bool, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied++
	if err := f.failOn[customerId]; err != nil {
		return false, err
	}
	row, ok := f.rows[customerId]
	if !ok || row.amount == amountCents {
		return false, nil
	}
	row.amount = amountCents
	f.rows[customerId] = row
	return true, nil
}

func (f *fakeLedger) MarkCancelled(ctx context.Context, customerId string) (bool, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied++
	if err := f.failOn[customerId]; err != nil {
		return false, err
	}
	row, ok := f.rows[customerId]
	if !ok || !row.active {
		return false, nil
	}
	row.active = false
	f.rows[customerId] = row
	return true, nil
}

func (f *fakeLedger) ActiveAmountsByCustomerIds(ctx context.Context, customerIds []string) (map[string]money.Cents, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	amounts := make(map[string]money.Cents)
	for _, id := range customerIds {
		if row, ok := f.rows[id]; ok && row.active {
			amounts[id] = row.amount
		}
	}
	return amounts, nil
}

func testDiscrepancies() []finance.DiscrepancyDetail {
	return []finance.DiscrepancyDetail{
		{Type: finance.DiscrepancyMissingFirebase, CustomerId: "cus_new", ProcessorAmountCents: 700},
		{Type: finance.DiscrepancyAmountMismatch, CustomerId: "cus_drift", ProcessorAmountCents: 1000, LedgerAmountCents: 800},
		{Type: finance.DiscrepancyStaleFirebase, CustomerId: "cus_gone", LedgerAmountCents: 300},
	}
}

func seedLedgerFor(t *testing.T, f *fakeLedger) {
	t.Helper()
	f.rows["cus_drift"] = fakeRow{amount: 800, active: true}
	f.rows["cus_gone"] = fakeRow{amount: 300, active: true}
}

func TestApplySync_CorrectsEachClass(t *testing.T) {
	ledger := newFakeLedger()
	seedLedgerFor(t, ledger)

	result := ApplySync(context.Background(), nil, ledger, testDiscrepancies())

	if result.MissingRecordsCreated != 1 || result.AmountMismatchesFixed != 1 || result.StaleRecordsFixed != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}
	if row := ledger.rows["cus_new"]; !row.active || row.amount != 700 {
		t.Fatalf("missing record not seeded from processor: %+v", row)
	}
	if row := ledger.rows["cus_drift"]; row.amount != 1000 {
		t.Fatalf("amount not corrected: %+v", row)
	}
	if row := ledger.rows["cus_gone"]; row.active {
		t.Fatal("stale record should be cancelled, not active")
	}
}

// Running the same discrepancy set twice must leave the world unchanged
// and report zero effects the second time.
func TestApplySync_Idempotent(t *testing.T) {
	ledger := newFakeLedger()
	seedLedgerFor(t, ledger)
	discrepancies := testDiscrepancies()

	first := ApplySync(context.Background(), nil, ledger, discrepancies)
	if first.MissingRecordsCreated+first.AmountMismatchesFixed+first.StaleRecordsFixed != 3 {
		t.Fatalf("first run should fix all three: %+v", first)
	}

	second := ApplySync(context.Background(), nil, ledger, discrepancies)
	if second.MissingRecordsCreated != 0 || second.AmountMismatchesFixed != 0 || second.StaleRecordsFixed != 0 {
		t.Fatalf("second run must be zero-effect: %+v", second)
	}
	if len(second.Errors) != 0 {
		t.Fatalf("second run should carry no errors: %v", second.Errors)
	}
}

// One failing record must not take the batch down with it.
func TestApplySync_PartialFailureContinues(t *testing.T) {
	ledger := newFakeLedger()
	seedLedgerFor(t, ledger)
	ledger.failOn["cus_drift"] = errors.New("write conflict")

	result := ApplySync(context.Background(), nil, ledger, testDiscrepancies())

	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly 1 collected error, got %v", result.Errors)
	}
	if result.MissingRecordsCreated != 1 || result.StaleRecordsFixed != 1 {
		t.Fatalf("other records should still be corrected: %+v", result)
	}
	if result.AmountMismatchesFixed != 0 {
		t.Fatalf("failed record must not be counted as fixed: %+v", result)
	}
}

func TestApplySync_CancellationReturnsPartialResult(t *testing.T) {
	t.Setenv("SYNC_WORKER_COUNT", "1")
	ledger := newFakeLedger()
	ledger.delay = 20 * time.Millisecond

	var discrepancies []finance.DiscrepancyDetail
	for i := 0; i < 50; i++ {
		discrepancies = append(discrepancies, finance.DiscrepancyDetail{
			Type:                 finance.DiscrepancyMissingFirebase,
			CustomerId:           "cus_" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			ProcessorAmountCents: 100,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	result := ApplySync(ctx, nil, ledger, discrepancies)

	// Cancelled mid-batch: some corrections landed, the rest were never
	// issued, and the partial result is still a valid SyncResult.
	if result.MissingRecordsCreated == 0 {
		t.Fatal("in-flight corrections should have completed")
	}
	if result.MissingRecordsCreated >= len(discrepancies) {
		t.Fatal("cancellation should have stopped the batch early")
	}
	if result.Errors == nil {
		t.Fatal("errors slice must be non-nil even on cancellation")
	}
}

func TestApplySync_UnknownTypeIsARecordError(t *testing.T) {
	ledger := newFakeLedger()
	result := ApplySync(context.Background(), nil, ledger, []finance.DiscrepancyDetail{
		{Type: "mystery", CustomerId: "cus_x"},
	})
	if len(result.Errors) != 1 {
		t.Fatalf("unknown type should be collected as an error: %+v", result)
	}
}

func TestApplySync_EmptySet(t *testing.T) {
	result := ApplySync(context.Background(), nil, newFakeLedger(), nil)
	if result.StaleRecordsFixed != 0 || result.MissingRecordsCreated != 0 || result.AmountMismatchesFixed != 0 {
		t.Fatalf("empty set should be all zeros: %+v", result)
	}
	if result.Errors == nil || len(result.Errors) != 0 {
		t.Fatalf("errors must be an empty, non-nil slice: %#v", result.Errors)
	}
}

// After a clean corrective pass the batch re-read must find nothing left
// to disagree about.
func TestVerifyCorrections_CleanAfterSync(t *testing.T) {
	ledger := newFakeLedger()
	seedLedgerFor(t, ledger)
	discrepancies := testDiscrepancies()

	ApplySync(context.Background(), nil, ledger, discrepancies)

	unresolved, err := verifyCorrections(context.Background(), ledger, discrepancies)
	if err != nil {
		t.Fatalf("verifyCorrections: %v", err)
	}
	if len(unresolved) != 0 {
		t.Fatalf("expected clean verification, got unresolved %v", unresolved)
	}
}

// A correction that failed mid-pass must show up in the verification
// read-back.
func TestVerifyCorrections_ReportsUnconvergedCustomers(t *testing.T) {
	ledger := newFakeLedger()
	seedLedgerFor(t, ledger)
	ledger.failOn["cus_drift"] = errors.New("write conflict")
	discrepancies := testDiscrepancies()

	ApplySync(context.Background(), nil, ledger, discrepancies)

	unresolved, err := verifyCorrections(context.Background(), ledger, discrepancies)
	if err != nil {
		t.Fatalf("verifyCorrections: %v", err)
	}
	if len(unresolved) != 1 || unresolved[0] != "cus_drift" {
		t.Fatalf("expected [cus_drift] unresolved, got %v", unresolved)
	}
}

func TestVerifyCorrections_EmptySet(t *testing.T) {
	unresolved, err := verifyCorrections(context.Background(), newFakeLedger(), nil)
	if err != nil || unresolved != nil {
		t.Fatalf("empty set should verify trivially, got %v %v", unresolved, err)
	}
}

func TestMonthLock_SerializesSameMonth(t *testing.T) {
	key := monthKeyForTest(t, "2026-08")

	release, err := acquireMonthLock(context.Background(), key)
	if err != nil {
		t.Fatalf("first acquire should succeed: %v", err)
	}
	if _, err := acquireMonthLock(context.Background(), key); err == nil {
		t.Fatal("second acquire on the same month must fail while held")
	}

	// A different month is independent.
	other := monthKeyForTest(t, "2026-07")
	release2, err := acquireMonthLock(context.Background(), other)
	if err != nil {
		t.Fatalf("different month should lock independently: %v", err)
	}
	release2()

	release()
	release3, err := acquireMonthLock(context.Background(), key)
	if err != nil {
		t.Fatalf("acquire after release should succeed: %v", err)
	}
	release3()
}
