package finance

import (
	"testing"

	"bitbucket.org/storyfount/finance_backend/money"
)

func cents(v int64) money.Cents { return money.Cents(v) }

func TestCheckSolvency(t *testing.T) {
	cases := []struct {
		name       string
		balance    ProcessorBalance
		owed       int64
		sufficient bool
		revenue    int64
	}{
		{"pending covers the gap", ProcessorBalance{AvailableCents: 2000, PendingCents: 3000}, 4000, true, 1000},
		{"exactly covered", ProcessorBalance{AvailableCents: 2000, PendingCents: 2000}, 4000, true, 0},
		{"short", ProcessorBalance{AvailableCents: 1000, PendingCents: 500}, 4000, false, -2500},
		{"nothing owed", ProcessorBalance{AvailableCents: 100, PendingCents: 0}, 0, true, 100},
		{"all zero", ProcessorBalance{}, 0, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CheckSolvency(tc.balance, cents(tc.owed))
			if got.HasSufficientFunds != tc.sufficient {
				t.Fatalf("hasSufficientFunds = %v, want %v", got.HasSufficientFunds, tc.sufficient)
			}
			if got.PlatformRevenueCents != cents(tc.revenue) {
				t.Fatalf("platformRevenueCents = %d, want %d", got.PlatformRevenueCents, tc.revenue)
			}
			if got.TotalOwedToWritersCents != cents(tc.owed) {
				t.Fatalf("owed echoed wrong: %d", got.TotalOwedToWritersCents)
			}
		})
	}
}
