package workflow

import (
	"testing"

	"bitbucket.org/storyfount/finance_backend/money"
)

// A recompute must treat matured money as spoken for: pending is only the
// remainder of the revised payout, never the whole of it.
func TestPendingEarnings_PreservesMaturedMoney(t *testing.T) {
	cases := []struct {
		name      string
		netPayout money.Cents
		available money.Cents
		want      money.Cents
	}{
		{"nothing matured yet", 1000, 0, 1000},
		{"partially matured", 1000, 400, 600},
		{"fully matured", 1000, 1000, 0},
		{"payout revised below matured", 1000, 1200, 0},
		{"no payout", 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pendingEarnings(tc.netPayout, tc.available); got != tc.want {
				t.Fatalf("pendingEarnings(%d, %d) = %d, want %d", tc.netPayout, tc.available, got, tc.want)
			}
		})
	}
}
