package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFee_RoundsHalfUp(t *testing.T) {
	ten := decimal.NewFromInt(10)
	cases := []struct {
		gross    Cents
		rate     decimal.Decimal
		expected Cents
	}{
		{1300, ten, 130},
		{0, ten, 0},
		{1, ten, 0},    // 0.1 rounds down
		{5, ten, 1},    // 0.5 rounds up
		{999, ten, 100}, // 99.9 rounds up
		{1000, decimal.NewFromFloat(7.5), 75},
		{1001, decimal.NewFromFloat(7.5), 75}, // 75.075 rounds down
	}
	for _, tc := range cases {
		if got := Fee(tc.gross, tc.rate); got != tc.expected {
			t.Fatalf("Fee(%d, %s) expected %d, got %d", tc.gross, tc.rate, tc.expected, got)
		}
	}
}

func TestRatePercent(t *testing.T) {
	cases := []struct {
		part     Cents
		total    Cents
		expected string
	}{
		{0, 0, "0"},
		{500, 0, "0"},
		{500, 1000, "50"},
		{1000, 1000, "100"},
		{1, 3, "33.33"},
		{2000, 1000, "100"}, // clamped
	}
	for _, tc := range cases {
		got := RatePercent(tc.part, tc.total)
		if got.String() != tc.expected {
			t.Fatalf("RatePercent(%d, %d) expected %s, got %s", tc.part, tc.total, tc.expected, got.String())
		}
	}
}

func TestFeePercent_Default(t *testing.T) {
	t.Setenv("PLATFORM_FEE_PERCENT", "")
	if got := FeePercent(); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected default 10, got %s", got)
	}
	t.Setenv("PLATFORM_FEE_PERCENT", "7")
	if got := FeePercent(); !got.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected 7, got %s", got)
	}
	t.Setenv("PLATFORM_FEE_PERCENT", "-3")
	if got := FeePercent(); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected fallback 10 on negative, got %s", got)
	}
}
