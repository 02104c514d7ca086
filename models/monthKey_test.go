package models

import (
	"testing"
	"time"
)

func TestParseMonthKey(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
		want    string
	}{
		{"2026-08", false, "2026-08"},
		{"2026-01", false, "2026-01"},
		{"2026-13", true, ""},
		{"2026-00", true, ""},
		{"2026-8", true, ""},
		{"202608", true, ""},
		{"2026/08", true, ""},
		{"", true, ""},
		{"abcd-ef", true, ""},
	}
	for _, tc := range cases {
		got, err := ParseMonthKey(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseMonthKey(%q) expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseMonthKey(%q) unexpected error: %v", tc.in, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseMonthKey(%q) expected %s, got %s", tc.in, tc.want, got.String())
		}
	}
}

func TestMonthKey_CalendarArithmetic(t *testing.T) {
	k := MonthKey{Year: 2026, Month: time.December}
	if next := k.Next(); next.String() != "2027-01" {
		t.Fatalf("Next of 2026-12 expected 2027-01, got %s", next)
	}
	j := MonthKey{Year: 2026, Month: time.January}
	if prev := j.Prev(); prev.String() != "2025-12" {
		t.Fatalf("Prev of 2026-01 expected 2025-12, got %s", prev)
	}
	if !j.Before(k) {
		t.Fatal("2026-01 should be before 2026-12")
	}
	if k.Before(j) {
		t.Fatal("2026-12 should not be before 2026-01")
	}
}

func TestMonthKey_IsCurrent(t *testing.T) {
	now := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	if !(MonthKey{Year: 2026, Month: time.August}).IsCurrent(now) {
		t.Fatal("2026-08 should be current")
	}
	if (MonthKey{Year: 2026, Month: time.July}).IsCurrent(now) {
		t.Fatal("2026-07 should not be current")
	}
}
