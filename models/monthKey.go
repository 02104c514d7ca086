package models

import (
	"fmt"
	"time"
)

// MonthKey is a validated calendar month. The "YYYY-MM" wire form is parsed
// exactly once at the boundary; ordering and current-month checks are
// calendar arithmetic, never string comparison.
type MonthKey struct {
	Year  int
	Month time.Month
}

// ParseMonthKey accepts strictly "YYYY-MM".
func ParseMonthKey(s string) (MonthKey, error) {
	if len(s) != 7 {
		return MonthKey{}, fmt.Errorf("invalid month key %q: want YYYY-MM", s)
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return MonthKey{}, fmt.Errorf("invalid month key %q: want YYYY-MM", s)
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}, nil
}

func CurrentMonthKey(now time.Time) MonthKey {
	now = now.UTC()
	return MonthKey{Year: now.Year(), Month: now.Month()}
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

func (k MonthKey) IsZero() bool {
	return k.Year == 0 && k.Month == 0
}

func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

func (k MonthKey) Equal(o MonthKey) bool {
	return k.Year == o.Year && k.Month == o.Month
}

func (k MonthKey) Next() MonthKey {
	t := time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

func (k MonthKey) Prev() MonthKey {
	t := time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// IsCurrent reports whether k is the calendar month containing now.
func (k MonthKey) IsCurrent(now time.Time) bool {
	return k.Equal(CurrentMonthKey(now))
}
