package domain

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestRevenue(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		ratePct int64
		want    string
	}{
		{"round result", 100000, 10, "10000"},
		{"fractional result", 33333, 3, "999.99"},
		{"one percent", 101, 1, "1.01"},
		{"zero rate", 100000, 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Revenue(tt.amount, tt.ratePct)
			if got.String() != tt.want {
				t.Errorf("Revenue(%d, %d) = %s, want %s", tt.amount, tt.ratePct, got, tt.want)
			}
		})
	}
}

func TestMonthKey(t *testing.T) {
	d := civil.Date{Year: 2020, Month: time.December, Day: 31}
	if got := MonthKey(d); got != "2020-12" {
		t.Errorf("MonthKey = %q, want 2020-12", got)
	}
	d = civil.Date{Year: 2020, Month: time.January, Day: 1}
	if got := MonthKey(d); got != "2020-01" {
		t.Errorf("MonthKey = %q, want 2020-01", got)
	}
}

func TestWeekdayName(t *testing.T) {
	d := civil.Date{Year: 2020, Month: time.January, Day: 15}
	if got := WeekdayName(d); got != "Wednesday" {
		t.Errorf("WeekdayName = %q, want Wednesday", got)
	}
}

func TestDuplicateKeyError(t *testing.T) {
	err := &DuplicateKeyError{
		Table: "commission",
		Field: "merchant_id",
		Keys:  []int64{9, 5, 7},
	}
	want := "duplicate merchant_id in commission table: [5 7 9]"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	// The message sorts a copy; the original order is preserved.
	if err.Keys[0] != 9 {
		t.Errorf("Keys mutated: %v", err.Keys)
	}
}
