package service

import (
	"testing"
	"time"

	"github.com/region23/servicedesk/internal/storage/models"
)

func TestNextDueDate(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	date := func(y int, m time.Month, d, h, min int) time.Time {
		return time.Date(y, m, d, h, min, 0, 0, loc)
	}
	ptr := func(t time.Time) *time.Time { return &t }

	// пятница, 15:20
	friday := date(2024, 3, 15, 15, 20)

	tests := []struct {
		name   string
		r      models.RecurrenceType
		due    *time.Time
		done   time.Time
		want   time.Time
		wantOK bool
	}{
		{"daily", models.RecurrenceDaily, nil, friday, date(2024, 3, 16, 0, 0), true},
		{"weekdays skips weekend", models.RecurrenceWeekdays, nil, friday, date(2024, 3, 18, 0, 0), true},
		{"weekdays midweek", models.RecurrenceWeekdays, nil, date(2024, 3, 12, 9, 0), date(2024, 3, 13, 0, 0), true},
		{"weekly", models.RecurrenceWeekly, nil, friday, date(2024, 3, 22, 0, 0), true},
		{"monthly keeps time", models.RecurrenceMonthly, ptr(date(2024, 3, 10, 9, 45)), friday, date(2024, 4, 10, 9, 45), true},
		{"monthly clamps to month end", models.RecurrenceMonthly, ptr(date(2024, 1, 31, 18, 0)), friday, date(2024, 2, 29, 18, 0), true},
		{"monthly over year end", models.RecurrenceMonthly, ptr(date(2024, 12, 31, 8, 0)), friday, date(2025, 1, 31, 8, 0), true},
		{"monthly without due date", models.RecurrenceMonthly, nil, date(2024, 1, 31, 10, 0), date(2024, 2, 29, 0, 0), true},
		{"yearly keeps time", models.RecurrenceYearly, ptr(date(2024, 6, 1, 12, 30)), friday, date(2025, 6, 1, 12, 30), true},
		{"yearly leap day", models.RecurrenceYearly, ptr(date(2024, 2, 29, 0, 0)), friday, date(2025, 2, 28, 0, 0), true},
		{"yearly without due date", models.RecurrenceYearly, nil, friday, date(2025, 3, 15, 0, 0), true},
		{"not recurring", models.RecurrenceNone, nil, friday, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextDueDate(tt.r, tt.due, tt.done)
			if ok != tt.wantOK {
				t.Fatalf("NextDueDate() ok = %v, want %v", ok, tt.wantOK)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextDueDate() = %v, want %v", got, tt.want)
			}
		})
	}
}
