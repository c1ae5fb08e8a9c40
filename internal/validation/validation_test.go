package validation

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/timer"
	"github.com/region23/servicedesk/pkg/errors"
)

func TestValidateTimerID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{
			name:  "valid timer ID",
			input: "123",
			want:  123,
		},
		{
			name:  "surrounding spaces",
			input: " 7 ",
			want:  7,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "zero",
			input:   "0",
			wantErr: true,
		},
		{
			name:    "negative number",
			input:   "-5",
			wantErr: true,
		},
		{
			name:    "not a number",
			input:   "abc",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateTimerID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTimerID() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && !stderrors.Is(err, errors.ErrInvalidTimerID) {
				t.Errorf("ValidateTimerID() error = %v, want ErrInvalidTimerID", err)
			}
			if got != tt.want {
				t.Errorf("ValidateTimerID() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateTaskIDs(t *testing.T) {
	ids, err := ValidateTaskIDs([]string{"3", "1", "3", "2"})
	if err != nil {
		t.Fatalf("ValidateTaskIDs() error = %v", err)
	}
	want := []int64{3, 1, 2}
	if len(ids) != len(want) {
		t.Fatalf("ValidateTaskIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}

	if _, err := ValidateTaskIDs(nil); !stderrors.Is(err, errors.ErrInvalidTaskID) {
		t.Errorf("empty selection: error = %v", err)
	}
	if _, err := ValidateTaskIDs([]string{"1", "x"}); err == nil {
		t.Error("expected error for non-numeric ID")
	}
}

func TestValidateTimerType(t *testing.T) {
	if m, err := ValidateTimerType("backward"); err != nil || m != timer.ModeRemaining {
		t.Errorf("ValidateTimerType(backward) = %v, %v", m, err)
	}
	if _, err := ValidateTimerType("SIDEWAYS"); !stderrors.Is(err, errors.ErrInvalidTimerType) {
		t.Errorf("ValidateTimerType(SIDEWAYS) error = %v", err)
	}
}

func TestValidateTarget(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	tests := []struct {
		name   string
		target *time.Time
		want   error
	}{
		{"future", &future, nil},
		{"missing", nil, errors.ErrTargetRequired},
		{"past", &past, errors.ErrTargetInPast},
		{"exactly now", &now, errors.ErrTargetInPast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTarget(tt.target, now)
			if tt.want == nil && err != nil {
				t.Fatalf("ValidateTarget() error = %v", err)
			}
			if tt.want != nil && !stderrors.Is(err, tt.want) {
				t.Fatalf("ValidateTarget() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseDateTime(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)

	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"2024-03-01T10:30:00Z", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), false},
		{"2024-03-01T10:30:00+03:00", time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC), false},
		{"2024-03-01T10:30", time.Date(2024, 3, 1, 10, 30, 0, 0, loc), false},
		{"2024-03-01 10:30:15", time.Date(2024, 3, 1, 10, 30, 15, 0, loc), false},
		{"01.03.2024", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDateTime(tt.input, loc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDateTime() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseDateTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateDueDate(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)

	got, err := ValidateDueDate("", loc)
	if err != nil || got != nil {
		t.Errorf("empty due date = %v, %v; want nil, nil", got, err)
	}

	got, err = ValidateDueDate("2024-12-31", loc)
	if err != nil {
		t.Fatalf("ValidateDueDate() error = %v", err)
	}
	if want := time.Date(2024, 12, 31, 0, 0, 0, 0, loc); !got.Equal(want) {
		t.Errorf("ValidateDueDate() = %v, want %v", got, want)
	}

	if _, err := ValidateDueDate("2024-13-40", loc); !stderrors.Is(err, errors.ErrInvalidDate) {
		t.Errorf("invalid calendar date: error = %v", err)
	}
}

func TestValidateTitle(t *testing.T) {
	if got, err := ValidateTitle("  Заправить HP 85A  "); err != nil || got != "Заправить HP 85A" {
		t.Errorf("ValidateTitle() = %q, %v", got, err)
	}
	if _, err := ValidateTitle("   "); !stderrors.Is(err, errors.ErrEmptyTitle) {
		t.Errorf("blank title: error = %v", err)
	}

	long := make([]rune, MaxTitleLength+1)
	for i := range long {
		long[i] = 'я'
	}
	if _, err := ValidateTitle(string(long)); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("long title: error = %v", err)
	}
}

func TestValidateRecurrence(t *testing.T) {
	tests := []struct {
		input   string
		want    models.RecurrenceType
		wantErr bool
	}{
		{"", models.RecurrenceNone, false},
		{"none", models.RecurrenceNone, false},
		{"daily", models.RecurrenceDaily, false},
		{"WEEKDAYS", models.RecurrenceWeekdays, false},
		{"monthly", models.RecurrenceMonthly, false},
		{"HOURLY", "", true},
	}

	for _, tt := range tests {
		got, err := ValidateRecurrence(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRecurrence(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidateRecurrence(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValidateChatID(t *testing.T) {
	if err := ValidateChatID(0); err == nil {
		t.Error("expected error for zero chat ID")
	}
	if err := ValidateChatID(-100123); err != nil {
		t.Errorf("group chat ID rejected: %v", err)
	}
}
