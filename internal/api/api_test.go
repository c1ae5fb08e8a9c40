package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/timer"
)

func TestTime_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"rfc3339", `"2024-03-01T10:00:00Z"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), false},
		{"offset", `"2024-03-01T13:00:00+03:00"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), false},
		{"naive local", `"2024-03-01T10:00:00"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local), false},
		{"naive with fraction", `"2024-03-01T10:00:00.123456"`, time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.Local), false},
		{"garbage", `"yesterday"`, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Time
			err := json.Unmarshal([]byte(tt.input), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("Unmarshal() = %v, want %v", got.Time, tt.want)
			}
		})
	}
}

func TestControlResponse_PartialPayload(t *testing.T) {
	var resp ControlResponse
	body := `{"success": true, "timer": {"paused_duration": 50}}`
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatal(err)
	}

	if !resp.Success || resp.Timer == nil || resp.Timer.PausedDuration == nil || *resp.Timer.PausedDuration != 50 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if _, ok := resp.Timer.Snapshot(); ok {
		t.Error("partial payload must not produce a full snapshot")
	}
}

func TestNewTimer_RoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	target := start.Add(30 * time.Hour)
	m := &models.Timer{
		Snapshot: timer.Snapshot{
			ID:            5,
			Mode:          timer.ModeRemaining,
			Start:         start,
			Target:        &target,
			PausedSeconds: 120,
		},
		Label:     "Сдача отчета",
		CreatedAt: start,
		UpdatedAt: start,
	}

	view := NewTimer(m, start.Add(time.Hour))
	if view.CurrentDays != 1 || view.CurrentHours != 4 {
		t.Errorf("current days/hours = %d/%d, want 1/4", view.CurrentDays, view.CurrentHours)
	}

	data, err := json.Marshal(Event{Type: EventTimerUpdated, Timer: view.Payload()})
	if err != nil {
		t.Fatal(err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	snap, ok := ev.Timer.Snapshot()
	if !ok {
		t.Fatalf("Snapshot() not ok for %s", data)
	}
	if snap.ID != 5 || snap.Mode != timer.ModeRemaining || !snap.Start.Equal(start) ||
		snap.Target == nil || !snap.Target.Equal(target) || snap.PausedSeconds != 120 || snap.Paused {
		t.Errorf("round trip mismatch: %+v", snap)
	}
	if ev.Timer.Label != "Сдача отчета" {
		t.Errorf("label = %q", ev.Timer.Label)
	}
}
