package engine

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/region23/servicedesk/internal/testutils"
	"github.com/region23/servicedesk/internal/timer"
)

func TestFormatLine(t *testing.T) {
	now := testutils.Epoch
	pauseStart := now

	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{
			name: "elapsed",
			rec:  Record{Snapshot: elapsedRecord(1, now.Add(-26*time.Hour)).Snapshot, Label: "Ремонт"},
			want: "#1 Ремонт | Прошло: 1 д. 2 ч.",
		},
		{
			name: "remaining urgent",
			rec:  remainingRecord(2, now, now.Add(5*time.Hour)),
			want: "#2 | Осталось: 0 д. 5 ч. [срочно]",
		},
		{
			name: "paused",
			rec: Record{Snapshot: timer.Snapshot{
				ID: 3, Mode: timer.ModeElapsed, Start: now.Add(-time.Hour), Paused: true, PauseStart: &pauseStart,
			}},
			want: "#3 | Прошло: 0 д. 1 ч. [пауза]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := timer.Compute(tt.rec.Snapshot, now)
			if !ok {
				t.Fatal("Compute() not ok")
			}
			if got := FormatLine(tt.rec, d); got != tt.want {
				t.Errorf("FormatLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextRenderer_Flush(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf, false)
	now := testutils.Epoch

	reg := NewRegistry(clockworkAt(now), r, testutils.SetupTestLogger())
	reg.Initialize([]Record{elapsedRecord(2, now), elapsedRecord(1, now.Add(-time.Hour))})

	out := buf.String()
	if strings.Index(out, "#1") > strings.Index(out, "#2") || strings.Count(out, "\n") != 2 {
		t.Errorf("board = %q", out)
	}

	buf.Reset()
	reg.Tick()
	if buf.Len() != 0 {
		t.Errorf("unchanged board was written again: %q", buf.String())
	}

	reg.Remove(1)
	reg.Remove(2)
	if got := r.Lines(); len(got) != 0 {
		t.Errorf("Lines() = %v", got)
	}
	if !strings.HasSuffix(buf.String(), "Нет активных таймеров\n") {
		t.Errorf("empty board = %q", buf.String())
	}
}

func TestTextRenderer_RemoveLastRedraws(t *testing.T) {
	var buf bytes.Buffer
	now := testutils.Epoch
	clock := clockwork.NewFakeClockAt(now)

	reg := NewRegistry(clock, NewTextRenderer(&buf, false), testutils.SetupTestLogger())
	reg.Initialize([]Record{{Snapshot: elapsedRecord(7, now.Add(-time.Hour)).Snapshot, Label: "printer"}})
	reg.StartTicking()
	if !strings.Contains(buf.String(), "#7 printer") {
		t.Fatalf("board = %q", buf.String())
	}

	buf.Reset()
	reg.Remove(7)
	clock.Advance(5 * time.Second)

	if reg.Ticking() {
		t.Error("ticking after last record removed")
	}
	if got := buf.String(); got != "Нет активных таймеров\n" {
		t.Errorf("board after remove = %q", got)
	}
}
