package memory

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/timer"
	"github.com/region23/servicedesk/pkg/logger"
)

var epoch = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeSender struct {
	deadlines chan *models.Timer
}

func newFakeSender() *fakeSender {
	return &fakeSender{deadlines: make(chan *models.Timer, 16)}
}

func (f *fakeSender) SendNotification(ctx context.Context, chatID int64, message string) error {
	return nil
}

func (f *fakeSender) SendDeadline(ctx context.Context, t *models.Timer) error {
	f.deadlines <- t
	return nil
}

func (f *fakeSender) next(t *testing.T) *models.Timer {
	t.Helper()
	select {
	case tm := <-f.deadlines:
		return tm
	case <-time.After(2 * time.Second):
		t.Fatal("no deadline notification")
		return nil
	}
}

func (f *fakeSender) none(t *testing.T) {
	t.Helper()
	select {
	case tm := <-f.deadlines:
		t.Fatalf("unexpected notification for timer %d", tm.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func remaining(id int64, target time.Time) *models.Timer {
	return &models.Timer{
		Snapshot: timer.Snapshot{
			ID:     id,
			Mode:   timer.ModeRemaining,
			Start:  epoch.Add(-time.Hour),
			Target: &target,
		},
		Label: "SLA",
	}
}

func setup(t *testing.T) (*MemoryScheduler, *clockwork.FakeClock, *fakeSender) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	sender := newFakeSender()
	s := NewMemoryScheduler(sender, clock, logger.Nop())
	t.Cleanup(func() { s.Stop() })
	return s, clock, sender
}

func TestDeadlineFires(t *testing.T) {
	s, clock, sender := setup(t)

	s.TimerChanged(remaining(1, epoch.Add(10*time.Minute)))
	if s.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", s.ActiveCount())
	}

	clock.Advance(9 * time.Minute)
	sender.none(t)

	clock.Advance(time.Minute)
	if got := sender.next(t); got.ID != 1 || got.Label != "SLA" {
		t.Errorf("notified %+v", got)
	}
	if s.ActiveCount() != 0 {
		t.Errorf("ActiveCount() after fire = %d", s.ActiveCount())
	}
}

func TestPausedSecondsBringDeadlineForward(t *testing.T) {
	s, clock, sender := setup(t)

	tm := remaining(2, epoch.Add(10*time.Minute))
	tm.PausedSeconds = 120
	s.TimerChanged(tm)

	clock.Advance(8 * time.Minute)
	if got := sender.next(t); got.ID != 2 {
		t.Errorf("notified timer %d", got.ID)
	}
}

func TestRescheduleReplacesPrevious(t *testing.T) {
	s, clock, sender := setup(t)

	s.TimerChanged(remaining(3, epoch.Add(5*time.Minute)))
	s.TimerChanged(remaining(3, epoch.Add(20*time.Minute)))
	if s.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", s.ActiveCount())
	}

	clock.Advance(10 * time.Minute)
	sender.none(t)

	clock.Advance(10 * time.Minute)
	sender.next(t)
}

func TestCancelCases(t *testing.T) {
	tests := []struct {
		name   string
		change func(s *MemoryScheduler)
	}{
		{"deleted", func(s *MemoryScheduler) { s.TimerDeleted(4) }},
		{"cancelled", func(s *MemoryScheduler) { s.Cancel(4) }},
		{"became elapsed", func(s *MemoryScheduler) {
			s.TimerChanged(&models.Timer{Snapshot: timer.Snapshot{ID: 4, Mode: timer.ModeElapsed, Start: epoch}})
		}},
		{"stopped", func(s *MemoryScheduler) { s.Stop() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clock, sender := setup(t)
			s.TimerChanged(remaining(4, epoch.Add(time.Minute)))
			tt.change(s)

			clock.Advance(2 * time.Minute)
			sender.none(t)
			if s.ActiveCount() != 0 {
				t.Errorf("ActiveCount() = %d", s.ActiveCount())
			}
		})
	}
}

func TestReschedulePending(t *testing.T) {
	s, clock, sender := setup(t)
	ctx := context.Background()

	s.TimerChanged(remaining(9, epoch.Add(time.Minute)))

	timers := []*models.Timer{
		remaining(10, epoch.Add(30*time.Minute)),
		remaining(11, epoch.Add(-time.Minute)), // уже истек
		{Snapshot: timer.Snapshot{ID: 12, Mode: timer.ModeElapsed, Start: epoch}},
	}
	if err := s.ReschedulePending(ctx, timers); err != nil {
		t.Fatalf("ReschedulePending() error = %v", err)
	}
	if s.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", s.ActiveCount())
	}

	clock.Advance(30 * time.Minute)
	if got := sender.next(t); got.ID != 10 {
		t.Errorf("notified timer %d, want 10", got.ID)
	}
	sender.none(t)

	s.Stop()
	if err := s.ReschedulePending(ctx, timers); err == nil {
		t.Error("ReschedulePending() on stopped scheduler must fail")
	}
}

func TestDeadlineAtPaused(t *testing.T) {
	pauseStart := epoch
	tm := remaining(5, epoch.Add(10*time.Minute))
	tm.Paused = true
	tm.PauseStart = &pauseStart

	s, clock, sender := setup(t)
	s.TimerChanged(tm)

	// открытая пауза вычитается из остатка, ноль наступает через 5 минут
	clock.Advance(5 * time.Minute)
	sender.next(t)

	if d, ok := timer.Compute(tm.Snapshot, clock.Now()); !ok || d.Seconds != 0 {
		t.Errorf("display at deadline = %+v", d)
	}
}
