package scheduler

import (
	"context"
	"time"

	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/timer"
)

// DeadlineScheduler планирует уведомления об истечении обратных таймеров
type DeadlineScheduler interface {
	// TimerChanged перепланирует уведомление по свежему снимку таймера
	TimerChanged(t *models.Timer)
	// TimerDeleted отменяет уведомление удаленного таймера
	TimerDeleted(id int64)
	Cancel(id int64)
	ReschedulePending(ctx context.Context, timers []*models.Timer) error
	Stop() error
}

// NotificationSender определяет интерфейс для отправки уведомлений
type NotificationSender interface {
	SendNotification(ctx context.Context, chatID int64, message string) error
	SendDeadline(ctx context.Context, t *models.Timer) error
}

// DeadlineAt возвращает момент, когда отображаемое оставшееся время таймера
// дойдет до нуля. Открытая пауза вычитается из остатка так же, как в
// timer.Compute, поэтому у таймера на паузе момент наступает раньше.
// ok=false для прямых таймеров и снимков без целевой даты.
func DeadlineAt(s timer.Snapshot) (time.Time, bool) {
	if s.Mode != timer.ModeRemaining || s.Target == nil {
		return time.Time{}, false
	}
	at := s.Target.Add(-time.Duration(s.PausedSeconds) * time.Second)
	if !s.Paused {
		return at, true
	}
	if s.PauseStart == nil {
		return time.Time{}, false
	}
	// target - now - paused - (now - pauseStart) = 0
	return s.PauseStart.Add(at.Sub(*s.PauseStart) / 2), true
}
