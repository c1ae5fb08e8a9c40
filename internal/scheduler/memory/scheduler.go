package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/region23/servicedesk/internal/scheduler"
	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/pkg/logger"
	"github.com/region23/servicedesk/pkg/metrics"
)

var _ scheduler.DeadlineScheduler = (*MemoryScheduler)(nil)

// pending запланированное уведомление и снимок таймера на момент планирования
type pending struct {
	timer models.Timer
	fire  clockwork.Timer
}

// MemoryScheduler реализует планировщик уведомлений об истечении в памяти.
// Состояние не переживает рестарт, при старте его восстанавливает ReschedulePending.
type MemoryScheduler struct {
	timers   map[int64]*pending
	mu       sync.Mutex
	sender   scheduler.NotificationSender
	clock    clockwork.Clock
	logger   *logger.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	stopped  bool
	stopOnce sync.Once
}

// NewMemoryScheduler создает новый планировщик в памяти
func NewMemoryScheduler(sender scheduler.NotificationSender, clock clockwork.Clock, log *logger.Logger) *MemoryScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &MemoryScheduler{
		timers: make(map[int64]*pending),
		sender: sender,
		clock:  clock,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// TimerChanged перепланирует уведомление по новому снимку таймера
func (s *MemoryScheduler) TimerChanged(t *models.Timer) {
	if err := s.schedule(t); err != nil {
		s.logger.Debug("Deadline not scheduled", logger.Int64("timer_id", t.ID), logger.Error(err))
	}
}

// TimerDeleted отменяет уведомление удаленного таймера
func (s *MemoryScheduler) TimerDeleted(id int64) {
	s.Cancel(id)
}

func (s *MemoryScheduler) schedule(t *models.Timer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler is stopped")
	}

	s.cancelLocked(t.ID)

	deadline, ok := scheduler.DeadlineAt(t.Snapshot)
	if !ok {
		return nil
	}

	// Уже истекший таймер не уведомляем повторно
	delay := deadline.Sub(s.clock.Now())
	if delay <= 0 {
		return nil
	}

	p := &pending{timer: *t}
	p.fire = s.clock.AfterFunc(delay, func() {
		s.handleNotification(p)
	})
	s.timers[t.ID] = p
	metrics.ScheduledDeadlines.Set(float64(len(s.timers)))

	s.logger.Debug("Deadline scheduled",
		logger.Int64("timer_id", t.ID),
		logger.Duration("in", delay),
	)
	return nil
}

// Cancel отменяет запланированное уведомление
func (s *MemoryScheduler) Cancel(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(id)
}

func (s *MemoryScheduler) cancelLocked(id int64) {
	if p, exists := s.timers[id]; exists {
		p.fire.Stop()
		delete(s.timers, id)
		metrics.ScheduledDeadlines.Set(float64(len(s.timers)))
	}
}

// ReschedulePending сбрасывает все уведомления и планирует их заново по списку таймеров
func (s *MemoryScheduler) ReschedulePending(ctx context.Context, timers []*models.Timer) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is stopped")
	}
	for id := range s.timers {
		s.cancelLocked(id)
	}
	s.mu.Unlock()

	for _, t := range timers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.schedule(t); err != nil {
			return err
		}
	}

	s.logger.Info("Deadlines rescheduled", logger.Int("scheduled", s.ActiveCount()))
	return nil
}

// Stop останавливает планировщик
func (s *MemoryScheduler) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.stopped = true

		for id := range s.timers {
			s.cancelLocked(id)
		}

		s.cancel()
	})

	return nil
}

// handleNotification обрабатывает отправку уведомления
func (s *MemoryScheduler) handleNotification(p *pending) {
	t := &p.timer

	s.mu.Lock()
	// уведомление могли перепланировать, пока срабатывал старый таймер
	if s.stopped || s.timers[t.ID] != p {
		s.mu.Unlock()
		return
	}
	delete(s.timers, t.ID)
	metrics.ScheduledDeadlines.Set(float64(len(s.timers)))
	s.mu.Unlock()

	err := s.sender.SendDeadline(s.ctx, t)
	metrics.RecordDeadlineNotification(metrics.Status(err))
	if err != nil {
		s.logger.Error("Failed to send deadline notification",
			logger.Int64("timer_id", t.ID),
			logger.Error(err),
		)
		return
	}

	s.logger.Info("Deadline notification sent", logger.Int64("timer_id", t.ID))
}

// ActiveCount возвращает количество запланированных уведомлений
func (s *MemoryScheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}
