package service

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/region23/servicedesk/internal/storage"
	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/timer"
	"github.com/region23/servicedesk/internal/validation"
	"github.com/region23/servicedesk/pkg/errors"
	"github.com/region23/servicedesk/pkg/logger"
	"github.com/region23/servicedesk/pkg/metrics"
)

// TimerObserver получает уведомления об успешных изменениях таймеров
type TimerObserver interface {
	TimerChanged(t *models.Timer)
	TimerDeleted(id int64)
}

// CreateTimerParams параметры создания таймера
type CreateTimerParams struct {
	Label  string
	Type   string
	Target *time.Time
	Start  *time.Time
	UserID *int64
}

// UpdateTimerParams изменяемые поля таймера; nil означает "не менять"
type UpdateTimerParams struct {
	Label  *string
	Target *time.Time
}

// TimerService управляет таймерами и является источником истины для их состояния
type TimerService struct {
	repo      storage.TimerRepository
	clock     clockwork.Clock
	logger    *logger.Logger
	observers []TimerObserver

	// переходы читают и пишут запись целиком
	mu sync.Mutex
}

// NewTimerService создает сервис таймеров
func NewTimerService(repo storage.TimerRepository, clock clockwork.Clock, log *logger.Logger, observers ...TimerObserver) *TimerService {
	return &TimerService{
		repo:      repo,
		clock:     clock,
		logger:    log,
		observers: observers,
	}
}

// Subscribe добавляет наблюдателя
func (s *TimerService) Subscribe(o TimerObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Now возвращает текущее время часов сервиса
func (s *TimerService) Now() time.Time {
	return s.clock.Now()
}

// Display рассчитывает отображение таймера на текущий момент
func (s *TimerService) Display(t *models.Timer) (timer.Display, bool) {
	return timer.Compute(t.Snapshot, s.clock.Now())
}

// Create создает таймер
func (s *TimerService) Create(ctx context.Context, p CreateTimerParams) (*models.Timer, error) {
	mode, err := validation.ValidateTimerType(p.Type)
	if err != nil {
		return nil, err
	}
	label, err := validation.ValidateLabel(p.Label)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	t := &models.Timer{
		Snapshot: timer.Snapshot{
			Mode:  mode,
			Start: now,
		},
		Label:           label,
		CreatedByUserID: p.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if p.Start != nil {
		t.Start = *p.Start
	}
	if mode == timer.ModeRemaining {
		if err := validation.ValidateTarget(p.Target, now); err != nil {
			return nil, err
		}
		target := *p.Target
		t.Target = &target
	}

	if err := s.repo.CreateTimer(ctx, t); err != nil {
		metrics.RecordTimerAction("create", "error")
		return nil, errors.ErrDatabase.WithError(err)
	}

	metrics.RecordTimerAction("create", "success")
	s.logger.Info("Timer created",
		logger.Int64("timer_id", t.ID),
		logger.String("timer_type", string(t.Mode)),
		logger.String("label", t.Label),
	)
	s.refreshGauge(ctx)
	s.notifyChanged(t)

	return t, nil
}

// Get получает таймер по ID
func (s *TimerService) Get(ctx context.Context, id int64) (*models.Timer, error) {
	return s.repo.GetTimer(ctx, id)
}

// List возвращает все таймеры, новые первыми
func (s *TimerService) List(ctx context.Context) ([]*models.Timer, error) {
	return s.repo.ListTimers(ctx)
}

// Update меняет название и целевую дату таймера
func (s *TimerService) Update(ctx context.Context, id int64, p UpdateTimerParams) (*models.Timer, error) {
	return s.apply(ctx, id, "update", func(t *models.Timer, now time.Time) error {
		if p.Label != nil {
			label, err := validation.ValidateLabel(*p.Label)
			if err != nil {
				return err
			}
			t.Label = label
		}
		if p.Target != nil {
			if t.Mode != timer.ModeRemaining {
				return errors.Invalid("целевая дата задается только для обратного таймера")
			}
			if err := validation.ValidateTarget(p.Target, now); err != nil {
				return err
			}
			target := *p.Target
			t.Target = &target
		}
		return nil
	})
}

// Pause ставит таймер на паузу
func (s *TimerService) Pause(ctx context.Context, id int64) (*models.Timer, error) {
	return s.apply(ctx, id, "pause", func(t *models.Timer, now time.Time) error {
		return t.Pause(now)
	})
}

// Resume снимает таймер с паузы, добавляя закрытый интервал к накопленному времени
func (s *TimerService) Resume(ctx context.Context, id int64) (*models.Timer, error) {
	return s.apply(ctx, id, "resume", func(t *models.Timer, now time.Time) error {
		return t.Resume(now)
	})
}

// Reset перезапускает отсчет таймера
func (s *TimerService) Reset(ctx context.Context, id int64) (*models.Timer, error) {
	return s.apply(ctx, id, "reset", func(t *models.Timer, now time.Time) error {
		t.Reset(now)
		return nil
	})
}

// Delete удаляет таймер
func (s *TimerService) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	err := s.repo.DeleteTimer(ctx, id)
	s.mu.Unlock()

	if err != nil {
		metrics.RecordTimerAction("delete", "error")
		s.logger.Warn("Failed to delete timer", logger.Int64("timer_id", id), logger.Error(err))
		return err
	}

	metrics.RecordTimerAction("delete", "success")
	s.logger.Info("Timer deleted", logger.Int64("timer_id", id))
	s.refreshGauge(ctx)
	for _, o := range s.snapshotObservers() {
		o.TimerDeleted(id)
	}

	return nil
}

// apply выполняет переход над свежей копией записи и сохраняет результат
func (s *TimerService) apply(ctx context.Context, id int64, action string, fn func(t *models.Timer, now time.Time) error) (*models.Timer, error) {
	s.mu.Lock()
	t, err := s.transition(ctx, id, fn)
	s.mu.Unlock()

	if err != nil {
		metrics.RecordTimerAction(action, "error")
		s.logger.Warn("Timer action failed",
			logger.Int64("timer_id", id),
			logger.String("action", action),
			logger.Error(err),
		)
		return nil, err
	}

	metrics.RecordTimerAction(action, "success")
	s.logger.Info("Timer updated",
		logger.Int64("timer_id", id),
		logger.String("action", action),
		logger.Bool("paused", t.Paused),
		logger.Int64("paused_duration", t.PausedSeconds),
	)
	s.notifyChanged(t)

	return t, nil
}

func (s *TimerService) transition(ctx context.Context, id int64, fn func(t *models.Timer, now time.Time) error) (*models.Timer, error) {
	t, err := s.repo.GetTimer(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := fn(t, now); err != nil {
		return nil, err
	}
	t.UpdatedAt = now

	if err := s.repo.UpdateTimer(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TimerService) snapshotObservers() []TimerObserver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TimerObserver(nil), s.observers...)
}

func (s *TimerService) notifyChanged(t *models.Timer) {
	for _, o := range s.snapshotObservers() {
		o.TimerChanged(t)
	}
}

func (s *TimerService) refreshGauge(ctx context.Context) {
	count, err := s.repo.CountTimers(ctx)
	if err != nil {
		s.logger.Warn("Failed to count timers", logger.Error(err))
		return
	}
	metrics.SetTimersTotal(float64(count))
}
