package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/region23/servicedesk/internal/api"
	"github.com/region23/servicedesk/internal/timer"
	"github.com/region23/servicedesk/pkg/logger"
)

// Action управляющее действие над таймером
type Action string

const (
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionReset  Action = "reset"
	ActionDelete Action = "delete"
)

// NeedsConfirmation сообщает, требует ли действие подтверждения пользователя
func (a Action) NeedsConfirmation() bool {
	return a == ActionReset || a == ActionDelete
}

// GenericFailureMessage показывается, когда сервер не прислал текст ошибки
const GenericFailureMessage = "Не удалось выполнить действие с таймером. Попробуйте еще раз."

var (
	// ErrDeclined пользователь не подтвердил действие
	ErrDeclined = errors.New("action declined by user")
	// ErrUnknownTimer записи нет в реестре
	ErrUnknownTimer = errors.New("timer is not registered")
	// ErrInvalidTransition действие недопустимо в текущем состоянии
	ErrInvalidTransition = errors.New("action not allowed in current state")
	// ErrMalformedResponse в ответе сервера нет нужных полей
	ErrMalformedResponse = errors.New("malformed server response")
)

// Confirmer запрашивает подтверждение у пользователя
type Confirmer interface {
	Confirm(ctx context.Context, action Action, rec Record) bool
}

// Alerter показывает пользователю блокирующее сообщение об ошибке
type Alerter interface {
	Alert(message string)
}

// Client вызывает управляющие эндпоинты сервера
type Client interface {
	Pause(ctx context.Context, id int64) (*api.ControlResponse, error)
	Resume(ctx context.Context, id int64) (*api.ControlResponse, error)
	Reset(ctx context.Context, id int64) (*api.ControlResponse, error)
	Delete(ctx context.Context, id int64) (*api.ControlResponse, error)
}

// Dispatcher переводит намерения пользователя в вызовы сервера и
// согласует запись реестра с ответом
type Dispatcher struct {
	registry  *Registry
	client    Client
	confirmer Confirmer
	alerter   Alerter
	logger    *logger.Logger
}

// NewDispatcher создает диспетчер действий
func NewDispatcher(registry *Registry, client Client, confirmer Confirmer, alerter Alerter, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		client:    client,
		confirmer: confirmer,
		alerter:   alerter,
		logger:    log,
	}
}

// Do выполняет действие по имени
func (d *Dispatcher) Do(ctx context.Context, action Action, id int64) error {
	switch action {
	case ActionPause:
		return d.Pause(ctx, id)
	case ActionResume:
		return d.Resume(ctx, id)
	case ActionReset:
		return d.Reset(ctx, id)
	case ActionDelete:
		return d.Delete(ctx, id)
	}
	return fmt.Errorf("unknown action %q", action)
}

// Pause ставит таймер на паузу с оптимистичной отметкой; при ошибке отметка откатывается
func (d *Dispatcher) Pause(ctx context.Context, id int64) error {
	rec, err := d.lookup(id)
	if err != nil {
		return err
	}
	if rec.State() != timer.StateRunning {
		return d.reject(ActionPause, id)
	}

	stamp := d.registry.clock.Now()
	d.registry.update(id, func(s *timer.Snapshot) {
		s.Paused = true
		s.PauseStart = &stamp
	})

	if _, err := d.call(ctx, ActionPause, id, d.client.Pause); err != nil {
		d.registry.update(id, func(s *timer.Snapshot) {
			if s.PauseStart != nil && s.PauseStart.Equal(stamp) {
				s.Paused = rec.Paused
				s.PauseStart = rec.PauseStart
			}
		})
		d.registry.Render(id)
		return err
	}

	d.registry.Render(id)
	return nil
}

// Resume снимает паузу, принимая накопленное время от сервера
func (d *Dispatcher) Resume(ctx context.Context, id int64) error {
	rec, err := d.lookup(id)
	if err != nil {
		return err
	}
	if rec.State() != timer.StatePaused {
		return d.reject(ActionResume, id)
	}

	resp, err := d.call(ctx, ActionResume, id, d.client.Resume)
	if err != nil {
		return err
	}
	if resp.Timer == nil || resp.Timer.PausedDuration == nil {
		return d.malformed(ActionResume, id)
	}

	paused := *resp.Timer.PausedDuration
	d.registry.update(id, func(s *timer.Snapshot) {
		s.Paused = false
		s.PauseStart = nil
		s.PausedSeconds = paused
	})
	d.registry.Render(id)
	return nil
}

// Reset перезапускает таймер после подтверждения
func (d *Dispatcher) Reset(ctx context.Context, id int64) error {
	rec, err := d.lookup(id)
	if err != nil {
		return err
	}
	if !d.confirmer.Confirm(ctx, ActionReset, rec) {
		return ErrDeclined
	}

	resp, err := d.call(ctx, ActionReset, id, d.client.Reset)
	if err != nil {
		return err
	}
	if resp.Timer == nil || resp.Timer.StartDatetime == nil {
		return d.malformed(ActionReset, id)
	}

	start := resp.Timer.StartDatetime.Time
	d.registry.update(id, func(s *timer.Snapshot) {
		s.Start = start
		s.Paused = false
		s.PauseStart = nil
		s.PausedSeconds = 0
	})
	d.registry.Render(id)
	return nil
}

// Delete удаляет таймер после подтверждения
func (d *Dispatcher) Delete(ctx context.Context, id int64) error {
	rec, err := d.lookup(id)
	if err != nil {
		return err
	}
	if !d.confirmer.Confirm(ctx, ActionDelete, rec) {
		return ErrDeclined
	}

	if _, err := d.call(ctx, ActionDelete, id, d.client.Delete); err != nil {
		return err
	}

	d.registry.Remove(id)
	return nil
}

func (d *Dispatcher) lookup(id int64) (Record, error) {
	rec, ok := d.registry.Get(id)
	if !ok {
		d.alerter.Alert(fmt.Sprintf("Таймер #%d не найден", id))
		return Record{}, ErrUnknownTimer
	}
	return rec, nil
}

func (d *Dispatcher) call(ctx context.Context, action Action, id int64, fn func(context.Context, int64) (*api.ControlResponse, error)) (*api.ControlResponse, error) {
	resp, err := fn(ctx, id)
	if err == nil && resp != nil && resp.Success {
		d.logger.Debug("Timer action confirmed", logger.Int64("timer_id", id), logger.String("action", string(action)))
		return resp, nil
	}

	if err == nil {
		msg := ""
		if resp != nil {
			msg = resp.Message
		}
		err = &ActionError{Action: action, TimerID: id, Message: msg}
	}

	d.logger.Warn("Timer action failed",
		logger.Int64("timer_id", id),
		logger.String("action", string(action)),
		logger.Error(err),
	)
	d.alerter.Alert(AlertMessage(err))
	return nil, err
}

func (d *Dispatcher) reject(action Action, id int64) error {
	d.alerter.Alert(fmt.Sprintf("Действие %q недоступно для таймера #%d", action, id))
	return ErrInvalidTransition
}

func (d *Dispatcher) malformed(action Action, id int64) error {
	d.logger.Warn("Malformed server response", logger.Int64("timer_id", id), logger.String("action", string(action)))
	d.alerter.Alert(GenericFailureMessage)
	return ErrMalformedResponse
}

// AlertMessage выбирает текст для пользователя: сообщение сервера или общий текст
func AlertMessage(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return GenericFailureMessage
}
