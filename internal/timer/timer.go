// Package timer содержит модель снимка таймера и расчет прошедшего или
// оставшегося времени с учетом пауз.
package timer

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/region23/servicedesk/pkg/errors"
)

// Mode определяет направление счета таймера
type Mode string

const (
	// ModeElapsed считает время от момента старта
	ModeElapsed Mode = "FORWARD"
	// ModeRemaining считает время до целевой даты
	ModeRemaining Mode = "BACKWARD"
)

// ParseMode разбирает тип таймера из строки
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeElapsed:
		return ModeElapsed, nil
	case ModeRemaining:
		return ModeRemaining, nil
	}
	return "", apperrors.ErrInvalidTimerType.WithContext(map[string]interface{}{"timer_type": s})
}

// Valid проверяет, что тип таймера известен
func (m Mode) Valid() bool {
	return m == ModeElapsed || m == ModeRemaining
}

// Label возвращает подпись для отображения
func (m Mode) Label() string {
	if m == ModeRemaining {
		return "Осталось"
	}
	return "Прошло"
}

// State состояние таймера в автомате управления
type State int

const (
	StateRunning State = iota
	StatePaused
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateDeleted:
		return "deleted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Snapshot авторитетное состояние таймера, полученное от сервера
type Snapshot struct {
	ID            int64      `json:"id"`
	Mode          Mode       `json:"timer_type"`
	Start         time.Time  `json:"start_datetime"`
	Target        *time.Time `json:"target_datetime"`
	Paused        bool       `json:"is_paused"`
	PausedSeconds int64      `json:"paused_duration"`
	PauseStart    *time.Time `json:"last_pause_start"`
}

// State возвращает текущее состояние автомата
func (s Snapshot) State() State {
	if s.Paused {
		return StatePaused
	}
	return StateRunning
}

// Validate проверяет структурные инварианты снимка
func (s Snapshot) Validate() error {
	if !s.Mode.Valid() {
		return apperrors.ErrInvalidTimerType.WithContext(map[string]interface{}{"timer_id": s.ID})
	}
	if s.Mode == ModeRemaining && s.Target == nil {
		return apperrors.ErrTargetRequired.WithContext(map[string]interface{}{"timer_id": s.ID})
	}
	if s.Mode == ModeElapsed && s.Target != nil {
		return fmt.Errorf("timer %d: target set on elapsed timer", s.ID)
	}
	if s.Paused != (s.PauseStart != nil) {
		return fmt.Errorf("timer %d: pause start must be present iff paused", s.ID)
	}
	if s.PausedSeconds < 0 {
		return fmt.Errorf("timer %d: negative paused duration %d", s.ID, s.PausedSeconds)
	}
	return nil
}

// Pause ставит таймер на паузу в момент now
func (s *Snapshot) Pause(now time.Time) error {
	if s.Paused {
		return apperrors.ErrTimerAlreadyPaused.WithContext(map[string]interface{}{"timer_id": s.ID})
	}
	at := now
	s.Paused = true
	s.PauseStart = &at
	return nil
}

// Resume снимает паузу и добавляет закрытый интервал к накопленному времени
func (s *Snapshot) Resume(now time.Time) error {
	if !s.Paused {
		return apperrors.ErrTimerNotPaused.WithContext(map[string]interface{}{"timer_id": s.ID})
	}
	if s.PauseStart != nil {
		if closed := floorSeconds(now.Sub(*s.PauseStart)); closed > 0 {
			s.PausedSeconds += closed
		}
	}
	s.Paused = false
	s.PauseStart = nil
	return nil
}

// Reset перезапускает отсчет с момента now и обнуляет паузы
func (s *Snapshot) Reset(now time.Time) {
	s.Start = now
	s.Paused = false
	s.PausedSeconds = 0
	s.PauseStart = nil
}
