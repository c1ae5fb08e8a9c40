// Package api описывает JSON формы, которыми обмениваются сервер и клиенты таймеров.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/timer"
)

// Типы событий живой ленты
const (
	EventTimerUpdated = "timer.updated"
	EventTimerDeleted = "timer.deleted"
)

// naiveLayout формат дат без зоны, который отдают старые версии сервера
const naiveLayout = "2006-01-02T15:04:05"

// Time принимает RFC3339 и даты без зоны (трактуются как локальные)
type Time struct {
	time.Time
}

// UnmarshalJSON реализует json.Unmarshaler
func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTime разбирает дату в RFC3339 или в локальном формате без зоны
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q", s)
	}
	return t, nil
}

func timePtr(t *time.Time) *Time {
	if t == nil {
		return nil
	}
	return &Time{Time: *t}
}

// Timer полное JSON представление таймера
type Timer struct {
	ID              int64  `json:"id"`
	Label           string `json:"label"`
	TimerType       string `json:"timer_type"`
	StartDatetime   Time   `json:"start_datetime"`
	TargetDatetime  *Time  `json:"target_datetime"`
	IsPaused        bool   `json:"is_paused"`
	PausedDuration  int64  `json:"paused_duration"`
	LastPauseStart  *Time  `json:"last_pause_start"`
	CreatedByUserID *int64 `json:"created_by_user_id"`
	CreatedAt       Time   `json:"created_at"`
	UpdatedAt       Time   `json:"updated_at"`
	CurrentDays     int64  `json:"current_days"`
	CurrentHours    int64  `json:"current_hours"`
	CurrentSeconds  int64  `json:"current_seconds"`
}

// NewTimer строит представление таймера с расчетом на момент now
func NewTimer(t *models.Timer, now time.Time) Timer {
	d, _ := timer.Compute(t.Snapshot, now)
	return Timer{
		ID:              t.ID,
		Label:           t.Label,
		TimerType:       string(t.Mode),
		StartDatetime:   Time{Time: t.Start},
		TargetDatetime:  timePtr(t.Target),
		IsPaused:        t.Paused,
		PausedDuration:  t.PausedSeconds,
		LastPauseStart:  timePtr(t.PauseStart),
		CreatedByUserID: t.CreatedByUserID,
		CreatedAt:       Time{Time: t.CreatedAt},
		UpdatedAt:       Time{Time: t.UpdatedAt},
		CurrentDays:     d.Days,
		CurrentHours:    d.Hours,
		CurrentSeconds:  d.Seconds,
	}
}

// TimerPayload таймер в ответе на действие. Сервер может прислать только часть полей.
type TimerPayload struct {
	ID             *int64 `json:"id"`
	Label          string `json:"label"`
	TimerType      string `json:"timer_type"`
	StartDatetime  *Time  `json:"start_datetime"`
	TargetDatetime *Time  `json:"target_datetime"`
	IsPaused       *bool  `json:"is_paused"`
	PausedDuration *int64 `json:"paused_duration"`
	LastPauseStart *Time  `json:"last_pause_start"`
}

// Snapshot собирает полный снимок из ответа. ok=false, если полей не хватает.
func (p *TimerPayload) Snapshot() (timer.Snapshot, bool) {
	if p == nil || p.ID == nil || p.StartDatetime == nil || p.IsPaused == nil || p.PausedDuration == nil {
		return timer.Snapshot{}, false
	}

	s := timer.Snapshot{
		ID:            *p.ID,
		Mode:          timer.Mode(p.TimerType),
		Start:         p.StartDatetime.Time,
		Paused:        *p.IsPaused,
		PausedSeconds: *p.PausedDuration,
	}
	if p.TargetDatetime != nil {
		target := p.TargetDatetime.Time
		s.Target = &target
	}
	if p.LastPauseStart != nil {
		ps := p.LastPauseStart.Time
		s.PauseStart = &ps
	}
	return s, true
}

// ControlResponse ответ на управляющее действие
type ControlResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Timer   *TimerPayload `json:"timer,omitempty"`
}

// Event событие живой ленты
type Event struct {
	Type    string        `json:"type"`
	Timer   *TimerPayload `json:"timer,omitempty"`
	TimerID int64         `json:"timer_id,omitempty"`
}

// Payload переводит полное представление в форму ответа на действие
func (t Timer) Payload() *TimerPayload {
	id, paused, dur := t.ID, t.IsPaused, t.PausedDuration
	start := t.StartDatetime
	return &TimerPayload{
		ID:             &id,
		Label:          t.Label,
		TimerType:      t.TimerType,
		StartDatetime:  &start,
		TargetDatetime: t.TargetDatetime,
		IsPaused:       &paused,
		PausedDuration: &dur,
		LastPauseStart: t.LastPauseStart,
	}
}

// Task JSON представление задачи для боковой панели и API
type Task struct {
	ID                   int64  `json:"id"`
	Title                string `json:"title"`
	Notes                string `json:"notes"`
	DueDate              *Time  `json:"due_date"`
	ListName             string `json:"list_name"`
	RecurrenceType       string `json:"recurrence_type"`
	RecurrenceOriginalID *int64 `json:"recurrence_original_id"`
	IsImportant          bool   `json:"is_important"`
	IsCompleted          bool   `json:"is_completed"`
	CompletedAt          *Time  `json:"completed_at"`
	CreatedAt            Time   `json:"created_at"`
	UpdatedAt            Time   `json:"updated_at"`
}

// NewTask строит представление задачи
func NewTask(t *models.Task) Task {
	return Task{
		ID:                   t.ID,
		Title:                t.Title,
		Notes:                t.Notes,
		DueDate:              timePtr(t.DueDate),
		ListName:             t.ListName,
		RecurrenceType:       string(t.Recurrence),
		RecurrenceOriginalID: t.RecurrenceOriginalID,
		IsImportant:          t.IsImportant,
		IsCompleted:          t.IsCompleted,
		CompletedAt:          timePtr(t.CompletedAt),
		CreatedAt:            Time{Time: t.CreatedAt},
		UpdatedAt:            Time{Time: t.UpdatedAt},
	}
}
