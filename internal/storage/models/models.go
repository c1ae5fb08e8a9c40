package models

import (
	"strconv"
	"time"

	"github.com/region23/servicedesk/internal/timer"
)

// Timer представляет таймер в хранилище
type Timer struct {
	timer.Snapshot
	Label           string    `json:"label"`
	CreatedByUserID *int64    `json:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DisplayLabel возвращает название таймера или подпись по умолчанию
func (t *Timer) DisplayLabel() string {
	if t.Label != "" {
		return t.Label
	}
	return "Таймер #" + strconv.FormatInt(t.ID, 10)
}

// RecurrenceType определяет правило повторения задачи
type RecurrenceType string

const (
	RecurrenceNone     RecurrenceType = ""
	RecurrenceDaily    RecurrenceType = "DAILY"
	RecurrenceWeekdays RecurrenceType = "WEEKDAYS"
	RecurrenceWeekly   RecurrenceType = "WEEKLY"
	RecurrenceMonthly  RecurrenceType = "MONTHLY"
	RecurrenceYearly   RecurrenceType = "YEARLY"
)

// Valid проверяет, что правило повторения известно
func (r RecurrenceType) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekdays, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

// Task представляет задачу из списка дел
type Task struct {
	ID                   int64          `json:"id"`
	Title                string         `json:"title"`
	Notes                string         `json:"notes"`
	DueDate              *time.Time     `json:"due_date"`
	ListName             string         `json:"list_name"`
	Recurrence           RecurrenceType `json:"recurrence_type"`
	RecurrenceOriginalID *int64         `json:"recurrence_original_id"`
	IsImportant          bool           `json:"is_important"`
	IsCompleted          bool           `json:"is_completed"`
	CompletedAt          *time.Time     `json:"completed_at"`
	CreatedByUserID      *int64         `json:"created_by_user_id"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// IsRecurring проверяет, повторяется ли задача
func (t *Task) IsRecurring() bool {
	return t.Recurrence != RecurrenceNone
}

// IsOverdue проверяет, просрочена ли задача на момент now
func (t *Task) IsOverdue(now time.Time) bool {
	return !t.IsCompleted && t.DueDate != nil && t.DueDate.Before(now)
}
