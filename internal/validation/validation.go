package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/region23/servicedesk/internal/storage/models"
	"github.com/region23/servicedesk/internal/timer"
	"github.com/region23/servicedesk/pkg/errors"
)

const (
	MaxLabelLength = 200
	MaxTitleLength = 500
	MaxNotesLength = 5000
	MaxBulkIDs     = 500
)

var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Форматы даты и времени, которые принимают формы и API.
// Строки без зоны трактуются в переданной локации.
var dateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseID(idStr string, base *errors.AppError) (int64, error) {
	if idStr == "" {
		return 0, base.WithContext("ID не может быть пустым")
	}

	id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil {
		return 0, base.WithError(err).WithContext(map[string]interface{}{
			"input": idStr,
		})
	}

	if id <= 0 {
		return 0, base.WithContext(map[string]interface{}{
			"input":  idStr,
			"reason": "ID должен быть положительным числом",
		})
	}

	return id, nil
}

// ValidateTimerID валидирует ID таймера
func ValidateTimerID(idStr string) (int64, error) {
	return parseID(idStr, errors.ErrInvalidTimerID)
}

// ValidateTaskID валидирует ID задачи
func ValidateTaskID(idStr string) (int64, error) {
	return parseID(idStr, errors.ErrInvalidTaskID)
}

// ValidateTaskIDs валидирует список ID задач и убирает повторы, сохраняя порядок
func ValidateTaskIDs(values []string) ([]int64, error) {
	if len(values) == 0 {
		return nil, errors.ErrInvalidTaskID.WithContext("не выбрано ни одной задачи")
	}
	if len(values) > MaxBulkIDs {
		return nil, errors.ErrInvalidTaskID.WithContext(map[string]interface{}{
			"count":  len(values),
			"reason": "слишком много задач за один раз",
		})
	}

	seen := make(map[int64]bool, len(values))
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := ValidateTaskID(v)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	return ids, nil
}

// ValidateTimerType валидирует тип таймера
func ValidateTimerType(s string) (timer.Mode, error) {
	return timer.ParseMode(s)
}

// ValidateTarget проверяет, что целевая дата строго в будущем
func ValidateTarget(target *time.Time, now time.Time) error {
	if target == nil {
		return errors.ErrTargetRequired
	}
	if !target.After(now) {
		return errors.ErrTargetInPast.WithContext(map[string]interface{}{
			"target": target.Format(time.RFC3339),
		})
	}
	return nil
}

// ParseDateTime разбирает дату и время из RFC3339 или локального формата формы
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.ErrInvalidDate.WithContext("дата не может быть пустой")
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.ErrInvalidDate.WithContext(map[string]interface{}{
		"date":   s,
		"reason": "ожидается дата в формате YYYY-MM-DDTHH:MM",
	})
}

// ValidateDueDate разбирает срок задачи. Пустая строка означает отсутствие срока,
// дата без времени означает полночь в локации loc.
func ValidateDueDate(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if dateRegex.MatchString(s) {
		date, err := time.ParseInLocation("2006-01-02", s, loc)
		if err != nil {
			return nil, errors.ErrInvalidDate.WithError(err).WithContext(map[string]interface{}{
				"date": s,
			})
		}
		return &date, nil
	}

	t, err := ParseDateTime(s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ValidateTitle валидирует название задачи
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", errors.Invalid("название задачи слишком длинное")
	}
	return title, nil
}

// ValidateLabel валидирует название таймера. Пустое название допустимо.
func ValidateLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return "", errors.Invalid("название таймера слишком длинное")
	}
	return label, nil
}

// ValidateNotes валидирует заметки задачи
func ValidateNotes(notes string) (string, error) {
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return "", errors.Invalid("заметки слишком длинные")
	}
	return notes, nil
}

// ValidateRecurrence валидирует тип повторения задачи
func ValidateRecurrence(s string) (models.RecurrenceType, error) {
	r := models.RecurrenceType(strings.ToUpper(strings.TrimSpace(s)))
	if r == "NONE" {
		r = models.RecurrenceNone
	}
	if !r.Valid() {
		return "", errors.ErrInvalidRecurrence.WithContext(map[string]interface{}{
			"recurrence_type": s,
		})
	}
	return r, nil
}

// ValidateChatID валидирует Telegram Chat ID
func ValidateChatID(chatID int64) error {
	if chatID == 0 {
		return errors.Invalid("Chat ID не может быть равен нулю")
	}

	// Для групп Chat ID отрицательные, принимаем любые ненулевые значения
	return nil
}
