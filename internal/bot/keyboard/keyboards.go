package keyboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	storagemodels "github.com/region23/servicedesk/internal/storage/models"
)

// Действия над таймером в callback data
const (
	ActionPause  = "PAUSE"
	ActionResume = "RESUME"
	ActionReset  = "RESET"
	ActionDelete = "DELETE"
)

// Префиксы callback data
const (
	PrefixTimer   = "TIMER"
	PrefixConfirm = "CONFIRM"
	PrefixCancel  = "CANCEL"
	PrefixRefresh = "REFRESH"
)

// Callback разобранные данные нажатой inline кнопки
type Callback struct {
	Prefix  string
	Action  string
	TimerID int64
}

// NeedsConfirmation сообщает, нужно ли подтверждение перед действием
func NeedsConfirmation(action string) bool {
	return action == ActionReset || action == ActionDelete
}

// Data формирует callback data вида PREFIX:ACTION:ID
func Data(prefix, action string, id int64) string {
	return fmt.Sprintf("%s:%s:%d", prefix, action, id)
}

// ParseCallback разбирает callback data
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		return Callback{}, fmt.Errorf("malformed callback data %q", data)
	}

	cb := Callback{Prefix: parts[0], Action: parts[1]}
	switch cb.Prefix {
	case PrefixTimer, PrefixConfirm, PrefixCancel, PrefixRefresh:
	default:
		return Callback{}, fmt.Errorf("unknown callback prefix %q", cb.Prefix)
	}
	switch cb.Action {
	case ActionPause, ActionResume, ActionReset, ActionDelete:
	default:
		if cb.Prefix != PrefixCancel && cb.Prefix != PrefixRefresh {
			return Callback{}, fmt.Errorf("unknown timer action %q", cb.Action)
		}
	}

	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		return Callback{}, fmt.Errorf("invalid timer id in callback %q", data)
	}
	cb.TimerID = id
	return cb, nil
}

// CreateTimerKeyboard создает inline клавиатуру управления таймером
func CreateTimerKeyboard(t *storagemodels.Timer) *models.InlineKeyboardMarkup {
	toggle := models.InlineKeyboardButton{Text: "⏸ Пауза", CallbackData: Data(PrefixTimer, ActionPause, t.ID)}
	if t.Paused {
		toggle = models.InlineKeyboardButton{Text: "▶ Продолжить", CallbackData: Data(PrefixTimer, ActionResume, t.ID)}
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				toggle,
				{Text: "↺ Сбросить", CallbackData: Data(PrefixTimer, ActionReset, t.ID)},
				{Text: "✕ Удалить", CallbackData: Data(PrefixTimer, ActionDelete, t.ID)},
			},
			{
				{Text: "Обновить", CallbackData: Data(PrefixRefresh, "-", t.ID)},
			},
		},
	}
}

// CreateConfirmKeyboard создает клавиатуру подтверждения действия
func CreateConfirmKeyboard(action string, id int64) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Да", CallbackData: Data(PrefixConfirm, action, id)},
				{Text: "Отмена", CallbackData: Data(PrefixCancel, action, id)},
			},
		},
	}
}
