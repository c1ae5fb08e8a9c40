package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/region23/servicedesk/internal/bot/keyboard"
	botservice "github.com/region23/servicedesk/internal/bot/service"
	"github.com/region23/servicedesk/pkg/errors"
	"github.com/region23/servicedesk/pkg/logger"
)

var confirmQuestions = map[string]string{
	keyboard.ActionReset:  "Сбросить таймер?",
	keyboard.ActionDelete: "Удалить таймер?",
}

// CallbackHandler обрабатывает callback query от inline кнопок
type CallbackHandler struct {
	service *botservice.Service
}

// NewCallbackHandler создает новый обработчик callback query
func NewCallbackHandler(service *botservice.Service) *CallbackHandler {
	return &CallbackHandler{service: service}
}

// Handle обрабатывает callback query
func (h *CallbackHandler) Handle(ctx context.Context, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	cb := update.CallbackQuery
	if cb.Message.Message == nil {
		h.answer(ctx, cb.ID, "Сообщение устарело, запросите /timers")
		return
	}
	chatID := cb.Message.Message.Chat.ID
	messageID := cb.Message.Message.ID

	if !h.service.IsAdmin(chatID) {
		h.answer(ctx, cb.ID, "Нет доступа")
		return
	}
	if !h.service.Allow(chatID) {
		h.answer(ctx, cb.ID, "Слишком много запросов, попробуйте позже")
		return
	}

	data, err := keyboard.ParseCallback(cb.Data)
	if err != nil {
		h.service.Logger().Warn("Malformed callback data",
			logger.String("data", cb.Data),
			logger.Error(err),
		)
		h.answer(ctx, cb.ID, "Неверный выбор")
		return
	}

	switch data.Prefix {
	case keyboard.PrefixTimer:
		if keyboard.NeedsConfirmation(data.Action) {
			h.askConfirmation(ctx, cb.ID, chatID, messageID, data)
			return
		}
		h.perform(ctx, cb.ID, chatID, messageID, data)
	case keyboard.PrefixConfirm:
		h.perform(ctx, cb.ID, chatID, messageID, data)
	case keyboard.PrefixCancel, keyboard.PrefixRefresh:
		h.refresh(ctx, chatID, messageID, data.TimerID)
		h.answer(ctx, cb.ID, "")
	}
}

func (h *CallbackHandler) askConfirmation(ctx context.Context, queryID string, chatID int64, messageID int, data keyboard.Callback) {
	t, err := h.service.GetTimer(ctx, data.TimerID)
	if err != nil {
		h.answer(ctx, queryID, errors.UserMessage(err))
		return
	}

	text := confirmQuestions[data.Action] + "\n\n" + h.service.FormatTimer(t)
	if err := h.service.EditMessage(ctx, chatID, messageID, text, keyboard.CreateConfirmKeyboard(data.Action, data.TimerID)); err != nil {
		h.service.Logger().Warn("Failed to show confirmation", logger.Error(err))
	}
	h.answer(ctx, queryID, "")
}

func (h *CallbackHandler) perform(ctx context.Context, queryID string, chatID int64, messageID int, data keyboard.Callback) {
	t, err := h.service.ControlTimer(ctx, data.Action, data.TimerID)
	if err != nil {
		h.answer(ctx, queryID, errors.UserMessage(err))
		// карточка могла устареть, показываем текущее состояние
		h.refresh(ctx, chatID, messageID, data.TimerID)
		return
	}

	h.service.Logger().Info("Timer controlled from Telegram",
		logger.Int64("chat_id", chatID),
		logger.Int64("timer_id", data.TimerID),
		logger.String("action", data.Action),
	)

	if data.Action == keyboard.ActionDelete {
		if err := h.service.EditMessage(ctx, chatID, messageID, "Таймер удален", nil); err != nil {
			h.service.Logger().Warn("Failed to edit message", logger.Error(err))
		}
		h.answer(ctx, queryID, "Удалено")
		return
	}

	if err := h.service.EditMessage(ctx, chatID, messageID, h.service.FormatTimer(t), keyboard.CreateTimerKeyboard(t)); err != nil {
		h.service.Logger().Warn("Failed to edit message", logger.Error(err))
	}
	h.answer(ctx, queryID, "Готово")
}

func (h *CallbackHandler) refresh(ctx context.Context, chatID int64, messageID int, id int64) {
	t, err := h.service.GetTimer(ctx, id)
	if err != nil {
		if errors.Is(err, errors.ErrTimerNotFound) {
			err = h.service.EditMessage(ctx, chatID, messageID, "Таймер удален", nil)
		}
		if err != nil {
			h.service.Logger().Warn("Failed to refresh timer card", logger.Error(err))
		}
		return
	}

	if err := h.service.EditMessage(ctx, chatID, messageID, h.service.FormatTimer(t), keyboard.CreateTimerKeyboard(t)); err != nil {
		h.service.Logger().Warn("Failed to refresh timer card", logger.Error(err))
	}
}

func (h *CallbackHandler) answer(ctx context.Context, queryID, text string) {
	if err := h.service.AnswerCallbackQuery(ctx, queryID, text); err != nil {
		h.service.Logger().Warn("Failed to answer callback query", logger.Error(err))
	}
}
