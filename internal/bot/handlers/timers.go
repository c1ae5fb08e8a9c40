package handlers

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot/models"

	"github.com/region23/servicedesk/internal/bot/keyboard"
	botservice "github.com/region23/servicedesk/internal/bot/service"
	"github.com/region23/servicedesk/pkg/logger"
)

// TimersHandler отправляет список таймеров, по сообщению на таймер
type TimersHandler struct {
	service *botservice.Service
}

// NewTimersHandler создает обработчик команды /timers
func NewTimersHandler(service *botservice.Service) *TimersHandler {
	return &TimersHandler{service: service}
}

// Handle обрабатывает команду /timers
func (h *TimersHandler) Handle(ctx context.Context, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if !h.service.IsAdmin(chatID) {
		h.service.SendError(ctx, chatID, "Нет доступа")
		return
	}

	timers, err := h.service.ListTimers(ctx)
	if err != nil {
		h.service.Logger().Error("Failed to list timers", logger.Error(err))
		h.service.SendError(ctx, chatID, "Не удалось получить список таймеров")
		return
	}

	if len(timers) == 0 {
		h.service.SendError(ctx, chatID, "Нет активных таймеров")
		return
	}

	for _, t := range timers {
		if err := h.service.SendMessage(ctx, chatID, h.service.FormatTimer(t), keyboard.CreateTimerKeyboard(t)); err != nil {
			h.service.Logger().Warn("Failed to send timer",
				logger.Int64("chat_id", chatID),
				logger.Int64("timer_id", t.ID),
				logger.Error(err),
			)
			return
		}
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
