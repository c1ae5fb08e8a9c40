package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"

	botservice "github.com/region23/servicedesk/internal/bot/service"
	"github.com/region23/servicedesk/pkg/logger"
)

const helpText = "Бот сервиса заявок.\n\n" +
	"/timers - список таймеров с кнопками управления\n" +
	"/help - эта справка"

// StartHandler обрабатывает команды /start и /help
type StartHandler struct {
	service *botservice.Service
}

// NewStartHandler создает новый обработчик команды /start
func NewStartHandler(service *botservice.Service) *StartHandler {
	return &StartHandler{service: service}
}

// Handle обрабатывает команду /start
func (h *StartHandler) Handle(ctx context.Context, update *models.Update) {
	if update.Message == nil || !strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	chatID := update.Message.Chat.ID

	text := helpText
	if !h.service.IsAdmin(chatID) {
		text = "Управление таймерами доступно только администраторам. Ваш chat id: " + formatID(chatID)
	}

	if err := h.service.SendSimpleMessage(ctx, chatID, text); err != nil {
		h.service.Logger().Warn("Failed to send greeting",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
	}
}
