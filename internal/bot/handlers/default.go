package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	botservice "github.com/region23/servicedesk/internal/bot/service"
	"github.com/region23/servicedesk/pkg/logger"
)

// DefaultHandler обрабатывает неопознанные сообщения
type DefaultHandler struct {
	service *botservice.Service
}

// NewDefaultHandler создает новый обработчик по умолчанию
func NewDefaultHandler(service *botservice.Service) *DefaultHandler {
	return &DefaultHandler{service: service}
}

// Handle обрабатывает все остальные типы сообщений
func (h *DefaultHandler) Handle(ctx context.Context, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID

	// Отправляем напоминание о том, как пользоваться ботом
	message := "Неизвестная команда. Нажмите /help, чтобы увидеть список команд."
	if err := h.service.SendSimpleMessage(ctx, chatID, message); err != nil {
		h.service.Logger().Warn("Failed to send default message",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
	}
}
