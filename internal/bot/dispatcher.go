package bot

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/region23/servicedesk/internal/bot/handlers"
	"github.com/region23/servicedesk/internal/bot/service"
	"github.com/region23/servicedesk/pkg/logger"
	"github.com/region23/servicedesk/pkg/metrics"
)

// Dispatcher управляет обработкой входящих обновлений от Telegram
type Dispatcher struct {
	startHandler    *handlers.StartHandler
	timersHandler   *handlers.TimersHandler
	callbackHandler *handlers.CallbackHandler
	defaultHandler  *handlers.DefaultHandler
	logger          *logger.Logger
}

// NewDispatcher создает новый диспетчер обновлений
func NewDispatcher(service *service.Service) *Dispatcher {
	return &Dispatcher{
		startHandler:    handlers.NewStartHandler(service),
		timersHandler:   handlers.NewTimersHandler(service),
		callbackHandler: handlers.NewCallbackHandler(service),
		defaultHandler:  handlers.NewDefaultHandler(service),
		logger:          service.Logger(),
	}
}

// HandleUpdate обрабатывает входящее обновление от Telegram.
// Сигнатура совпадает с tgbot.HandlerFunc.
func (d *Dispatcher) HandleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	// Обрабатываем callback query от inline кнопок
	if update.CallbackQuery != nil {
		metrics.RecordTelegramUpdate("callback_query")
		d.logger.Debug("Received callback query",
			logger.Int64("user_id", update.CallbackQuery.From.ID),
			logger.String("data", update.CallbackQuery.Data),
		)
		d.callbackHandler.Handle(ctx, update)
		return
	}

	if update.Message != nil {
		metrics.RecordTelegramUpdate("message")
		d.logger.Debug("Received message",
			logger.Int64("chat_id", update.Message.Chat.ID),
			logger.String("text", update.Message.Text),
		)

		switch command(update.Message.Text) {
		case "/start", "/help":
			d.startHandler.Handle(ctx, update)
		case "/timers":
			d.timersHandler.Handle(ctx, update)
		default:
			d.defaultHandler.Handle(ctx, update)
		}
		return
	}

	metrics.RecordTelegramUpdate("unknown")
	d.logger.Debug("Received unknown update type", logger.Int64("update_id", update.ID))
}

// command выделяет команду без аргументов и суффикса @bot_name
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}
